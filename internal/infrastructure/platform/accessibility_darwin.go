//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation

#include <stdlib.h>
#include <stdint.h>
#include <ApplicationServices/ApplicationServices.h>

#define VK_NONE    0
#define VK_STRING  1
#define VK_BOOL    2
#define VK_INT     3
#define VK_FLOAT   4
#define VK_POINT   5
#define VK_SIZE    6
#define VK_RECT    7
#define VK_ELEMENT 8
#define VK_LIST    9

// goAXWindowCreated Go 层的回调函数声明
// Parameters: id - 观察器注册编号, element - 已 retain 的新窗口元素
extern void goAXWindowCreated(uintptr_t id, void* element);

// axObserverCallback AXObserver 回调（static 避免符号冲突），在主线程上执行
static void axObserverCallback(AXObserverRef observer, AXUIElementRef element, CFStringRef notification, void* refcon) {
    CFRetain(element);
    goAXWindowCreated((uintptr_t)refcon, (void*)element);
}

// createWindowObserver 为 pid 创建窗口创建通知的观察器，并挂到主 run loop 上
// Returns: AXObserverRef，失败返回 NULL 并写入 AXError
static void* createWindowObserver(int pid, uintptr_t handle, void** appOut, int* status) {
    AXObserverRef observer = NULL;
    AXError err = AXObserverCreate((pid_t)pid, axObserverCallback, &observer);
    if (err != kAXErrorSuccess) {
        *status = (int)err;
        return NULL;
    }

    AXUIElementRef app = AXUIElementCreateApplication((pid_t)pid);
    err = AXObserverAddNotification(observer, app, kAXWindowCreatedNotification, (void*)handle);
    if (err != kAXErrorSuccess) {
        CFRelease(app);
        CFRelease(observer);
        *status = (int)err;
        return NULL;
    }

    CFRunLoopAddSource(CFRunLoopGetMain(), AXObserverGetRunLoopSource(observer), kCFRunLoopDefaultMode);
    *appOut = (void*)app;
    *status = 0;
    return (void*)observer;
}

// destroyWindowObserver 从主 run loop 摘下观察器并释放
static void destroyWindowObserver(void* observer, void* app) {
    AXObserverRef obs = (AXObserverRef)observer;
    CFRunLoopRemoveSource(CFRunLoopGetMain(), AXObserverGetRunLoopSource(obs), kCFRunLoopDefaultMode);
    AXObserverRemoveNotification(obs, (AXUIElementRef)app, kAXWindowCreatedNotification);
    CFRelease((AXUIElementRef)app);
    CFRelease(obs);
}

static char* axCopyUTF8(CFStringRef s) {
    CFIndex len = CFStringGetMaximumSizeForEncoding(CFStringGetLength(s), kCFStringEncodingUTF8) + 1;
    char* buf = (char*)malloc(len);
    if (!CFStringGetCString(s, buf, len, kCFStringEncodingUTF8)) {
        free(buf);
        return NULL;
    }
    return buf;
}

// copyAttribute 读取元素属性，*out 为 retain 过的值或 NULL
// Returns: AXError
static int copyAttribute(void* element, const char* name, void** out) {
    CFStringRef attr = CFStringCreateWithCString(kCFAllocatorDefault, name, kCFStringEncodingUTF8);
    CFTypeRef value = NULL;
    AXError err = AXUIElementCopyAttributeValue((AXUIElementRef)element, attr, &value);
    CFRelease(attr);
    *out = (void*)value;
    return (int)err;
}

static int valueKind(void* v) {
    CFTypeRef ref = (CFTypeRef)v;
    CFTypeID t = CFGetTypeID(ref);
    if (t == CFStringGetTypeID()) return VK_STRING;
    if (t == CFBooleanGetTypeID()) return VK_BOOL;
    if (t == CFNumberGetTypeID()) return CFNumberIsFloatType((CFNumberRef)ref) ? VK_FLOAT : VK_INT;
    if (t == AXUIElementGetTypeID()) return VK_ELEMENT;
    if (t == CFArrayGetTypeID()) return VK_LIST;
    if (t == AXValueGetTypeID()) {
        switch (AXValueGetType((AXValueRef)ref)) {
        case kAXValueCGPointType: return VK_POINT;
        case kAXValueCGSizeType: return VK_SIZE;
        case kAXValueCGRectType: return VK_RECT;
        default: return VK_NONE;
        }
    }
    return VK_NONE;
}

static char* valueString(void* v) { return axCopyUTF8((CFStringRef)v); }
static int valueBool(void* v) { return CFBooleanGetValue((CFBooleanRef)v) ? 1 : 0; }

static long long valueInt(void* v) {
    long long n = 0;
    CFNumberGetValue((CFNumberRef)v, kCFNumberLongLongType, &n);
    return n;
}

static double valueFloat(void* v) {
    double f = 0;
    CFNumberGetValue((CFNumberRef)v, kCFNumberDoubleType, &f);
    return f;
}

static CGPoint valuePoint(void* v) {
    CGPoint p = CGPointZero;
    AXValueGetValue((AXValueRef)v, kAXValueCGPointType, &p);
    return p;
}

static CGSize valueSize(void* v) {
    CGSize s = CGSizeZero;
    AXValueGetValue((AXValueRef)v, kAXValueCGSizeType, &s);
    return s;
}

static CGRect valueRect(void* v) {
    CGRect r = CGRectZero;
    AXValueGetValue((AXValueRef)v, kAXValueCGRectType, &r);
    return r;
}

static int listCount(void* v) { return (int)CFArrayGetCount((CFArrayRef)v); }

static void* listItem(void* v, int i) {
    CFTypeRef item = CFArrayGetValueAtIndex((CFArrayRef)v, i);
    CFRetain(item);
    return (void*)item;
}

static void axRetain(void* v) { CFRetain((CFTypeRef)v); }
static void axRelease(void* v) { CFRelease((CFTypeRef)v); }

// setPosition 写入 AXPosition
// Returns: AXError
static int setPosition(void* element, double x, double y) {
    CGPoint p = CGPointMake(x, y);
    AXValueRef value = AXValueCreate(kAXValueCGPointType, &p);
    AXError err = AXUIElementSetAttributeValue((AXUIElementRef)element, kAXPositionAttribute, value);
    CFRelease(value);
    return (int)err;
}

static int elementPID(void* element) {
    pid_t pid = 0;
    AXUIElementGetPid((AXUIElementRef)element, &pid);
    return (int)pid;
}
*/
import "C"
import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

const (
	axErrorAttributeUnsupported = -25205
	axErrorNoValue              = -25212
)

// DarwinAccessibilityObserver 基于 AXObserver 的观察器工厂
type DarwinAccessibilityObserver struct{}

// NewAccessibilityObserver 创建 macOS 辅助功能观察器工厂
func NewAccessibilityObserver() AccessibilityObserver {
	return &DarwinAccessibilityObserver{}
}

// 存活的观察器注册（用于 C 回调）
//
// 回调只拿到编号，已注销的编号查不到注册，回调直接丢弃。
var (
	axObservations     = map[uintptr]*darwinObservation{}
	axObservationSeq   uintptr
	axObservationMutex sync.Mutex
)

// darwinObservation 一个 AXObserver 注册
type darwinObservation struct {
	id       uintptr
	pid      int
	callback WindowCallback
	observer unsafe.Pointer
	app      unsafe.Pointer
	once     sync.Once
}

// Observe 监听 pid 进程的 kAXWindowCreatedNotification
//
// 观察器挂在主 run loop 上，回调在主循环中执行。
func (o *DarwinAccessibilityObserver) Observe(pid int, callback WindowCallback) (Observation, error) {
	axObservationMutex.Lock()
	axObservationSeq++
	obs := &darwinObservation{id: axObservationSeq, pid: pid, callback: callback}
	axObservations[obs.id] = obs
	axObservationMutex.Unlock()

	var app unsafe.Pointer
	var status C.int
	observer := C.createWindowObserver(C.int(pid), C.uintptr_t(obs.id), &app, &status)
	if observer == nil {
		obs.retire()
		return nil, fmt.Errorf("%w: pid %d, AXError %d", ErrObserverFailed, pid, int(status))
	}

	obs.observer = observer
	obs.app = app
	return obs, nil
}

func (o *darwinObservation) PID() int { return o.pid }

// Cancel 注销观察器，重复调用安全
//
// 先摘掉注册再释放 AXObserver，已在派发中的回调查不到注册会直接丢弃。
func (o *darwinObservation) Cancel() error {
	o.once.Do(func() {
		o.retire()
		C.destroyWindowObserver(o.observer, o.app)
	})
	return nil
}

func (o *darwinObservation) retire() {
	axObservationMutex.Lock()
	delete(axObservations, o.id)
	axObservationMutex.Unlock()
}

func lookupObservation(id uintptr) *darwinObservation {
	axObservationMutex.Lock()
	defer axObservationMutex.Unlock()
	return axObservations[id]
}

// goAXWindowCreated 窗口创建通知的 Go 回调函数（由 C 调用）
//
//export goAXWindowCreated
func goAXWindowCreated(id C.uintptr_t, element unsafe.Pointer) {
	obs := lookupObservation(uintptr(id))
	if obs == nil || obs.callback == nil {
		C.axRelease(element)
		return
	}
	obs.callback(newDarwinElement(element))
}

// darwinElement AXUIElementRef 句柄
type darwinElement struct {
	ref unsafe.Pointer
}

// newDarwinElement 接管一个已 retain 的 AXUIElementRef
func newDarwinElement(ref unsafe.Pointer) *darwinElement {
	e := &darwinElement{ref: ref}
	runtime.SetFinalizer(e, func(e *darwinElement) {
		C.axRelease(e.ref)
	})
	return e
}

// Attribute 读取属性并转换为 Value
func (e *darwinElement) Attribute(name string) (Value, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	var raw unsafe.Pointer
	status := int(C.copyAttribute(e.ref, cName, &raw))
	switch status {
	case 0:
	case axErrorAttributeUnsupported, axErrorNoValue:
		return None(), fmt.Errorf("%s: %w", name, ErrAttributeUnsupported)
	default:
		return None(), fmt.Errorf("read %s: AXError %d", name, status)
	}

	if raw == nil {
		return None(), nil
	}
	defer C.axRelease(raw)

	return valueFromCF(raw), nil
}

// SetPosition 写入窗口位置
func (e *darwinElement) SetPosition(p Point) error {
	if status := int(C.setPosition(e.ref, C.double(p.X), C.double(p.Y))); status != 0 {
		return fmt.Errorf("set position: AXError %d", status)
	}
	return nil
}

func (e *darwinElement) PID() int {
	return int(C.elementPID(e.ref))
}

// valueFromCF 把 CF 值转换为 Value，列表只展开一层
func valueFromCF(ref unsafe.Pointer) Value {
	switch C.valueKind(ref) {
	case C.VK_STRING:
		return StringValue(takeCString(C.valueString(ref)))
	case C.VK_BOOL:
		return BoolValue(C.valueBool(ref) != 0)
	case C.VK_INT:
		return IntValue(int64(C.valueInt(ref)))
	case C.VK_FLOAT:
		return FloatValue(float64(C.valueFloat(ref)))
	case C.VK_POINT:
		p := C.valuePoint(ref)
		return PointValue(Point{X: float64(p.x), Y: float64(p.y)})
	case C.VK_SIZE:
		s := C.valueSize(ref)
		return SizeValue(Size{Width: float64(s.width), Height: float64(s.height)})
	case C.VK_RECT:
		r := C.valueRect(ref)
		return RectValue(Rect{
			Origin: Point{X: float64(r.origin.x), Y: float64(r.origin.y)},
			Size:   Size{Width: float64(r.size.width), Height: float64(r.size.height)},
		})
	case C.VK_ELEMENT:
		C.axRetain(ref)
		return ElementValue(newDarwinElement(ref))
	case C.VK_LIST:
		n := int(C.listCount(ref))
		items := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			item := C.listItem(ref, C.int(i))
			items = append(items, valueFromCF(item))
			C.axRelease(item)
		}
		return ListValue(items)
	default:
		return None()
	}
}
