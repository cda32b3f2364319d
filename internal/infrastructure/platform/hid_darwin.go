//go:build darwin

package platform

/*
#cgo LDFLAGS: -framework IOKit -framework CoreFoundation

#include <CoreFoundation/CoreFoundation.h>
#include <IOKit/hid/IOHIDManager.h>
#include <IOKit/hid/IOHIDKeys.h>
#include <IOKit/hid/IOHIDUsageTables.h>

// goHIDInputValue Go 层的回调函数声明
// Parameters: usage - 键盘页用途码, pressed - 1=按下 0=抬起
extern void goHIDInputValue(uint32_t usage, int pressed);

// hidInputCallback IOHIDManager 输入值回调（static 避免符号冲突）
// 在运行 HID run loop 的线程上同步调用
static void hidInputCallback(void* context, IOReturn result, void* sender, IOHIDValueRef value) {
    IOHIDElementRef element = IOHIDValueGetElement(value);
    if (IOHIDElementGetUsagePage(element) != kHIDPage_KeyboardOrKeypad) {
        return;
    }
    uint32_t usage = IOHIDElementGetUsage(element);
    CFIndex pressed = IOHIDValueGetIntegerValue(value);
    goHIDInputValue(usage, pressed != 0 ? 1 : 0);
}

// createUsageMatching 创建 {page, usage} 匹配字典
static CFDictionaryRef createUsageMatching(uint32_t page, uint32_t usage, CFStringRef pageKey, CFStringRef usageKey) {
    CFNumberRef p = CFNumberCreate(kCFAllocatorDefault, kCFNumberSInt32Type, &page);
    CFNumberRef u = CFNumberCreate(kCFAllocatorDefault, kCFNumberSInt32Type, &usage);
    const void* keys[] = {pageKey, usageKey};
    const void* values[] = {p, u};
    CFDictionaryRef dict = CFDictionaryCreate(kCFAllocatorDefault, keys, values, 2,
                                              &kCFTypeDictionaryKeyCallBacks,
                                              &kCFTypeDictionaryValueCallBacks);
    CFRelease(p);
    CFRelease(u);
    return dict;
}

// openHIDManager 在当前线程的 run loop 上打开键盘 HID 管理器
// 只匹配键盘设备，并且只上报 usages 中的用途码
// Returns: IOHIDManagerRef，失败返回 NULL 并写入 status
static void* openHIDManager(uint32_t* usages, int count, int* status) {
    IOHIDManagerRef manager = IOHIDManagerCreate(kCFAllocatorDefault, kIOHIDOptionsTypeNone);
    if (manager == NULL) {
        *status = -1;
        return NULL;
    }

    CFDictionaryRef device = createUsageMatching(kHIDPage_GenericDesktop, kHIDUsage_GD_Keyboard,
                                                 CFSTR(kIOHIDDeviceUsagePageKey),
                                                 CFSTR(kIOHIDDeviceUsageKey));
    IOHIDManagerSetDeviceMatching(manager, device);
    CFRelease(device);

    CFMutableArrayRef inputs = CFArrayCreateMutable(kCFAllocatorDefault, count, &kCFTypeArrayCallBacks);
    for (int i = 0; i < count; i++) {
        CFDictionaryRef m = createUsageMatching(kHIDPage_KeyboardOrKeypad, usages[i],
                                                CFSTR(kIOHIDElementUsagePageKey),
                                                CFSTR(kIOHIDElementUsageKey));
        CFArrayAppendValue(inputs, m);
        CFRelease(m);
    }
    IOHIDManagerSetInputValueMatchingMultiple(manager, inputs);
    CFRelease(inputs);

    IOHIDManagerRegisterInputValueCallback(manager, hidInputCallback, NULL);
    IOHIDManagerScheduleWithRunLoop(manager, CFRunLoopGetCurrent(), kCFRunLoopDefaultMode);

    IOReturn ret = IOHIDManagerOpen(manager, kIOHIDOptionsTypeNone);
    if (ret != kIOReturnSuccess) {
        IOHIDManagerUnscheduleFromRunLoop(manager, CFRunLoopGetCurrent(), kCFRunLoopDefaultMode);
        CFRelease(manager);
        *status = (int)ret;
        return NULL;
    }

    *status = 0;
    return (void*)manager;
}

// closeHIDManager 关闭并释放 HID 管理器，必须在打开它的线程上调用
static void closeHIDManager(void* ptr) {
    IOHIDManagerRef manager = (IOHIDManagerRef)ptr;
    IOHIDManagerRegisterInputValueCallback(manager, NULL, NULL);
    IOHIDManagerUnscheduleFromRunLoop(manager, CFRunLoopGetCurrent(), kCFRunLoopDefaultMode);
    IOHIDManagerClose(manager, kIOHIDOptionsTypeNone);
    CFRelease(manager);
}

// runHIDRunLoopSlice 运行当前线程的 run loop 0.1 秒
static void runHIDRunLoopSlice() {
    CFRunLoopRunInMode(kCFRunLoopDefaultMode, 0.1, false);
}
*/
import "C"
import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
	"github.com/chenyang-zz/capsflow/pkg/logger"
)

// DarwinHIDMonitor macOS 平台的 HID 按键监控器实现
//
// 使用 IOHIDManager 在独立的 OS 线程上运行 CFRunLoop，
// 按键转换在该线程上按发生顺序同步回调。
type DarwinHIDMonitor struct {
	// callback 按键转换回调
	callback KeyCallback
	// isRunning 监控器运行状态标志
	isRunning bool
	// mu 读写锁，保护并发访问
	mu sync.RWMutex
	// stopChan 停止信号通道
	stopChan chan struct{}
	// runLoopDone run loop 线程退出信号
	runLoopDone chan struct{}
}

// 全局 HID 监控器实例（用于 C 回调）
var (
	defaultHIDMonitor *DarwinHIDMonitor
	hidMonitorMutex   sync.Mutex
)

// NewHIDMonitor 创建 macOS 平台的 HID 监控器
func NewHIDMonitor() HIDMonitor {
	return &DarwinHIDMonitor{}
}

// goHIDInputValue C 到 Go 的桥接函数
//
// 在 HID run loop 线程上同步调用，保持按键转换的顺序。
//
//export goHIDInputValue
func goHIDInputValue(usage C.uint32_t, pressed C.int) {
	hidMonitorMutex.Lock()
	m := defaultHIDMonitor
	hidMonitorMutex.Unlock()

	if m == nil {
		return
	}

	transition := models.KeyUp
	if pressed != 0 {
		transition = models.KeyDown
	}
	m.handleInput(models.KeyTransition{
		Usage:      models.KeyUsage(usage),
		Transition: transition,
		At:         time.Now(),
	})
}

func (m *DarwinHIDMonitor) handleInput(t models.KeyTransition) {
	m.mu.RLock()
	callback := m.callback
	m.mu.RUnlock()

	if callback != nil {
		callback(t)
	}
}

// Start 启动 HID 监控
//
// 在锁定的 OS 线程上创建 IOHIDManager 并运行 CFRunLoop，等待打开结果后返回。
// Parameters:
//   - usages: 只上报这些用途码
//   - callback: 按键转换回调
//
// Returns: error - 打开失败时返回包装了 ErrHIDOpenFailed 的错误
func (m *DarwinHIDMonitor) Start(usages []models.KeyUsage, callback KeyCallback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("hid monitor already running")
	}

	m.callback = callback

	hidMonitorMutex.Lock()
	defaultHIDMonitor = m
	hidMonitorMutex.Unlock()

	cUsages := make([]C.uint32_t, len(usages))
	for i, u := range usages {
		cUsages[i] = C.uint32_t(u)
	}

	m.stopChan = make(chan struct{})
	m.runLoopDone = make(chan struct{})
	opened := make(chan error, 1)

	go m.runLoop(cUsages, m.stopChan, m.runLoopDone, opened)

	if err := <-opened; err != nil {
		hidMonitorMutex.Lock()
		defaultHIDMonitor = nil
		hidMonitorMutex.Unlock()
		m.callback = nil
		return err
	}

	m.isRunning = true
	logger.Info("HID 监控已启动",
		zap.String("component", "hid"),
		zap.Int("usage_count", len(usages)),
	)
	return nil
}

// runLoop HID 线程主体
func (m *DarwinHIDMonitor) runLoop(usages []C.uint32_t, stop <-chan struct{}, done chan<- struct{}, opened chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	var usagesPtr *C.uint32_t
	if len(usages) > 0 {
		usagesPtr = &usages[0]
	}

	var status C.int
	manager := C.openHIDManager(usagesPtr, C.int(len(usages)), &status)
	if manager == nil {
		opened <- fmt.Errorf("%w: IOHIDManagerOpen returned 0x%08x", ErrHIDOpenFailed, uint32(status))
		return
	}
	opened <- nil

	defer C.closeHIDManager(unsafe.Pointer(manager))

	for {
		C.runHIDRunLoopSlice()

		select {
		case <-stop:
			return
		default:
		}
	}
}

// Stop 停止 HID 监控
//
// 发送停止信号并等待 run loop 线程释放设备（最多 2 秒）。
func (m *DarwinHIDMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return fmt.Errorf("hid monitor not running")
	}

	close(m.stopChan)

	select {
	case <-m.runLoopDone:
	case <-time.After(2 * time.Second):
		logger.Warn("等待 HID run loop 线程退出超时", zap.String("component", "hid"))
	}

	hidMonitorMutex.Lock()
	defaultHIDMonitor = nil
	hidMonitorMutex.Unlock()

	m.callback = nil
	m.isRunning = false

	logger.Info("HID 监控已停止", zap.String("component", "hid"))
	return nil
}

// IsRunning 检查运行状态
func (m *DarwinHIDMonitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}
