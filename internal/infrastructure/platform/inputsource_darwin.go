//go:build darwin

package platform

/*
#cgo LDFLAGS: -framework Carbon -framework CoreFoundation

#include <stdlib.h>
#include <Carbon/Carbon.h>

// copyUTF8 把 CFString 复制成 malloc 分配的 C 字符串，调用方负责 free
static char* copyUTF8(CFStringRef s) {
    if (s == NULL) {
        return NULL;
    }
    CFIndex len = CFStringGetMaximumSizeForEncoding(CFStringGetLength(s), kCFStringEncodingUTF8) + 1;
    char* buf = (char*)malloc(len);
    if (!CFStringGetCString(s, buf, len, kCFStringEncodingUTF8)) {
        free(buf);
        return NULL;
    }
    return buf;
}

// copyKeyboardSources 列出所有可选中的键盘输入源
static CFArrayRef copyKeyboardSources() {
    CFMutableDictionaryRef filter = CFDictionaryCreateMutable(kCFAllocatorDefault, 0,
                                                              &kCFTypeDictionaryKeyCallBacks,
                                                              &kCFTypeDictionaryValueCallBacks);
    CFDictionarySetValue(filter, kTISPropertyInputSourceCategory, kTISCategoryKeyboardInputSource);
    CFDictionarySetValue(filter, kTISPropertyInputSourceIsSelectCapable, kCFBooleanTrue);
    CFArrayRef list = TISCreateInputSourceList(filter, false);
    CFRelease(filter);
    return list;
}

static int sourceCount(CFArrayRef list) {
    return list == NULL ? 0 : (int)CFArrayGetCount(list);
}

// sourceAt 取出并 retain 第 i 个输入源
static void* sourceAt(CFArrayRef list, int i) {
    TISInputSourceRef src = (TISInputSourceRef)CFArrayGetValueAtIndex(list, i);
    CFRetain(src);
    return (void*)src;
}

static void releaseList(CFArrayRef list) {
    if (list != NULL) {
        CFRelease(list);
    }
}

static char* sourceID(void* src) {
    return copyUTF8((CFStringRef)TISGetInputSourceProperty((TISInputSourceRef)src, kTISPropertyInputSourceID));
}

static char* sourceName(void* src) {
    return copyUTF8((CFStringRef)TISGetInputSourceProperty((TISInputSourceRef)src, kTISPropertyLocalizedName));
}

static int sourceIsSelected(void* src) {
    CFBooleanRef selected = (CFBooleanRef)TISGetInputSourceProperty((TISInputSourceRef)src, kTISPropertyInputSourceIsSelected);
    return selected != NULL && CFBooleanGetValue(selected);
}

// selectSource 选中输入源
// Returns: OSStatus，0 表示成功
static int selectSource(void* src) {
    return (int)TISSelectInputSource((TISInputSourceRef)src);
}

// currentSourceID 当前键盘输入源标识
static char* currentSourceID() {
    TISInputSourceRef current = TISCopyCurrentKeyboardInputSource();
    if (current == NULL) {
        return NULL;
    }
    char* id = sourceID((void*)current);
    CFRelease(current);
    return id;
}
*/
import "C"
import (
	"errors"
	"fmt"
	"unsafe"
)

// darwinInputSource TISInputSourceRef 句柄
//
// 句柄在创建时 retain，进程生命周期内不释放。
type darwinInputSource struct {
	ref  unsafe.Pointer
	id   string
	name string
}

func (s *darwinInputSource) ID() string   { return s.id }
func (s *darwinInputSource) Name() string { return s.name }

func (s *darwinInputSource) IsSelected() bool {
	return C.sourceIsSelected(s.ref) != 0
}

func (s *darwinInputSource) Select() error {
	if status := C.selectSource(s.ref); status != 0 {
		return fmt.Errorf("TISSelectInputSource(%s) failed: OSStatus %d", s.id, int(status))
	}
	return nil
}

// DarwinInputSourceRegistry 基于 Text Input Sources 服务的注册表
type DarwinInputSourceRegistry struct{}

// NewInputSourceRegistry 创建 macOS 输入源注册表
func NewInputSourceRegistry() InputSourceRegistry {
	return &DarwinInputSourceRegistry{}
}

// Sources 枚举所有可选中的键盘输入源
func (r *DarwinInputSourceRegistry) Sources() ([]InputSource, error) {
	list := C.copyKeyboardSources()
	if list == 0 {
		return nil, errors.New("TISCreateInputSourceList returned no sources")
	}
	defer C.releaseList(list)

	count := int(C.sourceCount(list))
	sources := make([]InputSource, 0, count)
	for i := 0; i < count; i++ {
		ref := C.sourceAt(list, C.int(i))
		sources = append(sources, &darwinInputSource{
			ref:  ref,
			id:   takeCString(C.sourceID(ref)),
			name: takeCString(C.sourceName(ref)),
		})
	}
	return sources, nil
}

// SelectedID 当前选中的键盘输入源标识
func (r *DarwinInputSourceRegistry) SelectedID() (string, error) {
	id := takeCString(C.currentSourceID())
	if id == "" {
		return "", errors.New("no current keyboard input source")
	}
	return id, nil
}

// takeCString 转换并释放 malloc 分配的 C 字符串
func takeCString(s *C.char) string {
	if s == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(s))
	return C.GoString(s)
}
