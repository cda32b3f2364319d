//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework IOKit -framework Cocoa

#include <Cocoa/Cocoa.h>
#include <IOKit/IOKitLib.h>
#include <IOKit/hidsystem/IOHIDLib.h>
#include <IOKit/hidsystem/IOHIDParameter.h>

// goCapsLockFlagsChanged Go 层的回调函数声明
extern void goCapsLockFlagsChanged(int keyCode, int on);

// openHIDSystem 打开 IOHIDSystem 连接
// Returns: 0=成功，否则为 kern_return_t
static int openHIDSystem(io_connect_t* conn) {
    io_service_t service = IOServiceGetMatchingService(MACH_PORT_NULL, IOServiceMatching(kIOHIDSystemClass));
    if (service == IO_OBJECT_NULL) {
        return -1;
    }
    kern_return_t kr = IOServiceOpen(service, mach_task_self(), kIOHIDParamConnectType, conn);
    IOObjectRelease(service);
    return (int)kr;
}

// getCapsLockState 读取 Caps-Lock 锁定状态
// Returns: 0=成功，否则为 kern_return_t
static int getCapsLockState(int* on) {
    io_connect_t conn;
    int kr = openHIDSystem(&conn);
    if (kr != 0) {
        return kr;
    }
    bool state = false;
    kr = (int)IOHIDGetModifierLockState(conn, kIOHIDCapsLockState, &state);
    IOServiceClose(conn);
    *on = state ? 1 : 0;
    return kr;
}

// setCapsLockState 设置 Caps-Lock 锁定状态
static int setCapsLockState(int on) {
    io_connect_t conn;
    int kr = openHIDSystem(&conn);
    if (kr != 0) {
        return kr;
    }
    kr = (int)IOHIDSetModifierLockState(conn, kIOHIDCapsLockState, on != 0);
    IOServiceClose(conn);
    return kr;
}

// 全局修饰键监听器
static id flagsMonitor = nil;

// startFlagsMonitor 在主队列上注册 NSEvent 全局 flagsChanged 监听
static void startFlagsMonitor() {
    dispatch_async(dispatch_get_main_queue(), ^{
        if (flagsMonitor != nil) {
            return;
        }
        flagsMonitor = [NSEvent addGlobalMonitorForEventsMatchingMask:NSEventMaskFlagsChanged
                                                              handler:^(NSEvent* event) {
            goCapsLockFlagsChanged((int)event.keyCode, (event.modifierFlags & NSEventModifierFlagCapsLock) != 0 ? 1 : 0);
        }];
    });
}

// stopFlagsMonitor 在主队列上移除监听
static void stopFlagsMonitor() {
    dispatch_async(dispatch_get_main_queue(), ^{
        if (flagsMonitor != nil) {
            [NSEvent removeMonitor:flagsMonitor];
            flagsMonitor = nil;
        }
    });
}
*/
import "C"
import (
	"fmt"
	"sync"
)

// DarwinCapsLockLatch 基于 IOHIDSystem 的 Caps-Lock 锁定状态
type DarwinCapsLockLatch struct{}

// 全局带外变化回调（用于 C 回调）
var capsLockWatchers = newFlagsWatchers()

// NewCapsLockLatch 创建 macOS Caps-Lock 锁定状态适配器
func NewCapsLockLatch() CapsLockLatch {
	return &DarwinCapsLockLatch{}
}

// Get 读取锁定状态
func (l *DarwinCapsLockLatch) Get() (bool, error) {
	var on C.int
	if kr := C.getCapsLockState(&on); kr != 0 {
		return false, fmt.Errorf("IOHIDGetModifierLockState failed: 0x%08x", uint32(kr))
	}
	return on != 0, nil
}

// Set 设置锁定状态
func (l *DarwinCapsLockLatch) Set(on bool) error {
	value := C.int(0)
	if on {
		value = 1
	}
	if kr := C.setCapsLockState(value); kr != 0 {
		return fmt.Errorf("IOHIDSetModifierLockState failed: 0x%08x", uint32(kr))
	}
	return nil
}

// Watch 监听 Caps-Lock 键引起的修饰键标志变化
//
// 第一个监听者注册 NSEvent 全局监听，最后一个取消时移除。
func (l *DarwinCapsLockLatch) Watch(callback func(on bool)) (func(), error) {
	id, first := capsLockWatchers.add(callback)
	if first {
		C.startFlagsMonitor()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if capsLockWatchers.remove(id) {
				C.stopFlagsMonitor()
			}
		})
	}, nil
}

// goCapsLockFlagsChanged 修饰键标志变化的 Go 回调函数（由 C 调用）
//
//export goCapsLockFlagsChanged
func goCapsLockFlagsChanged(keyCode C.int, on C.int) {
	capsLockWatchers.notify(int(keyCode), on != 0)
}
