//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa

#include <stdint.h>
#include <Cocoa/Cocoa.h>

// goMainLoopRun Go 层的回调函数声明
extern void goMainLoopRun(uintptr_t handle);

// mainLoopTrampoline 主队列回调（static 避免符号冲突）
static void mainLoopTrampoline(void* ctx) {
    goMainLoopRun((uintptr_t)ctx);
}

// dispatchMain 把句柄投递到主队列
static void dispatchMain(uintptr_t handle) {
    dispatch_async_f(dispatch_get_main_queue(), (void*)handle, mainLoopTrampoline);
}

// prepareApplication 初始化无 Dock 图标的 NSApplication
static void prepareApplication() {
    @autoreleasepool {
        [NSApplication sharedApplication];
        [NSApp setActivationPolicy:NSApplicationActivationPolicyAccessory];
        [NSApp finishLaunching];
    }
}

// runMainLoopSlice 运行主 run loop 0.1 秒，期间处理主队列和事件源
static void runMainLoopSlice() {
    @autoreleasepool {
        NSEvent* event;
        while ((event = [NSApp nextEventMatchingMask:NSEventMaskAny
                                           untilDate:nil
                                              inMode:NSDefaultRunLoopMode
                                             dequeue:YES]) != nil) {
            [NSApp sendEvent:event];
        }
        CFRunLoopRunInMode(kCFRunLoopDefaultMode, 0.1, false);
    }
}
*/
import "C"
import (
	"context"
	"runtime/cgo"

	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/pkg/logger"
)

// DarwinMainLoop 基于主线程 CFRunLoop 和主 dispatch 队列的主循环
type DarwinMainLoop struct{}

// NewMainLoop 创建 macOS 主循环
func NewMainLoop() MainLoop {
	return &DarwinMainLoop{}
}

// Dispatch 把 fn 投递到主 dispatch 队列
func (l *DarwinMainLoop) Dispatch(fn func()) {
	h := cgo.NewHandle(fn)
	C.dispatchMain(C.uintptr_t(h))
}

// Run 在主线程上运行 run loop 直到 ctx 结束
//
// 调用方必须在 init 中 runtime.LockOSThread 并从 main goroutine 调用。
// NSWorkspace 通知、AXObserver 回调、NSEvent 全局监听都依赖它。
func (l *DarwinMainLoop) Run(ctx context.Context) error {
	C.prepareApplication()
	logger.Info("主循环启动", zap.String("component", "mainloop"))

	for {
		C.runMainLoopSlice()

		select {
		case <-ctx.Done():
			logger.Info("主循环退出", zap.String("component", "mainloop"))
			return nil
		default:
		}
	}
}

// goMainLoopRun 主队列回调的 Go 入口（由 C 调用）
//
//export goMainLoopRun
func goMainLoopRun(handle C.uintptr_t) {
	h := cgo.Handle(handle)
	fn, _ := h.Value().(func())
	h.Delete()

	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("主循环任务 panic",
				zap.String("component", "mainloop"),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
