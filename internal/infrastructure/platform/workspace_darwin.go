//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa

#include <Cocoa/Cocoa.h>
#include <stdlib.h>

// 前向声明 Go 函数
extern void goWorkspaceNotification(int kind, int pid, char* bundleID);

// 已注册的通知观察者，停止时逐个移除
static NSMutableArray* workspaceObservers = nil;

// workspaceCallback NSWorkspace 通知回调（static 避免符号冲突）
// Parameters: kind - 0=启动 1=退出 2=激活 3=失活, note - 通知对象
static void workspaceCallback(int kind, NSNotification* note) {
    @autoreleasepool {
        NSRunningApplication* app = [note.userInfo objectForKey:NSWorkspaceApplicationKey];
        if (app == nil) {
            return;
        }
        const char* bundleID = [[app bundleIdentifier] UTF8String];
        goWorkspaceNotification(kind, (int)[app processIdentifier], (char*)(bundleID ? bundleID : ""));
    }
}

// startWorkspaceMonitoring 注册启动/退出/激活/失活四个通知
// 回调在主队列上执行，需要主循环运行
// Returns: 0=成功, -1=失败
static int startWorkspaceMonitoring() {
    @autoreleasepool {
        NSNotificationCenter* center = [NSWorkspace sharedWorkspace].notificationCenter;
        NSArray* names = @[
            NSWorkspaceDidLaunchApplicationNotification,
            NSWorkspaceDidTerminateApplicationNotification,
            NSWorkspaceDidActivateApplicationNotification,
            NSWorkspaceDidDeactivateApplicationNotification,
        ];

        workspaceObservers = [[NSMutableArray alloc] init];
        for (int i = 0; i < (int)names.count; i++) {
            int kind = i;
            id observer = [center addObserverForName:names[i]
                                              object:nil
                                               queue:[NSOperationQueue mainQueue]
                                          usingBlock:^(NSNotification* note) {
                workspaceCallback(kind, note);
            }];
            if (observer == nil) {
                return -1;
            }
            [workspaceObservers addObject:observer];
        }
        return 0;
    }
}

// stopWorkspaceMonitoring 移除所有已注册的通知观察者
static void stopWorkspaceMonitoring() {
    @autoreleasepool {
        NSNotificationCenter* center = [NSWorkspace sharedWorkspace].notificationCenter;
        for (id observer in workspaceObservers) {
            [center removeObserver:observer];
        }
        workspaceObservers = nil;
    }
}

// frontmostPID 当前前台应用的进程 ID
// Returns: 进程 ID，没有前台应用返回 -1
static int frontmostPID() {
    @autoreleasepool {
        NSRunningApplication* app = [[NSWorkspace sharedWorkspace] frontmostApplication];
        if (app == nil) {
            return -1;
        }
        return (int)[app processIdentifier];
    }
}
*/
import "C"
import (
	"fmt"
	"sync"
)

// DarwinWorkspaceMonitor macOS 平台的应用生命周期监控器实现
type DarwinWorkspaceMonitor struct {
	// callback Go 回调函数
	callback AppNotificationCallback

	// isRunning 监控器运行状态
	isRunning bool

	// mu 互斥锁，保护并发访问
	mu sync.RWMutex
}

// 全局监控器实例（用于 C 回调）
var (
	defaultWorkspaceMonitor *DarwinWorkspaceMonitor
	workspaceMonitorMutex   sync.Mutex
)

var notificationKinds = [...]AppNotificationKind{AppLaunched, AppTerminated, AppActivated, AppDeactivated}

// NewWorkspaceMonitor 创建 macOS 平台的应用生命周期监控器
func NewWorkspaceMonitor() WorkspaceMonitor {
	return &DarwinWorkspaceMonitor{}
}

// Start 注册 NSWorkspace 通知
// Parameters: callback - 通知回调，在主循环上调用
// Returns: error - 已运行或注册失败时返回错误
func (m *DarwinWorkspaceMonitor) Start(callback AppNotificationCallback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("workspace monitor already running")
	}

	m.callback = callback

	workspaceMonitorMutex.Lock()
	defaultWorkspaceMonitor = m
	workspaceMonitorMutex.Unlock()

	if C.startWorkspaceMonitoring() != 0 {
		C.stopWorkspaceMonitoring()
		workspaceMonitorMutex.Lock()
		defaultWorkspaceMonitor = nil
		workspaceMonitorMutex.Unlock()
		return fmt.Errorf("启动应用生命周期监控失败")
	}

	m.isRunning = true
	return nil
}

// Stop 移除通知观察者
func (m *DarwinWorkspaceMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return fmt.Errorf("workspace monitor not running")
	}

	C.stopWorkspaceMonitoring()

	workspaceMonitorMutex.Lock()
	defaultWorkspaceMonitor = nil
	workspaceMonitorMutex.Unlock()

	m.callback = nil
	m.isRunning = false
	return nil
}

// IsRunning 检查运行状态
func (m *DarwinWorkspaceMonitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}

// FrontmostPID 当前前台进程
func (m *DarwinWorkspaceMonitor) FrontmostPID() (int, bool) {
	pid := int(C.frontmostPID())
	if pid < 0 {
		return 0, false
	}
	return pid, true
}

func (m *DarwinWorkspaceMonitor) handleNotification(n AppNotification) {
	m.mu.RLock()
	callback := m.callback
	m.mu.RUnlock()

	if callback != nil {
		callback(n)
	}
}

// goWorkspaceNotification 应用生命周期通知的 Go 回调函数（由 C 调用）
//
//export goWorkspaceNotification
func goWorkspaceNotification(kind, pid C.int, bundleID *C.char) {
	workspaceMonitorMutex.Lock()
	m := defaultWorkspaceMonitor
	workspaceMonitorMutex.Unlock()

	if m == nil || int(kind) < 0 || int(kind) >= len(notificationKinds) {
		return
	}

	m.handleNotification(AppNotification{
		Kind:     notificationKinds[kind],
		PID:      int(pid),
		BundleID: C.GoString(bundleID),
	})
}
