package platform

import (
	"context"
	"errors"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
)

var (
	// ErrUnsupported 当前操作系统不支持该功能
	ErrUnsupported = errors.New("platform: not supported on this OS")

	// ErrHIDOpenFailed 无法打开 HID 键盘事件流（通常是缺少输入监控权限）
	ErrHIDOpenFailed = errors.New("platform: failed to open HID keyboard stream")

	// ErrObserverFailed 无法为进程创建辅助功能观察器
	ErrObserverFailed = errors.New("platform: failed to create accessibility observer")

	// ErrAttributeUnsupported 元素不支持该属性
	ErrAttributeUnsupported = errors.New("platform: attribute not supported")
)

// KeyCallback HID 按键转换回调
//
// 在平台事件线程上同步调用，实现必须立即返回。
type KeyCallback func(models.KeyTransition)

// HIDMonitor 硬件按键监控器接口
//
// HIDMonitor 直接从 HID 设备读取键盘页的按键转换，不经过系统快捷键处理，
// 因此能拿到 Caps-Lock 的原始按下/抬起。
// 注意：在 macOS 上需要授予输入监控权限才能打开。
type HIDMonitor interface {
	// Start 启动监控
	// Parameters:
	//   - usages: 只上报这些用途码
	//   - callback: 按键转换回调
	// Returns: error - 无法打开设备时返回包装了 ErrHIDOpenFailed 的错误
	Start(usages []models.KeyUsage, callback KeyCallback) error

	// Stop 停止监控并释放设备
	Stop() error

	// IsRunning 检查运行状态
	IsRunning() bool
}

// InputSource 系统输入源句柄
//
// 句柄在进程生命周期内不变，只有选中状态会变化。
type InputSource interface {
	// ID 输入源标识，例如 com.apple.keylayout.ABC
	ID() string

	// Name 本地化名称
	Name() string

	// IsSelected 当前是否为选中的输入源
	IsSelected() bool

	// Select 选中该输入源
	Select() error
}

// InputSourceRegistry 系统文本输入源注册表
type InputSourceRegistry interface {
	// Sources 枚举所有可选中的键盘输入源
	Sources() ([]InputSource, error)

	// SelectedID 当前选中的键盘输入源标识
	SelectedID() (string, error)
}

// AppNotificationKind 应用生命周期通知类型
type AppNotificationKind string

const (
	AppLaunched    AppNotificationKind = "launch"
	AppTerminated  AppNotificationKind = "terminate"
	AppActivated   AppNotificationKind = "activate"
	AppDeactivated AppNotificationKind = "deactivate"
)

// AppNotification 应用生命周期通知
type AppNotification struct {
	// Kind 通知类型
	Kind AppNotificationKind

	// PID 进程 ID
	PID int

	// BundleID 应用 Bundle ID，可能为空
	BundleID string
}

// AppNotificationCallback 应用生命周期通知回调
type AppNotificationCallback func(AppNotification)

// WorkspaceMonitor 应用生命周期监控器接口
//
// 监听所有进程的启动、退出、激活、失活通知。
// 注意：在 macOS 上不需要特殊权限，但通知只在主循环运行时投递。
type WorkspaceMonitor interface {
	// Start 启动监听
	Start(callback AppNotificationCallback) error

	// Stop 停止监听
	Stop() error

	// IsRunning 检查运行状态
	IsRunning() bool

	// FrontmostPID 当前前台进程
	// Returns: 进程 ID，没有前台进程时第二个返回值为 false
	FrontmostPID() (int, bool)
}

// WindowCallback 新窗口回调
type WindowCallback func(UIElement)

// Observation 一个进程级的辅助功能观察器注册
type Observation interface {
	// PID 被观察的进程
	PID() int

	// Cancel 注销观察器并释放资源，重复调用安全
	Cancel() error
}

// AccessibilityObserver 辅助功能观察器工厂
type AccessibilityObserver interface {
	// Observe 监听 pid 进程的窗口创建通知
	// Returns: error - 无法创建观察器时返回包装了 ErrObserverFailed 的错误
	Observe(pid int, callback WindowCallback) (Observation, error)
}

// UIElement 不透明的辅助功能元素句柄
type UIElement interface {
	// Attribute 读取属性，元素不支持时返回 ErrAttributeUnsupported
	Attribute(name string) (Value, error)

	// SetPosition 设置窗口位置，必须在主循环上调用
	SetPosition(p Point) error

	// PID 元素所属进程
	PID() int
}

// CapsLockLatch 系统 Caps-Lock 锁定状态
type CapsLockLatch interface {
	// Get 读取锁定状态
	Get() (bool, error)

	// Set 设置锁定状态
	Set(on bool) error

	// Watch 监听带外的锁定状态变化（修饰键标志变化）
	// Returns: cancel - 取消监听
	Watch(callback func(on bool)) (cancel func(), err error)
}

// MainLoop 主线程事件循环
//
// 所有绑定 UI 线程的系统调用（窗口重定位、输入源选择）都通过 Dispatch 投递。
type MainLoop interface {
	// Dispatch 把 fn 投递到主循环执行，不等待完成
	Dispatch(fn func())

	// Run 在调用方线程运行主循环直到 ctx 结束
	// 必须在锁定的主 OS 线程上调用
	Run(ctx context.Context) error
}

// Platform 当前操作系统的全部适配器
type Platform struct {
	HID           HIDMonitor
	InputSources  InputSourceRegistry
	Workspace     WorkspaceMonitor
	Accessibility AccessibilityObserver
	Latch         CapsLockLatch
	MainLoop      MainLoop
	Permissions   PermissionChecker
	Capabilities  Capabilities
}

// New 创建当前操作系统的平台适配器集合
func New() *Platform {
	return &Platform{
		HID:           NewHIDMonitor(),
		InputSources:  NewInputSourceRegistry(),
		Workspace:     NewWorkspaceMonitor(),
		Accessibility: NewAccessibilityObserver(),
		Latch:         NewCapsLockLatch(),
		MainLoop:      NewMainLoop(),
		Permissions:   NewPermissionChecker(),
		Capabilities:  DetectCapabilities(),
	}
}
