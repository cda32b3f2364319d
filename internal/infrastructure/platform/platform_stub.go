//go:build !darwin

package platform

import (
	"fmt"
	"sync"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
)

// StubHIDMonitor HID 监控器的 stub 实现（非 macOS 平台）
type StubHIDMonitor struct{}

// NewHIDMonitor 创建 HID 监控器的 stub 实现
func NewHIDMonitor() HIDMonitor {
	return &StubHIDMonitor{}
}

// Start 在非 macOS 平台上始终返回 ErrHIDOpenFailed
func (m *StubHIDMonitor) Start(usages []models.KeyUsage, callback KeyCallback) error {
	return fmt.Errorf("%w: %w", ErrHIDOpenFailed, ErrUnsupported)
}

func (m *StubHIDMonitor) Stop() error     { return nil }
func (m *StubHIDMonitor) IsRunning() bool { return false }

// StubInputSourceRegistry 输入源注册表的 stub 实现
type StubInputSourceRegistry struct{}

// NewInputSourceRegistry 创建输入源注册表的 stub 实现
func NewInputSourceRegistry() InputSourceRegistry {
	return &StubInputSourceRegistry{}
}

func (r *StubInputSourceRegistry) Sources() ([]InputSource, error) {
	return nil, fmt.Errorf("enumerate input sources: %w", ErrUnsupported)
}

func (r *StubInputSourceRegistry) SelectedID() (string, error) {
	return "", fmt.Errorf("current input source: %w", ErrUnsupported)
}

// StubWorkspaceMonitor 应用生命周期监控器的 stub 实现
type StubWorkspaceMonitor struct {
	mu sync.RWMutex
}

// NewWorkspaceMonitor 创建应用生命周期监控器的 stub 实现
func NewWorkspaceMonitor() WorkspaceMonitor {
	return &StubWorkspaceMonitor{}
}

// Start 在非 macOS 平台上始终返回错误
func (m *StubWorkspaceMonitor) Start(callback AppNotificationCallback) error {
	return fmt.Errorf("应用生命周期监控: %w", ErrUnsupported)
}

func (m *StubWorkspaceMonitor) Stop() error               { return nil }
func (m *StubWorkspaceMonitor) IsRunning() bool           { return false }
func (m *StubWorkspaceMonitor) FrontmostPID() (int, bool) { return 0, false }

// StubAccessibilityObserver 辅助功能观察器的 stub 实现
type StubAccessibilityObserver struct{}

// NewAccessibilityObserver 创建辅助功能观察器的 stub 实现
func NewAccessibilityObserver() AccessibilityObserver {
	return &StubAccessibilityObserver{}
}

func (o *StubAccessibilityObserver) Observe(pid int, callback WindowCallback) (Observation, error) {
	return nil, fmt.Errorf("%w: %w", ErrObserverFailed, ErrUnsupported)
}

// StubCapsLockLatch Caps-Lock 锁定状态的 stub 实现
type StubCapsLockLatch struct{}

// NewCapsLockLatch 创建 Caps-Lock 锁定状态的 stub 实现
func NewCapsLockLatch() CapsLockLatch {
	return &StubCapsLockLatch{}
}

func (l *StubCapsLockLatch) Get() (bool, error) { return false, ErrUnsupported }
func (l *StubCapsLockLatch) Set(on bool) error  { return ErrUnsupported }

func (l *StubCapsLockLatch) Watch(callback func(on bool)) (func(), error) {
	return func() {}, ErrUnsupported
}

// NewMainLoop 非 macOS 平台使用纯 Go 主循环
func NewMainLoop() MainLoop {
	return NewQueueMainLoop()
}
