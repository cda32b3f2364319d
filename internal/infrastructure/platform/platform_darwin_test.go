//go:build darwin

package platform

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
)

// TestInputSourceRegistry_Sources 测试枚举系统输入源
func TestInputSourceRegistry_Sources(t *testing.T) {
	registry := NewInputSourceRegistry()

	sources, err := registry.Sources()
	require.NoError(t, err)
	require.NotEmpty(t, sources, "系统至少有一个键盘输入源")

	selected := 0
	for _, src := range sources {
		assert.NotEmpty(t, src.ID())
		if src.IsSelected() {
			selected++
		}
	}

	id, err := registry.SelectedID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.LessOrEqual(t, selected, 1)
}

// TestHIDMonitor_StartStop 测试 HID 监控的启动和停止
//
// 如果缺少输入监控权限，测试会被跳过。
func TestHIDMonitor_StartStop(t *testing.T) {
	monitor := NewHIDMonitor()
	assert.False(t, monitor.IsRunning())

	err := monitor.Start(models.WatchedUsages(true), func(models.KeyTransition) {})
	if err != nil {
		t.Skipf("需要输入监控权限，跳过测试: %v", err)
	}
	assert.True(t, monitor.IsRunning())

	assert.Error(t, monitor.Start(nil, nil), "重复启动应该失败")

	require.NoError(t, monitor.Stop())
	assert.False(t, monitor.IsRunning())
	assert.Error(t, monitor.Stop(), "未运行时停止应该失败")
}

// TestCapsLockLatch_Get 测试读取 Caps-Lock 锁定状态
func TestCapsLockLatch_Get(t *testing.T) {
	latch := NewCapsLockLatch()
	if _, err := latch.Get(); err != nil {
		t.Skipf("无法访问 IOHIDSystem，跳过测试: %v", err)
	}
}

// TestWorkspaceMonitor_FrontmostPID 测试读取前台进程
func TestWorkspaceMonitor_FrontmostPID(t *testing.T) {
	monitor := NewWorkspaceMonitor()
	pid, ok := monitor.FrontmostPID()
	if !ok {
		t.Skip("没有前台应用（无图形会话）")
	}
	assert.Greater(t, pid, 0)
}

// TestObservation_RetiredIgnored 测试注销后的观察器编号查不到注册
func TestObservation_RetiredIgnored(t *testing.T) {
	obs := &darwinObservation{id: ^uintptr(0), pid: 1}
	axObservationMutex.Lock()
	axObservations[obs.id] = obs
	axObservationMutex.Unlock()

	assert.Same(t, obs, lookupObservation(obs.id))
	obs.retire()
	assert.Nil(t, lookupObservation(obs.id))
}

// TestAccessibilityObserver_CancelRetires 测试 Cancel 摘掉注册且可以重复调用
//
// 如果缺少辅助功能权限，测试会被跳过。
func TestAccessibilityObserver_CancelRetires(t *testing.T) {
	handle, err := NewAccessibilityObserver().Observe(os.Getpid(), func(UIElement) {})
	if err != nil {
		t.Skipf("需要辅助功能权限，跳过测试: %v", err)
	}
	obs := handle.(*darwinObservation)
	require.Same(t, obs, lookupObservation(obs.id))

	require.NoError(t, handle.Cancel())
	assert.Nil(t, lookupObservation(obs.id))
	assert.NoError(t, handle.Cancel())
}
