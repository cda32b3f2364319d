/**
 * Package monitor 提供业务层监控器
 *
 * 业务层监控器包装平台层适配器：
 *   - KeySwitchMonitor: 硬件按键 → Caps-Lock 决策 → 输入源切换
 *   - WindowObserver: 应用生命周期 → 前台进程窗口创建事件
 *
 * 两者共享的唯一状态是 CapsLockSession。
 */
package monitor

// Monitor 监控器接口
//
// 所有业务层监控器都实现此接口，提供统一的启动、停止和状态查询方法。
type Monitor interface {
	// Start 启动监控
	Start() error

	// Stop 停止监控
	Stop() error

	// IsRunning 检查运行状态
	IsRunning() bool
}
