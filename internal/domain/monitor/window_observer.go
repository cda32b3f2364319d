package monitor

import (
	"sync"
	"time"

	"github.com/bep/debounce"
	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/scheduler"
	"github.com/chenyang-zz/capsflow/pkg/events"
	"github.com/chenyang-zz/capsflow/pkg/logger"
)

// Debouncer 创建尾部去抖函数，与 debounce.New 的签名一致
type Debouncer func(after time.Duration) func(f func())

// WindowObserver 前台进程窗口观察器（业务层）
//
// 监听应用生命周期通知，去抖并等待稳定后把唯一的辅助功能观察器挂到前台进程上，
// 前台进程创建的每个窗口都以 window_created 事件发布到事件总线。
//
// 任何时刻最多只有一个存活的观察器，替换前一定先注销旧的。
// 观察器的挂载和注销都在主循环上执行，与辅助功能回调在同一线程。
type WindowObserver struct {
	workspace platform.WorkspaceMonitor
	ax        platform.AccessibilityObserver
	sched     scheduler.Scheduler
	loop      platform.MainLoop
	eventBus  *events.EventBus

	debounceDelay time.Duration
	settleDelay   time.Duration
	newDebouncer  Debouncer

	debounced  func(func())
	settle     scheduler.Timer
	handle     platform.Observation
	generation uint64

	// isRunning 监控器运行状态标志
	isRunning bool

	// mu 保护以上所有字段
	mu sync.Mutex
}

// WindowObserverOption WindowObserver 可选配置
type WindowObserverOption func(*WindowObserver)

// WithDebouncer 替换去抖实现，测试中用基于 Scheduler 的实现
func WithDebouncer(d Debouncer) WindowObserverOption {
	return func(w *WindowObserver) {
		w.newDebouncer = d
	}
}

/**
 * NewWindowObserver 创建窗口观察器
 *
 * Parameters:
 *   - workspace: 应用生命周期监控器
 *   - ax: 辅助功能观察器工厂
 *   - sched: 调度器，用于稳定等待
 *   - loop: 主循环，观察器在其上挂载和注销
 *   - eventBus: 事件总线
 *   - debounceDelay: 生命周期通知的去抖时间
 *   - settleDelay: 去抖之后的稳定等待
 */
func NewWindowObserver(
	workspace platform.WorkspaceMonitor,
	ax platform.AccessibilityObserver,
	sched scheduler.Scheduler,
	loop platform.MainLoop,
	eventBus *events.EventBus,
	debounceDelay, settleDelay time.Duration,
	opts ...WindowObserverOption,
) *WindowObserver {
	w := &WindowObserver{
		workspace:     workspace,
		ax:            ax,
		sched:         sched,
		loop:          loop,
		eventBus:      eventBus,
		debounceDelay: debounceDelay,
		settleDelay:   settleDelay,
		newDebouncer:  debounce.New,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start 开始监听应用生命周期
//
// 已在运行时记录警告并返回 nil。启动后会立即按相同的去抖路径解析一次前台进程。
func (w *WindowObserver) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		logger.Warn("窗口观察器已在运行", zap.String("component", "window_observer"))
		return nil
	}

	w.generation++
	w.debounced = w.newDebouncer(w.debounceDelay)

	if err := w.workspace.Start(w.onAppNotification); err != nil {
		logger.Error("启动应用生命周期监听失败",
			zap.String("component", "window_observer"),
			zap.Error(err),
		)
		return err
	}

	w.isRunning = true
	w.scheduleResolveLocked()

	logger.Info("窗口观察器启动成功", zap.String("component", "window_observer"))
	return nil
}

// Stop 停止监听并注销观察器
//
// 未运行时记录警告并返回 nil。没有观察器时同样安全。
func (w *WindowObserver) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		logger.Warn("窗口观察器未运行", zap.String("component", "window_observer"))
		return nil
	}

	w.isRunning = false
	w.generation++

	// 用空函数替换尚未触发的去抖回调
	w.debounced(func() {})
	if w.settle != nil {
		w.settle.Stop()
		w.settle = nil
	}
	if h := w.takeHandleLocked(); h != nil {
		w.loop.Dispatch(func() {
			cancelObservation(h)
		})
	}

	err := w.workspace.Stop()
	if err != nil {
		logger.Warn("停止应用生命周期监听失败",
			zap.String("component", "window_observer"),
			zap.Error(err),
		)
	}

	logger.Info("窗口观察器已停止", zap.String("component", "window_observer"))
	return err
}

// IsRunning 检查运行状态
func (w *WindowObserver) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

// ObservedPID 当前观察的进程，没有观察器时第二个返回值为 false
func (w *WindowObserver) ObservedPID() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.handle == nil {
		return 0, false
	}
	return w.handle.PID(), true
}

func (w *WindowObserver) onAppNotification(n platform.AppNotification) {
	w.publish(events.EventTypeAppLifecycle, events.AppLifecycleEventData{
		Kind:     string(n.Kind),
		PID:      n.PID,
		BundleID: n.BundleID,
	}.ToMap())

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return
	}
	w.scheduleResolveLocked()
}

// scheduleResolveLocked 调用方持有 w.mu
func (w *WindowObserver) scheduleResolveLocked() {
	gen := w.generation
	w.debounced(func() {
		w.mu.Lock()
		defer w.mu.Unlock()

		if gen != w.generation {
			return
		}
		if w.settle != nil {
			w.settle.Stop()
		}
		w.settle = w.sched.AfterFunc(w.settleDelay, func() {
			w.loop.Dispatch(func() {
				w.resolve(gen)
			})
		})
	})
}

// resolve 把观察器挂到当前前台进程上，在主循环上执行
func (w *WindowObserver) resolve(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.generation {
		return
	}
	w.settle = nil

	cancelObservation(w.takeHandleLocked())

	pid, ok := w.workspace.FrontmostPID()
	if !ok {
		logger.Debug("没有前台进程", zap.String("component", "window_observer"))
		return
	}

	handle, err := w.ax.Observe(pid, w.onWindowCreated)
	if err != nil {
		logger.Warn("无法观察前台进程",
			zap.String("component", "window_observer"),
			zap.Int("pid", pid),
			zap.Error(err),
		)
		return
	}

	w.handle = handle
	logger.Debug("开始观察前台进程",
		zap.String("component", "window_observer"),
		zap.Int("pid", pid),
	)
}

// takeHandleLocked 取走当前观察器，调用方持有 w.mu
func (w *WindowObserver) takeHandleLocked() platform.Observation {
	h := w.handle
	w.handle = nil
	return h
}

// cancelObservation 注销观察器，h 为 nil 时什么都不做
func cancelObservation(h platform.Observation) {
	if h == nil {
		return
	}
	if err := h.Cancel(); err != nil {
		logger.Warn("注销观察器失败",
			zap.String("component", "window_observer"),
			zap.Int("pid", h.PID()),
			zap.Error(err),
		)
	}
}

func (w *WindowObserver) onWindowCreated(element platform.UIElement) {
	w.publish(events.EventTypeWindowCreated, map[string]interface{}{
		events.DataKeyPID:     element.PID(),
		events.DataKeyElement: element,
	})
}

func (w *WindowObserver) publish(eventType events.EventType, data map[string]interface{}) {
	if w.eventBus == nil {
		return
	}

	event := events.NewEvent(eventType, data)
	if err := w.eventBus.Publish(*event); err != nil {
		logger.Debug("发布事件失败",
			zap.String("component", "window_observer"),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}
