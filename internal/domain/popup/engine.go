package popup

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/internal/domain/monitor"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/config"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/scheduler"
	"github.com/chenyang-zz/capsflow/pkg/events"
	"github.com/chenyang-zz/capsflow/pkg/logger"
)

// State 弹窗抑制状态
type State int

const (
	// StateIdle 未启动
	StateIdle State = iota

	// StateArmed 等待新窗口
	StateArmed

	// StateDestroying 正在反复把弹窗移出屏幕
	StateDestroying

	// StateCoolDown 销毁完成后的冷却期
	StateCoolDown
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateDestroying:
		return "destroying"
	case StateCoolDown:
		return "cool_down"
	default:
		return "idle"
	}
}

// PressClock 提供最近一次 Caps-Lock 按下时间
type PressClock interface {
	LastPressedAt() time.Time
}

// 销毁事件的 action 字段
const (
	ActionDestroyed = "destroyed"
	ActionImmediate = "immediate"
)

/**
 * Engine 弹窗抑制引擎
 *
 * 状态转换：
 *   Idle --Start--> Armed
 *   Armed --匹配的新窗口--> Destroying --重定位完成--> CoolDown --冷却结束--> Armed
 *   任意状态 --Stop--> Idle
 *
 * Armed 时新窗口距上次 Caps-Lock 按下不足 Gate 会被忽略。
 * Destroying 和 CoolDown 期间有第二个订阅：匹配的窗口不检查 Gate，立即移出屏幕一次。
 * 重定位命令投递到主循环执行。
 *
 * 窗口走哪条路径由事件发布时的状态决定（订阅过滤器在发布方执行），
 * 与订阅者何时处理无关。冷却结束时第二个订阅退役而不是取消，已入队的窗口照常处理。
 */
type Engine struct {
	observer   monitor.Monitor
	eventBus   *events.EventBus
	session    PressClock
	classifier *Classifier
	sched      scheduler.Scheduler
	loop       platform.MainLoop
	cfg        config.PopupConfig

	mu           sync.Mutex
	state        State
	armedSub     string
	immediateSub string
	timer        scheduler.Timer
	generation   uint64

	// run 每次 Start/Stop 加一，用于识别上一次运行遗留的处理
	run uint64
}

// EngineOptions Engine 的依赖
type EngineOptions struct {
	Observer  monitor.Monitor
	EventBus  *events.EventBus
	Session   PressClock
	Scheduler scheduler.Scheduler
	MainLoop  platform.MainLoop
	Config    config.PopupConfig
}

// NewEngine 创建弹窗抑制引擎
func NewEngine(opts EngineOptions) *Engine {
	return &Engine{
		observer:   opts.Observer,
		eventBus:   opts.EventBus,
		session:    opts.Session,
		classifier: NewClassifier(opts.Config.Signature),
		sched:      opts.Scheduler,
		loop:       opts.MainLoop,
		cfg:        opts.Config,
	}
}

// State 当前状态
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsRunning 是否已启动
func (e *Engine) IsRunning() bool {
	return e.State() != StateIdle
}

/**
 * Start 启动弹窗抑制
 *
 * 确保窗口观察器在运行，订阅窗口创建事件并进入 Armed。已启动时返回 nil。
 *
 * Returns: error - 窗口观察器启动失败
 */
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle {
		logger.Warn("弹窗抑制已在运行", zap.String("component", "popup_engine"))
		return nil
	}

	if !e.observer.IsRunning() {
		if err := e.observer.Start(); err != nil {
			logger.Error("启动窗口观察器失败",
				zap.String("component", "popup_engine"),
				zap.Error(err),
			)
			return err
		}
	}

	e.generation++
	e.run++
	e.armedSub = e.eventBus.SubscribeWithFilter(
		events.EventTypeWindowCreated,
		e.onArmedWindow,
		e.arrivedIn(StateArmed),
	)
	e.setStateLocked(StateArmed)
	return nil
}

/**
 * Stop 停止弹窗抑制
 *
 * 取消两个订阅和所有定时器，停止窗口观察器并回到 Idle。
 * 正在进行的销毁序列被中断，弹窗停留在最后一次重定位的位置。
 */
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		logger.Warn("弹窗抑制未运行", zap.String("component", "popup_engine"))
		return nil
	}

	e.generation++
	e.run++
	e.stopTimerLocked()
	e.unsubscribeImmediateLocked()
	if e.armedSub != "" {
		e.eventBus.Unsubscribe(e.armedSub)
		e.armedSub = ""
	}
	e.setStateLocked(StateIdle)
	e.mu.Unlock()

	return e.observer.Stop()
}

// onArmedWindow 主订阅：检查 Gate 和结构特征后开始销毁
func (e *Engine) onArmedWindow(event events.Event) error {
	element, ok := elementOf(event)
	if !ok {
		return nil
	}

	e.mu.Lock()
	state, gen := e.state, e.generation
	e.mu.Unlock()

	if state != StateArmed {
		return nil
	}

	elapsed := e.sched.Now().Sub(e.session.LastPressedAt())
	if elapsed < e.cfg.Gate {
		logger.Debug("距上次按键太近，忽略新窗口",
			zap.String("component", "popup_engine"),
			zap.Duration("elapsed", elapsed),
		)
		return nil
	}

	if !e.classifier.Matches(NewSnapshot(element)) {
		return nil
	}

	e.mu.Lock()
	// 识别期间状态可能已经变化
	if e.state != StateArmed || e.generation != gen {
		e.mu.Unlock()
		return nil
	}

	logger.Info("识别到输入法切换弹窗",
		zap.String("component", "popup_engine"),
		zap.Int("pid", element.PID()),
	)
	finished := e.beginDestroyingLocked(element)
	e.mu.Unlock()

	if finished {
		e.publish(element, ActionDestroyed, e.cfg.Repeats)
	}
	return nil
}

// arrivedIn 订阅过滤器，在发布方按发布时刻的状态筛选窗口
func (e *Engine) arrivedIn(states ...State) events.EventFilter {
	return func(events.Event) bool {
		e.mu.Lock()
		defer e.mu.Unlock()

		for _, s := range states {
			if e.state == s {
				return true
			}
		}
		return false
	}
}

// immediateHandler 第二订阅：销毁期间出现的匹配窗口立即移出屏幕
//
// 过滤器已保证窗口在 Destroying 或 CoolDown 期间到达，处理时不再看当前状态，
// 只确认引擎没有在此期间被停止。
func (e *Engine) immediateHandler(run uint64) events.EventHandler {
	return func(event events.Event) error {
		element, ok := elementOf(event)
		if !ok {
			return nil
		}
		if !e.classifier.Matches(NewSnapshot(element)) {
			return nil
		}

		e.mu.Lock()
		if e.run != run {
			e.mu.Unlock()
			return nil
		}
		logger.Info("销毁期间出现新的弹窗，立即移出屏幕",
			zap.String("component", "popup_engine"),
			zap.Int("pid", element.PID()),
		)
		e.reposition(element)
		e.mu.Unlock()

		e.publish(element, ActionImmediate, 1)
		return nil
	}
}

// beginDestroyingLocked 调用方持有 e.mu
//
// Returns: bool - 重定位是否已全部完成（Repeats 为 1 时）
func (e *Engine) beginDestroyingLocked(element platform.UIElement) bool {
	e.generation++
	gen := e.generation

	e.setStateLocked(StateDestroying)
	e.retireImmediateLocked()
	e.immediateSub = e.eventBus.SubscribeWithFilter(
		events.EventTypeWindowCreated,
		e.immediateHandler(e.run),
		e.arrivedIn(StateDestroying, StateCoolDown),
	)

	e.reposition(element)
	return e.scheduleRepeatLocked(element, gen, 1)
}

// scheduleRepeatLocked 安排第 done+1 次重定位，done 达到 Repeats 后进入冷却
//
// Returns: bool - 是否进入了冷却
func (e *Engine) scheduleRepeatLocked(element platform.UIElement, gen uint64, done int) bool {
	if done >= e.cfg.Repeats {
		e.enterCoolDownLocked(gen)
		return true
	}

	e.timer = e.sched.AfterFunc(e.cfg.Interval, func() {
		e.mu.Lock()
		if e.generation != gen {
			e.mu.Unlock()
			return
		}
		e.reposition(element)
		finished := e.scheduleRepeatLocked(element, gen, done+1)
		e.mu.Unlock()

		if finished {
			e.publish(element, ActionDestroyed, done+1)
		}
	})
	return false
}

func (e *Engine) enterCoolDownLocked(gen uint64) {
	e.setStateLocked(StateCoolDown)

	e.timer = e.sched.AfterFunc(e.cfg.CoolDown, func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		if e.generation != gen {
			return
		}
		e.timer = nil
		e.setStateLocked(StateArmed)
		e.retireImmediateLocked()
	})
}

func (e *Engine) reposition(element platform.UIElement) {
	target := platform.Point{X: e.cfg.OffscreenX, Y: e.cfg.OffscreenY}

	e.loop.Dispatch(func() {
		if err := element.SetPosition(target); err != nil {
			logger.Debug("移动弹窗失败",
				zap.String("component", "popup_engine"),
				zap.Error(err),
			)
		}
	})
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// retireImmediateLocked 第二订阅不再接收新窗口，队列中已到达的窗口仍会处理
func (e *Engine) retireImmediateLocked() {
	if e.immediateSub != "" {
		e.eventBus.Retire(e.immediateSub)
		e.immediateSub = ""
	}
}

func (e *Engine) unsubscribeImmediateLocked() {
	if e.immediateSub != "" {
		e.eventBus.Unsubscribe(e.immediateSub)
		e.immediateSub = ""
	}
}

func (e *Engine) setStateLocked(state State) {
	if e.state == state {
		return
	}

	logger.Debug("弹窗抑制状态变化",
		zap.String("component", "popup_engine"),
		zap.String("from", e.state.String()),
		zap.String("to", state.String()),
	)
	e.state = state
}

func (e *Engine) publish(element platform.UIElement, action string, repeats int) {
	event := events.NewEvent(events.EventTypePopupDestroyed, map[string]interface{}{
		events.DataKeyPID:    element.PID(),
		events.DataKeyAction: action,
		"repeats":            repeats,
	})
	if err := e.eventBus.Publish(*event); err != nil {
		logger.Debug("发布销毁事件失败",
			zap.String("component", "popup_engine"),
			zap.Error(err),
		)
	}
}

func elementOf(event events.Event) (platform.UIElement, bool) {
	element, ok := event.Data[events.DataKeyElement].(platform.UIElement)
	return element, ok && element != nil
}
