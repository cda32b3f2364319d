package monitor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/scheduler"
	"github.com/chenyang-zz/capsflow/pkg/events"
	"github.com/chenyang-zz/capsflow/pkg/logger"
)

// KeySwitchMonitor 按键切换监控器（业务层）
//
// 负责把硬件按键转换交给 Interpreter。本监控器采用分层架构：
//   - 业务层（本结构体）：排队、决策、发布事件、锁定状态同步
//   - 平台层（hid 字段）：从 HID 设备读取原始按键转换
//
// 工作流程：
//  1. 平台层在事件线程上回调，转换被追加到有序队列后立即返回
//  2. 单个 goroutine 按顺序取出转换，投递到主循环调用 Interpreter.Decide
//     （决策要读取当前输入源，只能在主线程上进行）
//  3. 发生切换时发布 capslock_pressed 事件
//  4. 系统不自行管理锁定灯时，每次转换后延迟重新读取锁定状态
type KeySwitchMonitor struct {
	hid         platform.HIDMonitor
	latch       platform.CapsLockLatch
	caps        platform.Capabilities
	interpreter *Interpreter
	locales     LocaleReader
	sched       scheduler.Scheduler
	loop        platform.MainLoop
	eventBus    *events.EventBus
	resyncDelay time.Duration

	// queue 待处理的按键转换
	queue  []models.KeyTransition
	qmu    sync.Mutex
	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	cancelWatch func()

	// isRunning 监控器运行状态标志
	isRunning bool

	// mu 读写锁，保护并发访问
	mu sync.RWMutex
}

// KeySwitchOptions KeySwitchMonitor 的依赖
type KeySwitchOptions struct {
	HID         platform.HIDMonitor
	Latch       platform.CapsLockLatch
	Caps        platform.Capabilities
	Interpreter *Interpreter
	Locales     LocaleReader
	Scheduler   scheduler.Scheduler
	MainLoop    platform.MainLoop
	EventBus    *events.EventBus

	// ResyncDelay 转换后重新读取锁定状态的延迟
	ResyncDelay time.Duration
}

// NewKeySwitchMonitor 创建按键切换监控器
func NewKeySwitchMonitor(opts KeySwitchOptions) *KeySwitchMonitor {
	return &KeySwitchMonitor{
		hid:         opts.HID,
		latch:       opts.Latch,
		caps:        opts.Caps,
		interpreter: opts.Interpreter,
		locales:     opts.Locales,
		sched:       opts.Scheduler,
		loop:        opts.MainLoop,
		eventBus:    opts.EventBus,
		resyncDelay: opts.ResyncDelay,
	}
}

// Start 启动按键监控
//
// Returns: error - HID 设备无法打开时返回包装了 platform.ErrHIDOpenFailed 的错误
func (km *KeySwitchMonitor) Start() error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if km.isRunning {
		logger.Debug("按键切换监控器已在运行", zap.String("component", "keyswitch"))
		return nil
	}

	_, hasTertiary := km.locales.Tertiary()
	usages := models.WatchedUsages(hasTertiary)

	km.notify = make(chan struct{}, 1)
	km.done = make(chan struct{})

	if err := km.hid.Start(usages, km.enqueue); err != nil {
		logger.Error("打开 HID 键盘事件流失败",
			zap.String("component", "keyswitch"),
			zap.Error(err),
		)
		if !errors.Is(err, platform.ErrHIDOpenFailed) {
			err = fmt.Errorf("%w: %w", platform.ErrHIDOpenFailed, err)
		}
		return err
	}

	if km.caps.NativeCapsLockLatch {
		cancel, err := km.latch.Watch(km.interpreter.OnLatchChanged)
		if err != nil {
			logger.Warn("无法监听 Caps-Lock 锁定状态变化",
				zap.String("component", "keyswitch"),
				zap.Error(err),
			)
		}
		km.cancelWatch = cancel
	}

	km.wg.Add(1)
	go km.drain(km.done)

	km.isRunning = true
	logger.Info("按键切换监控器启动成功",
		zap.String("component", "keyswitch"),
		zap.Int("usages", len(usages)),
		zap.Bool("native_latch", km.caps.NativeCapsLockLatch),
	)
	return nil
}

// Stop 停止按键监控，未处理的转换会被丢弃
func (km *KeySwitchMonitor) Stop() error {
	km.mu.Lock()
	if !km.isRunning {
		km.mu.Unlock()
		logger.Debug("按键切换监控器未运行", zap.String("component", "keyswitch"))
		return nil
	}
	km.isRunning = false

	err := km.hid.Stop()
	if km.cancelWatch != nil {
		km.cancelWatch()
		km.cancelWatch = nil
	}
	close(km.done)
	km.mu.Unlock()

	km.wg.Wait()

	km.qmu.Lock()
	km.queue = nil
	km.qmu.Unlock()

	if err != nil {
		logger.Error("停止 HID 监控失败",
			zap.String("component", "keyswitch"),
			zap.Error(err),
		)
		return err
	}
	logger.Info("按键切换监控器已停止", zap.String("component", "keyswitch"))
	return nil
}

// IsRunning 检查运行状态
func (km *KeySwitchMonitor) IsRunning() bool {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.isRunning
}

// enqueue 平台层回调，只追加不处理
func (km *KeySwitchMonitor) enqueue(t models.KeyTransition) {
	km.qmu.Lock()
	km.queue = append(km.queue, t)
	km.qmu.Unlock()

	select {
	case km.notify <- struct{}{}:
	default:
	}
}

func (km *KeySwitchMonitor) drain(done <-chan struct{}) {
	defer km.wg.Done()

	for {
		select {
		case <-done:
			return
		case <-km.notify:
		}

		for {
			t, ok := km.pop()
			if !ok {
				break
			}
			km.loop.Dispatch(func() {
				select {
				case <-done:
					// 停止后主循环上残留的转换
					return
				default:
				}
				km.handle(t)
			})
		}
	}
}

func (km *KeySwitchMonitor) pop() (models.KeyTransition, bool) {
	km.qmu.Lock()
	defer km.qmu.Unlock()

	if len(km.queue) == 0 {
		return models.KeyTransition{}, false
	}
	t := km.queue[0]
	km.queue = km.queue[1:]
	return t, true
}

func (km *KeySwitchMonitor) handle(t models.KeyTransition) {
	decision := km.interpreter.Decide(t.Usage, t.Transition)

	if decision.Action != ActionNone {
		logger.Debug("Caps-Lock 已处理",
			zap.String("component", "keyswitch"),
			zap.String("action", decision.Action.String()),
			zap.String("locale", decision.Target.String()),
		)
		km.publish(decision)
	}

	if decision.Handled && !km.caps.NativeCapsLockLatch {
		km.sched.AfterFunc(km.resyncDelay, km.interpreter.SyncLatch)
	}
}

func (km *KeySwitchMonitor) publish(decision Decision) {
	if km.eventBus == nil {
		return
	}

	data := map[string]interface{}{
		events.DataKeyAction: decision.Action.String(),
	}
	if decision.Action == ActionSwitch {
		data[events.DataKeyLocale] = decision.Target.String()
	}

	event := events.NewEvent(events.EventTypeCapsLockPressed, data)
	if err := km.eventBus.Publish(*event); err != nil {
		logger.Debug("发布按键事件失败",
			zap.String("component", "keyswitch"),
			zap.Error(err),
		)
	}
}
