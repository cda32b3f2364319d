package monitor

import (
	"sync"

	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/scheduler"
	"github.com/chenyang-zz/capsflow/pkg/logger"
)

// LocaleReader 读取当前输入源
type LocaleReader interface {
	Current() models.Locale
	Tertiary() (models.Locale, bool)
}

// LocaleSwitcher 发起输入源切换
type LocaleSwitcher interface {
	SwitchTo(target models.Locale) error
}

// ModifierState 修饰键状态，只由对应按键的转换修改
type ModifierState struct {
	ShiftHeld  bool
	OptionHeld bool
}

// Action 一次按键转换的处理结果
type Action int

const (
	// ActionNone 只更新了修饰键或被忽略
	ActionNone Action = iota

	// ActionSwitch 发起了输入源切换
	ActionSwitch

	// ActionRelease 只解除了 Caps-Lock 锁定，没有切换
	ActionRelease
)

func (a Action) String() string {
	switch a {
	case ActionSwitch:
		return "switch"
	case ActionRelease:
		return "release"
	default:
		return "none"
	}
}

// Decision Decide 的结果
type Decision struct {
	// Action 执行的动作
	Action Action

	// Target 切换目标，仅 ActionSwitch 有效
	Target models.Locale

	// Handled 该用途码是否被识别（修饰键或 Caps-Lock）
	Handled bool
}

/**
 * Interpreter Caps-Lock 决策状态机
 *
 * 每次硬件按键转换调用一次 Decide。只有 Caps-Lock 按下会触发动作：
 *   1. 按住 Shift：翻转锁定状态并切到拉丁
 *   2. 已锁定且系统不自行管理锁定灯：解除锁定，不切换
 *   3. 按住 Option 且配置了第三输入源：在第三输入源与拉丁之间切换
 *   4. 否则在拉丁与主要 CJK 之间切换
 */
type Interpreter struct {
	mu        sync.Mutex
	modifiers ModifierState

	session  *CapsLockSession
	locales  LocaleReader
	switcher LocaleSwitcher
	latch    platform.CapsLockLatch
	caps     platform.Capabilities
	clock    scheduler.Scheduler
}

/**
 * NewInterpreter 创建决策状态机
 *
 * Parameters:
 *   - session: 共享会话
 *   - locales: 当前输入源查询
 *   - switcher: 切换协议
 *   - latch: 系统 Caps-Lock 锁定状态
 *   - caps: 平台能力
 *   - clock: 时钟，用于记录按下时间
 */
func NewInterpreter(
	session *CapsLockSession,
	locales LocaleReader,
	switcher LocaleSwitcher,
	latch platform.CapsLockLatch,
	caps platform.Capabilities,
	clock scheduler.Scheduler,
) *Interpreter {
	return &Interpreter{
		session:  session,
		locales:  locales,
		switcher: switcher,
		latch:    latch,
		caps:     caps,
		clock:    clock,
	}
}

// Modifiers 返回当前修饰键状态
func (i *Interpreter) Modifiers() ModifierState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.modifiers
}

/**
 * Decide 处理一次按键转换
 *
 * Parameters:
 *   - usage: HID 用途码
 *   - transition: 按下或抬起
 *
 * Returns: Decision - 执行的动作
 */
func (i *Interpreter) Decide(usage models.KeyUsage, transition models.Transition) Decision {
	i.mu.Lock()
	defer i.mu.Unlock()

	down := transition == models.KeyDown
	_, hasTertiary := i.locales.Tertiary()

	switch {
	case usage.IsShift():
		i.modifiers.ShiftHeld = down
		return Decision{Handled: true}

	case usage.IsOption():
		if !hasTertiary {
			return Decision{}
		}
		i.modifiers.OptionHeld = down
		return Decision{Handled: true}

	case usage == models.UsageCapsLock:
		if !down {
			return Decision{Handled: true}
		}
		return i.decideCapsLock()

	default:
		return Decision{}
	}
}

// decideCapsLock 调用方持有 i.mu
func (i *Interpreter) decideCapsLock() Decision {
	if i.modifiers.ShiftHeld {
		engaged := i.session.ToggleEngaged()
		logger.Debug("Shift+Caps-Lock 切换锁定状态",
			zap.String("component", "interpreter"),
			zap.Bool("engaged", engaged),
		)
		return i.switchTo(models.LocaleLatin)
	}

	if !i.caps.NativeCapsLockLatch && i.session.Engaged() {
		i.session.SetEngaged(false)
		if err := i.latch.Set(false); err != nil {
			logger.Warn("解除 Caps-Lock 锁定失败",
				zap.String("component", "interpreter"),
				zap.Error(err),
			)
		}
		return Decision{Action: ActionRelease, Handled: true}
	}

	current := i.locales.Current()

	if tertiary, ok := i.locales.Tertiary(); ok && i.modifiers.OptionHeld {
		if current != tertiary {
			return i.switchTo(tertiary)
		}
		return i.switchTo(models.LocaleLatin)
	}

	if current != models.LocaleLatin {
		return i.switchTo(models.LocaleLatin)
	}
	return i.switchTo(models.LocalePrimaryCJK)
}

func (i *Interpreter) switchTo(target models.Locale) Decision {
	i.session.MarkPressed(i.clock.Now())

	if err := i.switcher.SwitchTo(target); err != nil {
		logger.Warn("切换输入源失败",
			zap.String("component", "interpreter"),
			zap.String("locale", target.String()),
			zap.Error(err),
		)
	}
	return Decision{Action: ActionSwitch, Target: target, Handled: true}
}

/**
 * OnLatchChanged 处理带外的锁定状态变化（修饰键标志变化通知）
 *
 * 从不触发切换。系统自行管理锁定灯时，未处于锁定状态却被点亮的锁定会被清除；
 * 其他情况什么都不做。
 */
func (i *Interpreter) OnLatchChanged(on bool) {
	i.mu.Lock()
	shift := i.modifiers.ShiftHeld
	i.mu.Unlock()

	if !i.caps.NativeCapsLockLatch || shift {
		return
	}
	if !on || i.session.Engaged() {
		return
	}

	if err := i.latch.Set(false); err != nil {
		logger.Warn("清除 Caps-Lock 锁定失败",
			zap.String("component", "interpreter"),
			zap.Error(err),
		)
	}
}

// SyncLatch 从系统读取锁定状态并写回会话
func (i *Interpreter) SyncLatch() {
	on, err := i.latch.Get()
	if err != nil {
		logger.Debug("读取 Caps-Lock 锁定状态失败",
			zap.String("component", "interpreter"),
			zap.Error(err),
		)
		return
	}
	i.session.SetEngaged(on)
}
