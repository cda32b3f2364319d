package locale

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/config"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/scheduler"
	"github.com/chenyang-zz/capsflow/pkg/events"
	"github.com/chenyang-zz/capsflow/pkg/logger"
)

/**
 * Switcher 输入源切换协议
 *
 * 系统在 CJK 输入法之间直接切换时偶尔会丢掉选择命令，协议如下：
 *   1. 目标不是拉丁时，先立即切到拉丁
 *   2. SettleDelay 之后再切一次拉丁，然后切到目标
 *   3. 目标是主要 CJK 时，VerifyDelay 之后读取当前输入源，
 *      不在主要 CJK 的标识集合里就重发第 2 步一次，之后只记录日志
 *
 * 所有选择命令都投递到主循环，延迟通过 Scheduler 调度，调用方从不阻塞。
 * 并发的切换互不取消，最后一次生效。
 */
type Switcher struct {
	registry *Registry
	sched    scheduler.Scheduler
	loop     platform.MainLoop
	bus      *events.EventBus
	timing   config.SwitchingConfig
}

/**
 * NewSwitcher 创建切换协议
 *
 * Parameters:
 *   - registry: 已解析的输入源注册表
 *   - sched: 调度器
 *   - loop: 主循环，选择命令在其上执行
 *   - bus: 事件总线，可以为 nil
 *   - timing: 协议时序
 */
func NewSwitcher(
	registry *Registry,
	sched scheduler.Scheduler,
	loop platform.MainLoop,
	bus *events.EventBus,
	timing config.SwitchingConfig,
) *Switcher {
	return &Switcher{
		registry: registry,
		sched:    sched,
		loop:     loop,
		bus:      bus,
		timing:   timing,
	}
}

/**
 * SwitchTo 异步切换到 target
 *
 * Returns:
 *   - error: target 未安装时返回包装 ErrLocaleUnavailable 的错误，不发出任何命令
 */
func (s *Switcher) SwitchTo(target models.Locale) error {
	handle, ok := s.registry.Resolve(target)
	if !ok {
		logger.Error("目标输入源未安装，忽略切换",
			zap.String("component", "switcher"),
			zap.String("locale", target.String()),
		)
		return fmt.Errorf("%w: %s", ErrLocaleUnavailable, target)
	}
	latin, _ := s.registry.Resolve(models.LocaleLatin)

	logger.Debug("切换输入源",
		zap.String("component", "switcher"),
		zap.String("locale", target.String()),
	)

	if target != models.LocaleLatin {
		s.loop.Dispatch(func() {
			s.selectSource(latin)
		})
	}

	s.sched.AfterFunc(s.timing.SettleDelay, func() {
		s.loop.Dispatch(func() {
			s.selectPair(latin, handle)
		})

		if target == models.LocalePrimaryCJK {
			s.scheduleVerify(latin, handle, true)
		}
	})

	s.publish(target, false)
	return nil
}

/**
 * RapidDummySwitch 快速切走再切回，不改变最终输入源
 *
 * 当前为拉丁时经由主要 CJK，否则经由拉丁。
 */
func (s *Switcher) RapidDummySwitch() {
	current := s.registry.Current()
	latin, _ := s.registry.Resolve(models.LocaleLatin)
	primary, _ := s.registry.Resolve(models.LocalePrimaryCJK)
	back, _ := s.registry.Resolve(current)

	s.loop.Dispatch(func() {
		if current == models.LocaleLatin {
			s.selectPair(primary, latin)
			return
		}
		s.selectPair(latin, back)
	})
}

func (s *Switcher) scheduleVerify(latin, target platform.InputSource, retry bool) {
	s.sched.AfterFunc(s.timing.VerifyDelay, func() {
		s.loop.Dispatch(func() {
			s.verify(latin, target, retry)
		})
	})
}

// verify 检查主要 CJK 是否生效，retry 为 false 时只记录日志
func (s *Switcher) verify(latin, target platform.InputSource, retry bool) {
	id, err := s.registry.SelectedID()
	if err == nil && s.registry.IsPrimaryVariant(id) {
		return
	}

	if !retry {
		logger.Warn("重试后切换仍未生效",
			zap.String("component", "switcher"),
			zap.String("selected", id),
			zap.Error(err),
		)
		return
	}

	logger.Warn("切换被系统丢弃，重试一次",
		zap.String("component", "switcher"),
		zap.String("selected", id),
		zap.Error(err),
	)
	s.selectPair(latin, target)
	s.publish(models.LocalePrimaryCJK, true)
	s.scheduleVerify(latin, target, false)
}

func (s *Switcher) selectPair(first, second platform.InputSource) {
	s.selectSource(first)
	s.selectSource(second)
}

func (s *Switcher) selectSource(src platform.InputSource) {
	if src == nil {
		return
	}
	if err := src.Select(); err != nil {
		logger.Warn("选择输入源失败",
			zap.String("component", "switcher"),
			zap.String("id", src.ID()),
			zap.Error(err),
		)
	}
}

func (s *Switcher) publish(target models.Locale, retry bool) {
	if s.bus == nil {
		return
	}

	event := events.NewEvent(events.EventTypeLocaleSwitched, map[string]interface{}{
		events.DataKeyLocale: target.String(),
		events.DataKeyRetry:  retry,
	})
	if err := s.bus.Publish(*event); err != nil {
		logger.Debug("发布切换事件失败",
			zap.String("component", "switcher"),
			zap.Error(err),
		)
	}
}
