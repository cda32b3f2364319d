/**
 * Package app 提供应用层的实现
 *
 * App 层职责：
 * - 按依赖顺序组装平台适配器、输入源注册表、两个状态机
 * - 向菜单栏等外部界面暴露少量调用（开关弹窗抑制、查询和切换输入源）
 * - 响应配置文件变化
 * - 管理主循环和关闭顺序
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/internal/domain/locale"
	"github.com/chenyang-zz/capsflow/internal/domain/models"
	"github.com/chenyang-zz/capsflow/internal/domain/monitor"
	"github.com/chenyang-zz/capsflow/internal/domain/popup"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/config"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/scheduler"
	"github.com/chenyang-zz/capsflow/internal/services"
	"github.com/chenyang-zz/capsflow/pkg/events"
	"github.com/chenyang-zz/capsflow/pkg/logger"
)

// shutdownTimeout 等待事件总线处理完剩余事件的上限
const shutdownTimeout = 2 * time.Second

// Options App 的依赖
//
// 只有 Platform 和 Config 是必须的，其余为空时使用默认实现。
type Options struct {
	Platform *platform.Platform
	Config   *config.Config

	// ConfigPath 非空时 Run 会监听该文件并在变化时应用新配置
	ConfigPath string

	Scheduler scheduler.Scheduler
	EventBus  *events.EventBus

	// ObserverOptions 传给窗口观察器，测试中用于替换去抖实现
	ObserverOptions []monitor.WindowObserverOption
}

/**
 * App 应用主结构体
 *
 * 两个状态机只共享 session：按键解释器写入按下时间，弹窗引擎读取它做 Gate 判断。
 */
type App struct {
	platform *platform.Platform
	eventBus *events.EventBus
	ownsBus  bool

	registry    *locale.Registry
	switcher    *locale.Switcher
	session     *monitor.CapsLockSession
	interpreter *monitor.Interpreter
	keySwitch   *monitor.KeySwitchMonitor
	observer    *monitor.WindowObserver
	engine      *popup.Engine
	permissions *services.PermissionManager

	configPath string
	watcher    *config.Watcher

	mu  sync.Mutex
	cfg *config.Config
}

/**
 * New 创建 App 实例
 *
 * 输入源注册表在这里解析，拉丁或主要 CJK 输入源缺失时返回包装了
 * locale.ErrRequiredLocaleMissing 的错误，调用方应中止启动。
 *
 * Parameters:
 *   - opts: 依赖
 *
 * Returns:
 *   - *App: 组装好的实例，尚未启动任何监控
 *   - error: 初始化失败
 */
func New(opts Options) (*App, error) {
	if opts.Platform == nil || opts.Config == nil {
		return nil, fmt.Errorf("app: platform and config are required")
	}

	p := opts.Platform
	cfg := opts.Config

	sched := opts.Scheduler
	if sched == nil {
		sched = scheduler.NewRealScheduler()
	}

	bus := opts.EventBus
	ownsBus := false
	if bus == nil {
		bus = events.NewEventBus()
		bus.Use(events.RecoveryMiddleware())
		bus.Use(events.LoggingMiddleware(logger.With(zap.String("component", "event_bus"))))
		ownsBus = true
	}

	registry, err := locale.NewRegistry(p.InputSources, cfg.Locales)
	if err != nil {
		return nil, err
	}

	switcher := locale.NewSwitcher(registry, sched, p.MainLoop, bus, cfg.Switching)
	session := monitor.NewCapsLockSession(sched.Now())
	interpreter := monitor.NewInterpreter(session, registry, switcher, p.Latch, p.Capabilities, sched)

	keySwitch := monitor.NewKeySwitchMonitor(monitor.KeySwitchOptions{
		HID:         p.HID,
		Latch:       p.Latch,
		Caps:        p.Capabilities,
		Interpreter: interpreter,
		Locales:     registry,
		Scheduler:   sched,
		MainLoop:    p.MainLoop,
		EventBus:    bus,
		ResyncDelay: cfg.Switching.LatchResyncDelay,
	})

	observer := monitor.NewWindowObserver(
		p.Workspace,
		p.Accessibility,
		sched,
		p.MainLoop,
		bus,
		cfg.Observer.Debounce,
		cfg.Observer.Settle,
		opts.ObserverOptions...,
	)

	engine := popup.NewEngine(popup.EngineOptions{
		Observer:  observer,
		EventBus:  bus,
		Session:   session,
		Scheduler: sched,
		MainLoop:  p.MainLoop,
		Config:    cfg.Popup,
	})

	logger.Info("应用初始化完成",
		zap.String("component", "app"),
		zap.String("os_version", p.Capabilities.OSVersion),
		zap.Bool("native_latch", p.Capabilities.NativeCapsLockLatch),
		zap.Int("locales", len(registry.Locales())),
	)

	return &App{
		platform:    p,
		eventBus:    bus,
		ownsBus:     ownsBus,
		registry:    registry,
		switcher:    switcher,
		session:     session,
		interpreter: interpreter,
		keySwitch:   keySwitch,
		observer:    observer,
		engine:      engine,
		permissions: services.NewPermissionManager(p.Permissions, bus),
		configPath:  opts.ConfigPath,
		cfg:         cfg,
	}, nil
}

// EventBus 返回应用事件总线，界面层可以订阅状态变化
func (a *App) EventBus() *events.EventBus {
	return a.eventBus
}

// Locales 返回已安装的输入源
func (a *App) Locales() []models.Locale {
	return a.registry.Locales()
}

// ========== 导出方法（界面层可调用） ==========

/**
 * StartKeySwitching 启动 Caps-Lock 切换
 *
 * HID 事件流无法打开时检查输入监控权限，缺失时请求一次系统授权，
 * 错误同时包装 platform.ErrHIDOpenFailed 和 services.ErrPermissionDenied。
 * 只影响按键切换，其他功能照常。
 */
func (a *App) StartKeySwitching() error {
	err := a.keySwitch.Start()
	if err == nil || !errors.Is(err, platform.ErrHIDOpenFailed) {
		return err
	}

	if permErr := a.permissions.EnsurePermission(platform.PermissionInputMonitoring); permErr != nil {
		return fmt.Errorf("%w: %w", err, permErr)
	}
	return err
}

// StopKeySwitching 停止 Caps-Lock 切换
func (a *App) StopKeySwitching() error {
	return a.keySwitch.Stop()
}

/**
 * StartPopupSuppression 启动弹窗抑制
 *
 * 需要辅助功能权限。权限缺失时会请求一次系统授权，
 * 返回包装了 services.ErrPermissionDenied 的错误，授权后重试即可。
 */
func (a *App) StartPopupSuppression() error {
	if err := a.permissions.EnsurePermission(platform.PermissionAccessibility); err != nil {
		return err
	}

	if err := a.engine.Start(); err != nil {
		return err
	}

	a.publishStatus("popup_suppression", "running")
	return nil
}

// StopPopupSuppression 停止弹窗抑制
func (a *App) StopPopupSuppression() error {
	if !a.engine.IsRunning() {
		return nil
	}

	err := a.engine.Stop()
	a.publishStatus("popup_suppression", "stopped")
	return err
}

// IsPopupSuppressionRunning 弹窗抑制是否在运行
func (a *App) IsPopupSuppressionRunning() bool {
	return a.engine.IsRunning()
}

// CurrentLocale 当前选中的输入源
func (a *App) CurrentLocale() models.Locale {
	return a.registry.Current()
}

/**
 * SetLocale 手动切换输入源
 *
 * 已经是当前输入源时什么也不做。切换命令异步执行，需要主循环在运行。
 *
 * Returns: error - 输入源未安装时返回包装了 locale.ErrLocaleUnavailable 的错误
 */
func (a *App) SetLocale(target models.Locale) error {
	if a.registry.Current() == target {
		logger.Debug("已是当前输入源",
			zap.String("component", "app"),
			zap.String("locale", string(target)),
		)
		return nil
	}
	return a.switcher.SwitchTo(target)
}

// NudgePopup 切走再切回当前输入源，让系统弹窗按预期出现
func (a *App) NudgePopup() {
	a.switcher.RapidDummySwitch()
}

// ApplyConfig 应用新配置
//
// 运行时只有 popup.enabled 会立即生效，其他字段需要重启。
func (a *App) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()

	if cfg.Popup.Enabled == a.IsPopupSuppressionRunning() {
		return
	}

	if cfg.Popup.Enabled {
		if err := a.StartPopupSuppression(); err != nil {
			logger.Warn("按配置启动弹窗抑制失败",
				zap.String("component", "app"),
				zap.Error(err),
			)
		}
		return
	}

	if err := a.StopPopupSuppression(); err != nil {
		logger.Warn("按配置停止弹窗抑制失败",
			zap.String("component", "app"),
			zap.Error(err),
		)
	}
}

/**
 * Run 启动所有功能并在调用方线程运行主循环，直到 ctx 结束
 *
 * 必须在锁定的主 OS 线程上调用。按键切换或弹窗抑制启动失败只记录日志，
 * 各自降级，不影响其他功能。返回前会调用 Shutdown。
 */
func (a *App) Run(ctx context.Context) error {
	if err := a.StartKeySwitching(); err != nil {
		logger.Error("按键切换不可用",
			zap.String("component", "app"),
			zap.Error(err),
		)
	}

	a.mu.Lock()
	enabled := a.cfg.Popup.Enabled
	a.mu.Unlock()

	if enabled {
		if err := a.StartPopupSuppression(); err != nil {
			logger.Warn("弹窗抑制未启动",
				zap.String("component", "app"),
				zap.Error(err),
			)
		}
	}

	if a.configPath != "" {
		if err := a.watchConfig(); err != nil {
			logger.Warn("无法监听配置文件",
				zap.String("component", "app"),
				zap.String("path", a.configPath),
				zap.Error(err),
			)
		}
	}

	logger.Info("CapsFlow 正在运行",
		zap.String("component", "app"),
		zap.String("locale", string(a.CurrentLocale())),
	)

	runErr := a.platform.MainLoop.Run(ctx)
	return multierr.Append(runErr, a.Shutdown())
}

func (a *App) watchConfig() error {
	watcher, err := config.NewWatcher(a.configPath, a.ApplyConfig)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return multierr.Append(err, watcher.Stop())
	}

	a.mu.Lock()
	a.watcher = watcher
	a.mu.Unlock()
	return nil
}

/**
 * Shutdown 应用关闭时的清理
 *
 * 顺序：配置监听、弹窗抑制（含窗口观察器）、按键切换、事件总线。
 * 所有错误合并返回，某一步失败不影响后续步骤。
 */
func (a *App) Shutdown() error {
	var err error

	a.mu.Lock()
	watcher := a.watcher
	a.watcher = nil
	a.mu.Unlock()

	if watcher != nil {
		err = multierr.Append(err, watcher.Stop())
	}

	if a.engine.IsRunning() {
		err = multierr.Append(err, a.engine.Stop())
	}
	if a.observer.IsRunning() {
		err = multierr.Append(err, a.observer.Stop())
	}
	if a.keySwitch.IsRunning() {
		err = multierr.Append(err, a.keySwitch.Stop())
	}

	if a.ownsBus {
		err = multierr.Append(err, a.eventBus.Stop(shutdownTimeout))
	}

	if err != nil {
		logger.Warn("关闭时出现错误",
			zap.String("component", "app"),
			zap.Error(err),
		)
	} else {
		logger.Info("CapsFlow 已关闭", zap.String("component", "app"))
	}
	return err
}

func (a *App) publishStatus(feature, state string) {
	event := events.NewEvent(events.EventTypeStatus, map[string]interface{}{
		"feature":           feature,
		events.DataKeyState: state,
	})
	if err := a.eventBus.Publish(*event); err != nil {
		logger.Debug("发布状态事件失败",
			zap.String("component", "app"),
			zap.Error(err),
		)
	}
}
