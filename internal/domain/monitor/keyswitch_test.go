package monitor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyang-zz/capsflow/internal/domain/locale"
	"github.com/chenyang-zz/capsflow/internal/domain/models"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/config"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform/platformtest"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/scheduler"
	"github.com/chenyang-zz/capsflow/pkg/events"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type keySwitchFixture struct {
	*interpreterFixture
	hid     *platformtest.HID
	loop    *platformtest.InlineMainLoop
	bus     *events.EventBus
	monitor *KeySwitchMonitor

	mu      sync.Mutex
	pressed []events.Event
}

func newKeySwitchFixture(t *testing.T, tertiary models.Locale, native bool) *keySwitchFixture {
	t.Helper()

	f := &keySwitchFixture{
		interpreterFixture: newInterpreterFixture(models.LocaleLatin, tertiary, native),
		hid:                platformtest.NewHID(),
		loop:               platformtest.NewInlineMainLoop(),
		bus:                events.NewEventBus(events.WithSyncDelivery()),
	}
	t.Cleanup(func() { _ = f.bus.Stop(time.Second) })

	f.bus.Subscribe(events.EventTypeCapsLockPressed, func(e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.pressed = append(f.pressed, e)
		return nil
	})

	f.monitor = NewKeySwitchMonitor(KeySwitchOptions{
		HID:         f.hid,
		Latch:       f.latch,
		Caps:        platform.Capabilities{NativeCapsLockLatch: native},
		Interpreter: f.interpreter,
		Locales:     f.locales,
		Scheduler:   f.clock,
		MainLoop:    f.loop,
		EventBus:    f.bus,
		ResyncDelay: 20 * time.Millisecond,
	})
	t.Cleanup(func() { _ = f.monitor.Stop() })
	return f
}

func (f *keySwitchFixture) pressedEvents() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.pressed...)
}

// TestKeySwitchMonitor_Usages 测试只有配置了第三输入源时才监听 Option
func TestKeySwitchMonitor_Usages(t *testing.T) {
	f := newKeySwitchFixture(t, "", false)
	require.NoError(t, f.monitor.Start())
	assert.Equal(t, models.WatchedUsages(false), f.hid.Usages())

	g := newKeySwitchFixture(t, models.LocaleSecondaryCJKB, false)
	require.NoError(t, g.monitor.Start())
	assert.Equal(t, models.WatchedUsages(true), g.hid.Usages())
}

// TestKeySwitchMonitor_StartFailure 测试 HID 打开失败时返回错误
func TestKeySwitchMonitor_StartFailure(t *testing.T) {
	f := newKeySwitchFixture(t, "", false)
	f.hid.StartErr = errors.New("not permitted")

	err := f.monitor.Start()
	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrHIDOpenFailed))
	assert.False(t, f.monitor.IsRunning())
}

// TestKeySwitchMonitor_StartStop 测试启动停止的幂等性
func TestKeySwitchMonitor_StartStop(t *testing.T) {
	f := newKeySwitchFixture(t, "", true)

	require.NoError(t, f.monitor.Start())
	require.NoError(t, f.monitor.Start())
	assert.True(t, f.monitor.IsRunning())
	assert.True(t, f.hid.IsRunning())
	assert.Equal(t, 1, f.latch.Watchers(), "原生平台监听锁定变化")

	require.NoError(t, f.monitor.Stop())
	require.NoError(t, f.monitor.Stop())
	assert.False(t, f.monitor.IsRunning())
	assert.False(t, f.hid.IsRunning())
	assert.Zero(t, f.latch.Watchers())
}

// TestKeySwitchMonitor_Ordered 测试按键转换按顺序处理
func TestKeySwitchMonitor_Ordered(t *testing.T) {
	f := newKeySwitchFixture(t, "", true)
	require.NoError(t, f.monitor.Start())

	for i := 0; i < 50; i++ {
		f.hid.Press(models.UsageCapsLock)
	}

	require.Eventually(t, func() bool {
		return len(f.locales.Switched()) == 50
	}, waitFor, tick)

	for i, target := range f.locales.Switched() {
		if i%2 == 0 {
			assert.Equal(t, models.LocalePrimaryCJK, target)
		} else {
			assert.Equal(t, models.LocaleLatin, target)
		}
	}

	pressed := f.pressedEvents()
	require.Len(t, pressed, 50)
	assert.Equal(t, "switch", pressed[0].String(events.DataKeyAction))
	assert.Equal(t, models.LocalePrimaryCJK.String(), pressed[0].String(events.DataKeyLocale))
}

// TestKeySwitchMonitor_ResyncLatch 测试非原生平台上延迟同步锁定状态
func TestKeySwitchMonitor_ResyncLatch(t *testing.T) {
	f := newKeySwitchFixture(t, "", false)
	require.NoError(t, f.monitor.Start())
	assert.Zero(t, f.latch.Watchers(), "非原生平台不监听锁定变化")

	f.hid.Emit(models.UsageCapsLock, models.KeyDown)
	require.Eventually(t, func() bool { return f.clock.Pending() == 1 }, waitFor, tick)

	// 系统在按键后点亮了锁定灯
	f.latch.Toggle(true)
	f.clock.Advance(19 * time.Millisecond)
	assert.False(t, f.session.Engaged())

	f.clock.Advance(time.Millisecond)
	assert.True(t, f.session.Engaged())

	// 下一次按下只解除锁定
	f.hid.Emit(models.UsageCapsLock, models.KeyDown)
	require.Eventually(t, func() bool { return len(f.pressedEvents()) == 2 }, waitFor, tick)
	assert.Equal(t, "release", f.pressedEvents()[1].String(events.DataKeyAction))
	assert.Len(t, f.locales.Switched(), 1)
	assert.Equal(t, []bool{false}, f.latch.Sets())
}

// TestKeySwitchMonitor_NativeLatchWatch 测试原生平台上带外锁定变化被清除
func TestKeySwitchMonitor_NativeLatchWatch(t *testing.T) {
	f := newKeySwitchFixture(t, "", true)
	require.NoError(t, f.monitor.Start())

	f.latch.Toggle(true)
	assert.Equal(t, []bool{false}, f.latch.Sets())
	assert.Empty(t, f.locales.Switched())
	assert.Zero(t, f.clock.Pending(), "原生平台不安排同步")
}

// TestKeySwitchMonitor_DecidesOnMainLoop 测试决策在主循环上执行，停止后残留的转换被丢弃
func TestKeySwitchMonitor_DecidesOnMainLoop(t *testing.T) {
	f := newKeySwitchFixture(t, "", true)
	loop := platformtest.NewQueuedMainLoop()
	f.monitor = NewKeySwitchMonitor(KeySwitchOptions{
		HID:         f.hid,
		Latch:       f.latch,
		Caps:        platform.Capabilities{NativeCapsLockLatch: true},
		Interpreter: f.interpreter,
		Locales:     f.locales,
		Scheduler:   f.clock,
		MainLoop:    loop,
		EventBus:    f.bus,
	})
	require.NoError(t, f.monitor.Start())

	f.hid.Emit(models.UsageCapsLock, models.KeyDown)
	f.hid.Emit(models.UsageCapsLock, models.KeyDown)
	require.Eventually(t, func() bool { return loop.Pending() == 2 }, waitFor, tick)
	assert.Empty(t, f.locales.Switched(), "主循环执行前不做决策")

	assert.Equal(t, 2, loop.Flush())
	assert.Equal(t, []models.Locale{models.LocalePrimaryCJK, models.LocaleLatin}, f.locales.Switched())

	f.hid.Emit(models.UsageCapsLock, models.KeyDown)
	require.Eventually(t, func() bool { return loop.Pending() == 1 }, waitFor, tick)
	require.NoError(t, f.monitor.Stop())

	loop.Flush()
	assert.Len(t, f.locales.Switched(), 2)
	assert.Len(t, f.pressedEvents(), 2)
}

// countingSwitcher 统计 SwitchTo 调用
type countingSwitcher struct {
	inner *locale.Switcher
	mu    sync.Mutex
	calls []models.Locale
}

func (c *countingSwitcher) SwitchTo(target models.Locale) error {
	c.mu.Lock()
	c.calls = append(c.calls, target)
	c.mu.Unlock()
	return c.inner.SwitchTo(target)
}

func (c *countingSwitcher) Calls() []models.Locale {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Locale(nil), c.calls...)
}

// TestEndToEnd_CapsLockToPrimary 测试从硬件按键到输入源生效的完整链路
//
// 测试场景：
//  1. 输入源只有拉丁（当前）和主要 CJK
//  2. 不按修饰键按下 Caps-Lock
//  3. SwitchTo(primary-cjk) 只被调用一次，之后当前输入源为主要 CJK
func TestEndToEnd_CapsLockToPrimary(t *testing.T) {
	cfg := config.Default()
	fakes := platformtest.New(0, cfg.Locales.Latin, cfg.Locales.PrimaryCJK)
	sched := scheduler.NewManualScheduler(time.Unix(0, 0))

	registry, err := locale.NewRegistry(fakes.InputSources, cfg.Locales)
	require.NoError(t, err)
	require.Equal(t, models.LocaleLatin, registry.Current())

	switcher := &countingSwitcher{
		inner: locale.NewSwitcher(registry, sched, fakes.MainLoop, nil, cfg.Switching),
	}
	session := NewCapsLockSession(time.Time{})
	caps := platform.Capabilities{NativeCapsLockLatch: false}
	interpreter := NewInterpreter(session, registry, switcher, fakes.Latch, caps, sched)

	monitor := NewKeySwitchMonitor(KeySwitchOptions{
		HID:         fakes.HID,
		Latch:       fakes.Latch,
		Caps:        caps,
		Interpreter: interpreter,
		Locales:     registry,
		Scheduler:   sched,
		MainLoop:    fakes.MainLoop,
		ResyncDelay: cfg.Switching.LatchResyncDelay,
	})
	require.NoError(t, monitor.Start())
	defer monitor.Stop()

	fakes.HID.Press(models.UsageCapsLock)

	// 切换协议的 1ms 延续和锁定同步
	require.Eventually(t, func() bool { return sched.Pending() == 2 }, waitFor, tick)
	sched.Advance(time.Second)

	assert.Equal(t, []models.Locale{models.LocalePrimaryCJK}, switcher.Calls())
	assert.Equal(t, models.LocalePrimaryCJK, registry.Current())
	assert.Equal(t, time.Unix(0, 0), session.LastPressedAt())
}
