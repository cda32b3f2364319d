package popup

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyang-zz/capsflow/internal/infrastructure/config"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform/platformtest"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/scheduler"
	"github.com/chenyang-zz/capsflow/pkg/events"
)

var offscreen = platform.Point{X: -10000, Y: -10000}

// MockObserver 模拟窗口观察器
type MockObserver struct {
	mu       sync.Mutex
	running  bool
	starts   int
	stops    int
	startErr error
}

func (m *MockObserver) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.running = true
	m.starts++
	return nil
}

func (m *MockObserver) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.stops++
	return nil
}

func (m *MockObserver) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// MockSession 模拟 Caps-Lock 会话
type MockSession struct {
	mu   sync.Mutex
	last time.Time
}

func (m *MockSession) LastPressedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *MockSession) Press(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = at
}

type engineFixture struct {
	observer *MockObserver
	session  *MockSession
	sched    *scheduler.ManualScheduler
	loop     *platformtest.InlineMainLoop
	bus      *events.EventBus
	engine   *Engine
	cfg      config.PopupConfig

	mu        sync.Mutex
	destroyed []events.Event
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	return newEngineFixtureWithBus(t, events.NewEventBus(events.WithSyncDelivery()))
}

func newEngineFixtureWithBus(t *testing.T, bus *events.EventBus) *engineFixture {
	t.Helper()

	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	f := &engineFixture{
		observer: &MockObserver{},
		session:  &MockSession{last: start},
		sched:    scheduler.NewManualScheduler(start),
		loop:     platformtest.NewInlineMainLoop(),
		bus:      bus,
		cfg:      config.Default().Popup,
	}
	t.Cleanup(func() { _ = f.bus.Stop(time.Second) })

	f.bus.Subscribe(events.EventTypePopupDestroyed, func(e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.destroyed = append(f.destroyed, e)
		return nil
	})

	f.engine = NewEngine(EngineOptions{
		Observer:  f.observer,
		EventBus:  f.bus,
		Session:   f.session,
		Scheduler: f.sched,
		MainLoop:  f.loop,
		Config:    f.cfg,
	})
	return f
}

func (f *engineFixture) window(el platform.UIElement) {
	event := events.NewEvent(events.EventTypeWindowCreated, map[string]interface{}{
		events.DataKeyPID:     el.PID(),
		events.DataKeyElement: el,
	})
	_ = f.bus.Publish(*event)
}

func (f *engineFixture) destroyedEvents() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.destroyed...)
}

// armAndDestroy 启动引擎，等过 Gate 后投递一个弹窗
func (f *engineFixture) armAndDestroy(t *testing.T) *platformtest.Element {
	t.Helper()

	require.NoError(t, f.engine.Start())
	f.sched.Advance(31 * time.Second)

	popup := platformtest.NewPopup(42)
	f.window(popup)
	require.Equal(t, StateDestroying, f.engine.State())
	return popup
}

// TestEngine_StartStop 测试启动停止
func TestEngine_StartStop(t *testing.T) {
	f := newEngineFixture(t)
	assert.Equal(t, StateIdle, f.engine.State())
	assert.False(t, f.engine.IsRunning())

	require.NoError(t, f.engine.Start())
	assert.Equal(t, StateArmed, f.engine.State())
	assert.True(t, f.observer.IsRunning(), "启动时确保观察器在运行")

	require.NoError(t, f.engine.Start())
	assert.Equal(t, 1, f.observer.starts)

	require.NoError(t, f.engine.Stop())
	assert.Equal(t, StateIdle, f.engine.State())
	assert.False(t, f.observer.IsRunning())

	require.NoError(t, f.engine.Stop(), "重复停止是安全的")
	assert.Equal(t, 1, f.observer.stops)
}

// TestEngine_ObserverAlreadyRunning 测试观察器已在运行时不重复启动
func TestEngine_ObserverAlreadyRunning(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.observer.Start())

	require.NoError(t, f.engine.Start())
	assert.Equal(t, 1, f.observer.starts)
}

// TestEngine_ObserverStartFailure 测试观察器启动失败
func TestEngine_ObserverStartFailure(t *testing.T) {
	f := newEngineFixture(t)
	f.observer.startErr = errors.New("workspace unavailable")

	assert.Error(t, f.engine.Start())
	assert.Equal(t, StateIdle, f.engine.State())
}

// TestEngine_Gate 测试 29 秒被拒绝、31 秒被接受
func TestEngine_Gate(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.engine.Start())

	early := platformtest.NewPopup(42)
	f.sched.Advance(29 * time.Second)
	f.window(early)
	assert.Equal(t, StateArmed, f.engine.State())
	assert.Empty(t, early.Positions())

	late := platformtest.NewPopup(42)
	f.sched.Advance(2 * time.Second)
	f.window(late)
	assert.Equal(t, StateDestroying, f.engine.State())
	assert.Equal(t, []platform.Point{offscreen}, late.Positions(), "进入销毁时立即移动一次")
}

// TestEngine_RejectsNonMatching 测试不匹配的窗口被忽略
func TestEngine_RejectsNonMatching(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.engine.Start())
	f.sched.Advance(time.Minute)

	doc := platformtest.NewDocumentWindow(42)
	f.window(doc)
	assert.Equal(t, StateArmed, f.engine.State())
	assert.Empty(t, doc.Positions())

	// 没有元素的事件
	_ = f.bus.Publish(*events.NewEvent(events.EventTypeWindowCreated, nil))
	assert.Equal(t, StateArmed, f.engine.State())
}

// TestEngine_DestroySequence 测试 8 次重定位、间隔 1/60 秒、500ms 冷却
//
// 测试场景：
//  1. 接受弹窗后立即移动第 1 次
//  2. 每 1/60 秒移动一次，共 8 次，间隔未到时不会提前移动
//  3. 第 8 次之后进入冷却，500ms 后回到 Armed
func TestEngine_DestroySequence(t *testing.T) {
	f := newEngineFixture(t)
	popup := f.armAndDestroy(t)
	require.Len(t, popup.Positions(), 1)

	for i := 2; i <= 8; i++ {
		f.sched.Advance(f.cfg.Interval - time.Nanosecond)
		require.Len(t, popup.Positions(), i-1)

		f.sched.Advance(time.Nanosecond)
		require.Len(t, popup.Positions(), i)
	}

	for _, p := range popup.Positions() {
		assert.Equal(t, offscreen, p)
	}
	assert.Equal(t, StateCoolDown, f.engine.State())
	assert.Equal(t, 8, f.loop.Dispatched(), "重定位都投递到主循环")

	destroyed := f.destroyedEvents()
	require.Len(t, destroyed, 1)
	assert.Equal(t, ActionDestroyed, destroyed[0].String(events.DataKeyAction))
	repeats, _ := destroyed[0].Int("repeats")
	assert.Equal(t, 8, repeats)

	f.sched.Advance(time.Second)
	assert.Len(t, popup.Positions(), 8, "不会多于 8 次")

	f2 := newEngineFixture(t)
	f2.armAndDestroy(t)
	f2.sched.Advance(7 * f2.cfg.Interval)
	require.Equal(t, StateCoolDown, f2.engine.State())
	f2.sched.Advance(f2.cfg.CoolDown - time.Nanosecond)
	assert.Equal(t, StateCoolDown, f2.engine.State())
	f2.sched.Advance(time.Nanosecond)
	assert.Equal(t, StateArmed, f2.engine.State())
}

// TestEngine_ImmediatePath 测试销毁和冷却期间的弹窗不检查 Gate 立即移动
func TestEngine_ImmediatePath(t *testing.T) {
	f := newEngineFixture(t)
	f.armAndDestroy(t)

	// 刚刚按过 Caps-Lock，主路径的 Gate 会拒绝
	f.session.Press(f.sched.Now())

	during := platformtest.NewPopup(42)
	f.window(during)
	assert.Equal(t, []platform.Point{offscreen}, during.Positions())
	assert.Equal(t, StateDestroying, f.engine.State(), "不会开始新的销毁序列")

	doc := platformtest.NewDocumentWindow(42)
	f.window(doc)
	assert.Empty(t, doc.Positions(), "立即路径同样要求匹配")

	f.sched.Advance(7 * f.cfg.Interval)
	require.Equal(t, StateCoolDown, f.engine.State())

	cooling := platformtest.NewPopup(42)
	f.window(cooling)
	assert.Equal(t, []platform.Point{offscreen}, cooling.Positions())
	assert.Len(t, during.Positions(), 1, "立即路径只移动一次")

	f.sched.Advance(f.cfg.CoolDown)
	require.Equal(t, StateArmed, f.engine.State())

	after := platformtest.NewPopup(42)
	f.window(after)
	assert.Empty(t, after.Positions(), "回到 Armed 后第二订阅已退役，Gate 重新生效")
	assert.Equal(t, StateArmed, f.engine.State())

	var immediate int
	for _, e := range f.destroyedEvents() {
		if e.String(events.DataKeyAction) == ActionImmediate {
			immediate++
		}
	}
	assert.Equal(t, 2, immediate)
}

// slowElement 第一次读取属性时阻塞，模拟应用无响应
type slowElement struct {
	*platformtest.Element
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newSlowPopup(pid int) *slowElement {
	return &slowElement{
		Element: platformtest.NewPopup(pid),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (e *slowElement) Attribute(name string) (platform.Value, error) {
	e.once.Do(func() {
		close(e.entered)
		<-e.release
	})
	return e.Element.Attribute(name)
}

// destroyAsync 在异步总线上启动引擎并完成一个弹窗的 8 次移动，停在冷却期
func (f *engineFixture) destroyAsync(t *testing.T) *platformtest.Element {
	t.Helper()

	require.NoError(t, f.engine.Start())
	f.sched.Advance(31 * time.Second)

	first := platformtest.NewPopup(42)
	f.window(first)
	require.Eventually(t, func() bool {
		return f.engine.State() == StateDestroying
	}, time.Second, time.Millisecond)

	f.sched.Advance(7 * f.cfg.Interval)
	require.Equal(t, StateCoolDown, f.engine.State())
	require.Len(t, first.Positions(), f.cfg.Repeats)
	return first
}

// TestEngine_CoolDownArrivalsOnAsyncBus 测试冷却期间到达的弹窗在冷却结束后仍被处理
//
// 测试场景：
//  1. 冷却期间先后到达一个读取属性很慢的弹窗和一个普通弹窗
//  2. 慢弹窗还在识别时冷却结束，引擎回到 Armed
//  3. 两个弹窗都经立即路径移动一次，主路径不会再处理它们
func TestEngine_CoolDownArrivalsOnAsyncBus(t *testing.T) {
	f := newEngineFixtureWithBus(t, events.NewEventBus())
	f.destroyAsync(t)

	slow := newSlowPopup(42)
	quick := platformtest.NewPopup(42)
	f.window(slow)
	f.window(quick)

	<-slow.entered
	f.sched.Advance(f.cfg.CoolDown)
	require.Equal(t, StateArmed, f.engine.State())
	close(slow.release)

	assert.Eventually(t, func() bool {
		return len(slow.Positions()) == 1 && len(quick.Positions()) == 1
	}, time.Second, time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(f.destroyedEvents()) == 3
	}, time.Second, time.Millisecond)
	var immediate int
	for _, e := range f.destroyedEvents() {
		if e.String(events.DataKeyAction) == ActionImmediate {
			immediate++
		}
	}
	assert.Equal(t, 2, immediate)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateArmed, f.engine.State(), "主路径没有为它们开始新的销毁序列")
	assert.Zero(t, f.sched.Pending())

	// 冷却结束后到达的弹窗回到主路径，刚按过 Caps-Lock 时被 Gate 拒绝
	f.session.Press(f.sched.Now())
	later := platformtest.NewPopup(42)
	f.window(later)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, later.Positions())
}

// TestEngine_StopDropsQueuedImmediate 测试停止后不再处理冷却期间排队的弹窗
func TestEngine_StopDropsQueuedImmediate(t *testing.T) {
	f := newEngineFixtureWithBus(t, events.NewEventBus())
	f.destroyAsync(t)

	slow := newSlowPopup(42)
	f.window(slow)
	<-slow.entered

	require.NoError(t, f.engine.Stop())
	close(slow.release)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, slow.Positions())
	assert.Equal(t, StateIdle, f.engine.State())
}

// TestEngine_NextCycle 测试冷却结束后可以处理下一个弹窗
func TestEngine_NextCycle(t *testing.T) {
	f := newEngineFixture(t)
	f.armAndDestroy(t)
	f.sched.Advance(7*f.cfg.Interval + f.cfg.CoolDown)
	require.Equal(t, StateArmed, f.engine.State())

	next := platformtest.NewPopup(43)
	f.window(next)
	assert.Equal(t, StateDestroying, f.engine.State())
	f.sched.Advance(time.Second)
	assert.Len(t, next.Positions(), 8)
	assert.Equal(t, StateArmed, f.engine.State())
}

// TestEngine_StopMidSequence 测试销毁中途停止
func TestEngine_StopMidSequence(t *testing.T) {
	f := newEngineFixture(t)
	popup := f.armAndDestroy(t)
	f.sched.Advance(2 * f.cfg.Interval)
	require.Len(t, popup.Positions(), 3)

	require.NoError(t, f.engine.Stop())
	assert.Equal(t, StateIdle, f.engine.State())
	assert.Zero(t, f.sched.Pending(), "所有定时器都被取消")

	f.sched.Advance(time.Minute)
	assert.Len(t, popup.Positions(), 3, "停留在最后一次移动的位置")

	other := platformtest.NewPopup(42)
	f.window(other)
	assert.Empty(t, other.Positions(), "两个订阅都已取消")
	assert.Empty(t, f.destroyedEvents())
}

// TestEngine_RestartAfterStop 测试停止后重新启动
func TestEngine_RestartAfterStop(t *testing.T) {
	f := newEngineFixture(t)
	f.armAndDestroy(t)
	require.NoError(t, f.engine.Stop())

	require.NoError(t, f.engine.Start())
	assert.Equal(t, StateArmed, f.engine.State())

	popup := platformtest.NewPopup(42)
	f.window(popup)
	assert.Equal(t, StateDestroying, f.engine.State())
}

// TestEngine_SingleRepeat 测试只移动一次的配置直接进入冷却
func TestEngine_SingleRepeat(t *testing.T) {
	f := newEngineFixture(t)
	f.cfg.Repeats = 1
	f.engine = NewEngine(EngineOptions{
		Observer:  f.observer,
		EventBus:  f.bus,
		Session:   f.session,
		Scheduler: f.sched,
		MainLoop:  f.loop,
		Config:    f.cfg,
	})

	require.NoError(t, f.engine.Start())
	f.sched.Advance(time.Minute)

	popup := platformtest.NewPopup(42)
	f.window(popup)
	assert.Equal(t, StateCoolDown, f.engine.State())
	assert.Len(t, popup.Positions(), 1)
	assert.Len(t, f.destroyedEvents(), 1)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "armed", StateArmed.String())
	assert.Equal(t, "destroying", StateDestroying.String())
	assert.Equal(t, "cool_down", StateCoolDown.String())
}
