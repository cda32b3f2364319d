package locale

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/config"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform/platformtest"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/scheduler"
	"github.com/chenyang-zz/capsflow/pkg/events"
	"github.com/chenyang-zz/capsflow/pkg/logger"
)

const (
	latinID    = "com.apple.keylayout.ABC"
	koreanID   = "com.apple.inputmethod.Korean.2SetKorean"
	japaneseID = "com.apple.inputmethod.Kotoeri.RomajiTyping.Japanese"
	chineseID  = "com.apple.inputmethod.SCIM.ITABC"
	hangulID   = "com.apple.keylayout.2SetHangul"
)

func newRegistry(t *testing.T, ids ...string) (*Registry, *platformtest.InputSources) {
	t.Helper()

	sources := platformtest.NewInputSources(ids...)
	registry, err := NewRegistry(sources, config.Default().Locales)
	require.NoError(t, err)
	return registry, sources
}

type switchFixture struct {
	registry *Registry
	sources  *platformtest.InputSources
	sched    *scheduler.ManualScheduler
	switcher *Switcher

	mu       sync.Mutex
	switched []events.Event
}

func newSwitchFixture(t *testing.T, ids ...string) *switchFixture {
	t.Helper()

	f := &switchFixture{sched: scheduler.NewManualScheduler(time.Unix(0, 0))}
	f.registry, f.sources = newRegistry(t, ids...)

	bus := events.NewEventBus(events.WithSyncDelivery())
	t.Cleanup(func() { _ = bus.Stop(time.Second) })
	bus.Subscribe(events.EventTypeLocaleSwitched, func(e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.switched = append(f.switched, e)
		return nil
	})

	f.switcher = NewSwitcher(f.registry, f.sched, platformtest.NewInlineMainLoop(), bus, config.Default().Switching)
	return f
}

func (f *switchFixture) retries() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]bool, len(f.switched))
	for i, e := range f.switched {
		out[i], _ = e.Data[events.DataKeyRetry].(bool)
	}
	return out
}

// TestNewRegistry 测试解析所有输入源
func TestNewRegistry(t *testing.T) {
	registry, _ := newRegistry(t, latinID, koreanID, japaneseID, chineseID, "com.apple.keylayout.US")

	assert.Equal(t, models.AllLocales, registry.Locales())

	tertiary, ok := registry.Tertiary()
	require.True(t, ok)
	assert.Equal(t, models.LocaleSecondaryCJKA, tertiary)

	src, ok := registry.Resolve(models.LocalePrimaryCJK)
	require.True(t, ok)
	assert.Equal(t, koreanID, src.ID())
}

// TestNewRegistry_TertiaryFallback 测试第一个次要输入源缺失时使用第二个
func TestNewRegistry_TertiaryFallback(t *testing.T) {
	registry, _ := newRegistry(t, latinID, koreanID, chineseID)

	tertiary, ok := registry.Tertiary()
	require.True(t, ok)
	assert.Equal(t, models.LocaleSecondaryCJKB, tertiary)

	_, ok = registry.Resolve(models.LocaleSecondaryCJKA)
	assert.False(t, ok)
}

// TestNewRegistry_NoTertiary 测试没有次要输入源
func TestNewRegistry_NoTertiary(t *testing.T) {
	registry, _ := newRegistry(t, latinID, koreanID)

	_, ok := registry.Tertiary()
	assert.False(t, ok)
	assert.Equal(t, []models.Locale{models.LocaleLatin, models.LocalePrimaryCJK}, registry.Locales())
}

// TestNewRegistry_RequiredMissing 测试必需输入源缺失
func TestNewRegistry_RequiredMissing(t *testing.T) {
	_, err := NewRegistry(platformtest.NewInputSources(latinID, japaneseID), config.Default().Locales)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequiredLocaleMissing))
	assert.Contains(t, err.Error(), koreanID)

	cfg := config.Default().Locales
	cfg.Latin = "com.example.missing"
	_, err = NewRegistry(platformtest.NewInputSources(latinID, koreanID), cfg)
	assert.True(t, errors.Is(err, ErrRequiredLocaleMissing))
}

// TestNewRegistry_EnumerateError 测试枚举失败
func TestNewRegistry_EnumerateError(t *testing.T) {
	sources := platformtest.NewInputSources(latinID, koreanID)
	sources.SourcesErr = errors.New("tis unavailable")

	_, err := NewRegistry(sources, config.Default().Locales)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRequiredLocaleMissing))
}

// TestRegistry_Current 测试当前输入源的判断顺序
func TestRegistry_Current(t *testing.T) {
	registry, sources := newRegistry(t, latinID, koreanID, japaneseID, chineseID, "com.apple.keylayout.US")

	assert.Equal(t, models.LocaleLatin, registry.Current())

	sources.SetSelected(koreanID)
	assert.Equal(t, models.LocalePrimaryCJK, registry.Current())

	sources.SetSelected(japaneseID)
	assert.Equal(t, models.LocaleSecondaryCJKA, registry.Current())

	sources.SetSelected(chineseID)
	assert.Equal(t, models.LocaleSecondaryCJKB, registry.Current())

	core, logs := observer.New(zapcore.WarnLevel)
	restore := logger.ReplaceLogger(zap.New(core))
	defer restore()

	sources.SetSelected("com.apple.keylayout.US")
	assert.Equal(t, models.LocaleLatin, registry.Current(), "未管理的输入源按拉丁处理")
	assert.Equal(t, 1, logs.Len())
}

// TestRegistry_IsPrimaryVariant 测试主要 CJK 标识集合
func TestRegistry_IsPrimaryVariant(t *testing.T) {
	registry, _ := newRegistry(t, latinID, koreanID)

	assert.True(t, registry.IsPrimaryVariant(koreanID))
	assert.True(t, registry.IsPrimaryVariant(hangulID))
	assert.False(t, registry.IsPrimaryVariant(latinID))
	assert.False(t, registry.IsActive(nil))
}

// TestSwitchTo_PrimaryCJK 测试切到主要 CJK 的完整协议
func TestSwitchTo_PrimaryCJK(t *testing.T) {
	f := newSwitchFixture(t, latinID, koreanID)

	require.NoError(t, f.switcher.SwitchTo(models.LocalePrimaryCJK))
	assert.Equal(t, []string{latinID}, f.sources.Selections(), "先立即切到拉丁")

	f.sched.Advance(time.Millisecond)
	assert.Equal(t, []string{latinID, latinID, koreanID}, f.sources.Selections())
	assert.Equal(t, models.LocalePrimaryCJK, f.registry.Current())

	f.sched.Advance(100 * time.Millisecond)
	assert.Len(t, f.sources.Selections(), 3, "校验通过时不重试")
	assert.Zero(t, f.sched.Pending())
	assert.Equal(t, []bool{false}, f.retries())
}

// TestSwitchTo_Latin 测试切到拉丁不需要预先切换
func TestSwitchTo_Latin(t *testing.T) {
	f := newSwitchFixture(t, koreanID, latinID)

	require.NoError(t, f.switcher.SwitchTo(models.LocaleLatin))
	assert.Empty(t, f.sources.Selections())

	f.sched.Advance(time.Millisecond)
	assert.Equal(t, []string{latinID, latinID}, f.sources.Selections())
	assert.Zero(t, f.sched.Pending(), "拉丁不需要校验")
}

// TestSwitchTo_ExactlyOneRetry 测试校验失败只重试一次
func TestSwitchTo_ExactlyOneRetry(t *testing.T) {
	f := newSwitchFixture(t, latinID, koreanID)
	f.sources.SwallowNext(koreanID, 100)

	core, logs := observer.New(zapcore.WarnLevel)
	restore := logger.ReplaceLogger(zap.New(core))
	defer restore()

	require.NoError(t, f.switcher.SwitchTo(models.LocalePrimaryCJK))
	f.sched.Advance(time.Millisecond)
	assert.Len(t, f.sources.Selections(), 3)

	f.sched.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{latinID, latinID, koreanID, latinID, koreanID}, f.sources.Selections())

	f.sched.Advance(10 * time.Second)
	assert.Len(t, f.sources.Selections(), 5, "第二次失败不再重试")
	assert.Zero(t, f.sched.Pending())
	assert.Equal(t, []bool{false, true}, f.retries())
	assert.Equal(t, 2, logs.Len(), "一次重试日志，一次最终失败日志")
}

// TestSwitchTo_RetrySucceeds 测试重试成功
func TestSwitchTo_RetrySucceeds(t *testing.T) {
	f := newSwitchFixture(t, latinID, koreanID)
	f.sources.SwallowNext(koreanID, 1)

	require.NoError(t, f.switcher.SwitchTo(models.LocalePrimaryCJK))
	f.sched.Advance(time.Millisecond)
	assert.Equal(t, models.LocaleLatin, f.registry.Current())

	f.sched.Advance(time.Second)
	assert.Len(t, f.sources.Selections(), 5)
	assert.Equal(t, models.LocalePrimaryCJK, f.registry.Current())
}

// TestSwitchTo_VariantAccepted 测试变体标识视为切换成功
func TestSwitchTo_VariantAccepted(t *testing.T) {
	f := newSwitchFixture(t, latinID, koreanID)

	require.NoError(t, f.switcher.SwitchTo(models.LocalePrimaryCJK))
	f.sched.Advance(time.Millisecond)
	f.sources.SetSelected(hangulID)

	f.sched.Advance(time.Second)
	assert.Len(t, f.sources.Selections(), 3)
}

// TestSwitchTo_Tertiary 测试切到第三输入源不做校验
func TestSwitchTo_Tertiary(t *testing.T) {
	f := newSwitchFixture(t, latinID, koreanID, japaneseID)

	require.NoError(t, f.switcher.SwitchTo(models.LocaleSecondaryCJKA))
	f.sched.Advance(time.Millisecond)

	assert.Equal(t, []string{latinID, latinID, japaneseID}, f.sources.Selections())
	assert.Equal(t, models.LocaleSecondaryCJKA, f.registry.Current())
	assert.Zero(t, f.sched.Pending())
}

// TestSwitchTo_Unavailable 测试切到未安装的输入源
func TestSwitchTo_Unavailable(t *testing.T) {
	f := newSwitchFixture(t, latinID, koreanID)

	err := f.switcher.SwitchTo(models.LocaleSecondaryCJKB)
	assert.True(t, errors.Is(err, ErrLocaleUnavailable))
	assert.Empty(t, f.sources.Selections())
	assert.Zero(t, f.sched.Pending())
	assert.Empty(t, f.retries())
}

// TestSwitchTo_LastWriterWins 测试连续切换以最后一次为准
func TestSwitchTo_LastWriterWins(t *testing.T) {
	f := newSwitchFixture(t, latinID, koreanID, japaneseID)

	require.NoError(t, f.switcher.SwitchTo(models.LocalePrimaryCJK))
	require.NoError(t, f.switcher.SwitchTo(models.LocaleSecondaryCJKA))
	f.sched.Advance(time.Millisecond)

	assert.Equal(t, models.LocaleSecondaryCJKA, f.registry.Current())
}

// TestRapidDummySwitch 测试切走再切回
func TestRapidDummySwitch(t *testing.T) {
	f := newSwitchFixture(t, latinID, koreanID)

	f.switcher.RapidDummySwitch()
	assert.Equal(t, []string{koreanID, latinID}, f.sources.Selections())
	assert.Equal(t, models.LocaleLatin, f.registry.Current())

	f.sources.SetSelected(koreanID)
	f.sources.ResetSelections()
	f.switcher.RapidDummySwitch()
	assert.Equal(t, []string{latinID, koreanID}, f.sources.Selections())
	assert.Equal(t, models.LocalePrimaryCJK, f.registry.Current())
}
