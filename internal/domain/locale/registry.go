/**
 * Package locale 负责输入源解析与切换
 *
 * Registry 在启动时把符号化的 Locale 解析为系统输入源句柄，
 * Switcher 实现带校验和重试的切换协议。
 */
package locale

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/config"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/pkg/logger"
)

var (
	// ErrRequiredLocaleMissing 拉丁或主要 CJK 输入源未安装，无法启动
	ErrRequiredLocaleMissing = errors.New("locale: required input source missing")

	// ErrLocaleUnavailable 请求的可选输入源未安装
	ErrLocaleUnavailable = errors.New("locale: input source unavailable")
)

// currentOrder Current 的检查顺序
var currentOrder = []models.Locale{
	models.LocalePrimaryCJK,
	models.LocaleLatin,
	models.LocaleSecondaryCJKA,
	models.LocaleSecondaryCJKB,
}

/**
 * Registry 输入源注册表
 *
 * 句柄只在创建时解析一次，之后只读，可以并发使用。
 */
type Registry struct {
	source   platform.InputSourceRegistry
	handles  map[models.Locale]platform.InputSource
	variants map[string]struct{}
	tertiary models.Locale
}

/**
 * NewRegistry 枚举系统输入源并解析所有 Locale
 *
 * Parameters:
 *   - source: 系统输入源注册表
 *   - cfg: 每个 Locale 对应的输入源标识
 *
 * Returns:
 *   - *Registry: 注册表
 *   - error: 枚举失败，或必需的输入源缺失（包装 ErrRequiredLocaleMissing）
 */
func NewRegistry(source platform.InputSourceRegistry, cfg config.LocalesConfig) (*Registry, error) {
	sources, err := source.Sources()
	if err != nil {
		return nil, fmt.Errorf("enumerate input sources: %w", err)
	}

	byID := make(map[string]platform.InputSource, len(sources))
	for _, src := range sources {
		byID[src.ID()] = src
	}

	r := &Registry{
		source:   source,
		handles:  make(map[models.Locale]platform.InputSource, len(models.AllLocales)),
		variants: make(map[string]struct{}),
	}

	ids := cfg.IDs()
	for _, l := range models.AllLocales {
		id, configured := ids[l]
		src, found := byID[id]

		switch {
		case configured && found:
			r.handles[l] = src
		case l.Required():
			return nil, fmt.Errorf("%w: %s (%q)", ErrRequiredLocaleMissing, l, id)
		default:
			logger.Info("可选输入源未安装",
				zap.String("component", "locale_registry"),
				zap.String("locale", l.String()),
				zap.String("id", id),
			)
		}
	}

	for _, l := range models.SecondaryLocales {
		if _, ok := r.handles[l]; ok {
			r.tertiary = l
			break
		}
	}

	r.variants[cfg.PrimaryCJK] = struct{}{}
	for _, id := range cfg.PrimaryVariantIDs {
		r.variants[id] = struct{}{}
	}

	logger.Info("输入源解析完成",
		zap.String("component", "locale_registry"),
		zap.Int("resolved", len(r.handles)),
		zap.String("tertiary", r.tertiary.String()),
	)

	return r, nil
}

// Resolve 返回 Locale 对应的句柄，未安装时第二个返回值为 false
func (r *Registry) Resolve(l models.Locale) (platform.InputSource, bool) {
	src, ok := r.handles[l]
	return src, ok
}

// IsActive 句柄是否为当前选中的输入源
func (r *Registry) IsActive(handle platform.InputSource) bool {
	return handle != nil && handle.IsSelected()
}

/**
 * Current 返回当前选中的 Locale
 *
 * 按主要 CJK、拉丁、第三输入源的顺序检查，第一个选中的胜出。
 * 都没有选中时（例如用户选了不受管理的输入源）返回拉丁并记录警告。
 */
func (r *Registry) Current() models.Locale {
	for _, l := range currentOrder {
		if src, ok := r.handles[l]; ok && r.IsActive(src) {
			return l
		}
	}

	logger.Warn("无法确定当前输入源，按拉丁处理",
		zap.String("component", "locale_registry"),
	)
	return models.LocaleLatin
}

// Locales 返回已解析的 Locale，按声明顺序
func (r *Registry) Locales() []models.Locale {
	out := make([]models.Locale, 0, len(r.handles))
	for _, l := range models.AllLocales {
		if _, ok := r.handles[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Tertiary 返回第三输入源（第一个已安装的次要 CJK 输入源）
func (r *Registry) Tertiary() (models.Locale, bool) {
	return r.tertiary, r.tertiary != ""
}

// SelectedID 系统当前选中的输入源标识
func (r *Registry) SelectedID() (string, error) {
	return r.source.SelectedID()
}

// IsPrimaryVariant id 是否视为主要 CJK 已生效
func (r *Registry) IsPrimaryVariant(id string) bool {
	_, ok := r.variants[id]
	return ok
}
