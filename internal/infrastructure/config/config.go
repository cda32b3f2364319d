/**
 * Package config 提供配置管理功能
 *
 * 负责加载和管理应用的配置信息。配置文件位于 XDG 配置目录下的
 * capsflow/config.yaml，不存在时使用默认配置。
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
)

// RelativePath 配置文件相对 XDG 配置目录的路径
const RelativePath = "capsflow/config.yaml"

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("invalid config")

/**
 * Config 应用配置结构体
 *
 * 包含应用的所有可配置参数
 */
type Config struct {
	// Locales 输入源标识
	Locales LocalesConfig `yaml:"locales"`

	// Switching 切换协议时序
	Switching SwitchingConfig `yaml:"switching"`

	// Popup 弹窗抑制配置
	Popup PopupConfig `yaml:"popup"`

	// Observer 窗口观察器配置
	Observer ObserverConfig `yaml:"observer"`

	// Logging 日志配置
	Logging LoggingConfig `yaml:"logging"`
}

/**
 * LocalesConfig 每个符号输入源对应的系统输入源标识
 */
type LocalesConfig struct {
	/** 拉丁输入源 */
	Latin string `yaml:"latin"`

	/** 主要 CJK 输入源 */
	PrimaryCJK string `yaml:"primary_cjk"`

	/** 次要 CJK 输入源 A */
	SecondaryCJKA string `yaml:"secondary_cjk_a"`

	/** 次要 CJK 输入源 B */
	SecondaryCJKB string `yaml:"secondary_cjk_b"`

	/** 切换校验时视为主要 CJK 已生效的额外标识 */
	PrimaryVariantIDs []string `yaml:"primary_variant_ids"`
}

// IDs 返回 Locale 到输入源标识的映射，空标识的输入源不包含在内
func (c LocalesConfig) IDs() map[models.Locale]string {
	ids := make(map[models.Locale]string, 4)
	for locale, id := range map[models.Locale]string{
		models.LocaleLatin:         c.Latin,
		models.LocalePrimaryCJK:    c.PrimaryCJK,
		models.LocaleSecondaryCJKA: c.SecondaryCJKA,
		models.LocaleSecondaryCJKB: c.SecondaryCJKB,
	} {
		if id != "" {
			ids[locale] = id
		}
	}
	return ids
}

/**
 * SwitchingConfig 切换协议时序
 */
type SwitchingConfig struct {
	/** 第一次切到拉丁后再次发出切换命令前的等待 */
	SettleDelay time.Duration `yaml:"settle_delay"`

	/** 切到主要 CJK 后校验是否生效的等待 */
	VerifyDelay time.Duration `yaml:"verify_delay"`

	/** 非原生锁定平台上，按键后重新读取系统 Caps-Lock 状态的等待 */
	LatchResyncDelay time.Duration `yaml:"latch_resync_delay"`
}

/**
 * PopupConfig 弹窗抑制配置
 */
type PopupConfig struct {
	/** 启动时是否开启弹窗抑制 */
	Enabled bool `yaml:"enabled"`

	/** 距上次 Caps-Lock 按下至少经过多久才处理新窗口 */
	Gate time.Duration `yaml:"gate"`

	/** 每个弹窗的重定位次数（含第一次） */
	Repeats int `yaml:"repeats"`

	/** 重定位间隔 */
	Interval time.Duration `yaml:"interval"`

	/** 销毁完成后的冷却时间 */
	CoolDown time.Duration `yaml:"cool_down"`

	/** 屏幕外坐标 */
	OffscreenX float64 `yaml:"offscreen_x"`
	OffscreenY float64 `yaml:"offscreen_y"`

	/** 弹窗结构特征 */
	Signature SignatureConfig `yaml:"signature"`
}

/**
 * SignatureConfig 目标弹窗的结构特征
 */
type SignatureConfig struct {
	Subrole   string `yaml:"subrole"`
	ChildRole string `yaml:"child_role"`
}

/**
 * ObserverConfig 窗口观察器配置
 */
type ObserverConfig struct {
	/** 应用切换通知的去抖时间 */
	Debounce time.Duration `yaml:"debounce"`

	/** 去抖之后再等待的稳定时间 */
	Settle time.Duration `yaml:"settle"`
}

/**
 * LoggingConfig 日志配置
 */
type LoggingConfig struct {
	/** 日志级别 */
	Level string `yaml:"level"`

	/** 日志文件路径，为空只输出到控制台 */
	File string `yaml:"file"`

	/** 滚动参数 */
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

/**
 * Default 返回默认配置
 */
func Default() *Config {
	return &Config{
		Locales: LocalesConfig{
			Latin:             "com.apple.keylayout.ABC",
			PrimaryCJK:        "com.apple.inputmethod.Korean.2SetKorean",
			SecondaryCJKA:     "com.apple.inputmethod.Kotoeri.RomajiTyping.Japanese",
			SecondaryCJKB:     "com.apple.inputmethod.SCIM.ITABC",
			PrimaryVariantIDs: []string{"com.apple.keylayout.2SetHangul"},
		},
		Switching: SwitchingConfig{
			SettleDelay:      time.Millisecond,
			VerifyDelay:      100 * time.Millisecond,
			LatchResyncDelay: 20 * time.Millisecond,
		},
		Popup: PopupConfig{
			Enabled:    true,
			Gate:       30 * time.Second,
			Repeats:    8,
			Interval:   time.Second / 60,
			CoolDown:   500 * time.Millisecond,
			OffscreenX: -10000,
			OffscreenY: -10000,
			Signature: SignatureConfig{
				Subrole:   "AXDialog",
				ChildRole: "AXButton",
			},
		},
		Observer: ObserverConfig{
			Debounce: time.Second,
			Settle:   100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

/**
 * DefaultPath 返回配置文件路径
 *
 * 使用 XDG 配置目录，macOS 上为 ~/Library/Application Support/capsflow/config.yaml。
 * 会创建缺失的父目录。
 */
func DefaultPath() (string, error) {
	path, err := xdg.ConfigFile(RelativePath)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

/**
 * Load 从默认路径加载配置
 *
 * Returns:
 *   - *Config: 配置对象，文件不存在时为默认配置
 *   - error: 读取、解析或校验失败
 */
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

/**
 * LoadFrom 从指定路径加载配置
 *
 * 文件中没有出现的字段保持默认值。
 *
 * Parameters:
 *   - path: 配置文件路径
 */
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(data)
}

/**
 * Parse 解析 YAML 配置并校验
 */
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

/**
 * Save 把配置写入 path
 */
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap 使 errors.Is(err, ErrInvalidConfig) 成立
func (e *FieldError) Unwrap() error {
	return ErrInvalidConfig
}

/**
 * Validate 校验配置
 *
 * Returns: error - 所有字段错误合并后的错误，每个都是 *FieldError
 */
func (c *Config) Validate() error {
	var err error
	invalid := func(field, reason string) {
		err = multierr.Append(err, &FieldError{Field: field, Reason: reason})
	}

	if c.Locales.Latin == "" {
		invalid("locales.latin", "required")
	}
	if c.Locales.PrimaryCJK == "" {
		invalid("locales.primary_cjk", "required")
	}
	if c.Switching.SettleDelay < 0 {
		invalid("switching.settle_delay", "must not be negative")
	}
	if c.Switching.VerifyDelay <= 0 {
		invalid("switching.verify_delay", "must be positive")
	}
	if c.Switching.LatchResyncDelay < 0 {
		invalid("switching.latch_resync_delay", "must not be negative")
	}
	if c.Popup.Gate < 0 {
		invalid("popup.gate", "must not be negative")
	}
	if c.Popup.Repeats < 1 {
		invalid("popup.repeats", "must be at least 1")
	}
	if c.Popup.Interval <= 0 {
		invalid("popup.interval", "must be positive")
	}
	if c.Popup.CoolDown < 0 {
		invalid("popup.cool_down", "must not be negative")
	}
	if c.Popup.Signature.Subrole == "" {
		invalid("popup.signature.subrole", "required")
	}
	if c.Popup.Signature.ChildRole == "" {
		invalid("popup.signature.child_role", "required")
	}
	if c.Observer.Debounce < 0 {
		invalid("observer.debounce", "must not be negative")
	}
	if c.Observer.Settle < 0 {
		invalid("observer.settle", "must not be negative")
	}

	return err
}
