/**
 * Package models 定义输入源切换的领域模型
 *
 * 包含符号化的输入源（Locale）、HID 按键用途码和按键转换
 */

package models

import (
	"fmt"
	"time"
)

/**
 * Locale 符号化的输入源标识
 *
 * 每个 Locale 在启动时解析为一个可选的系统输入源句柄
 */
type Locale string

const (
	// LocaleLatin 拉丁字母（英文）输入源，必须存在
	LocaleLatin Locale = "latin"

	// LocalePrimaryCJK 主要 CJK 输入源（韩文两笔），必须存在
	LocalePrimaryCJK Locale = "primary-cjk"

	// LocaleSecondaryCJKA 次要 CJK 输入源 A（日文罗马字），可选
	LocaleSecondaryCJKA Locale = "secondary-cjk-a"

	// LocaleSecondaryCJKB 次要 CJK 输入源 B（简体拼音），可选
	LocaleSecondaryCJKB Locale = "secondary-cjk-b"
)

// AllLocales 所有已知输入源，按声明顺序
var AllLocales = []Locale{LocaleLatin, LocalePrimaryCJK, LocaleSecondaryCJKA, LocaleSecondaryCJKB}

// SecondaryLocales 可选输入源，按成为第三输入源的优先级排序
var SecondaryLocales = []Locale{LocaleSecondaryCJKA, LocaleSecondaryCJKB}

// Required 该输入源缺失时是否必须终止启动
func (l Locale) Required() bool {
	return l == LocaleLatin || l == LocalePrimaryCJK
}

// IsValid 是否为已知输入源
func (l Locale) IsValid() bool {
	for _, known := range AllLocales {
		if l == known {
			return true
		}
	}
	return false
}

func (l Locale) String() string {
	return string(l)
}

/**
 * ParseLocale 解析输入源名称
 *
 * 除了符号名，也接受常用别名（english/korean/japanese/chinese）。
 *
 * Parameters:
 *   - name: 输入源名称
 *
 * Returns:
 *   - Locale: 解析出的输入源
 *   - error: 未知名称
 */
func ParseLocale(name string) (Locale, error) {
	switch name {
	case "english", "en":
		return LocaleLatin, nil
	case "korean", "ko":
		return LocalePrimaryCJK, nil
	case "japanese", "ja":
		return LocaleSecondaryCJKA, nil
	case "chinese", "zh":
		return LocaleSecondaryCJKB, nil
	}

	l := Locale(name)
	if !l.IsValid() {
		return "", fmt.Errorf("unknown locale %q", name)
	}
	return l, nil
}

/**
 * KeyUsage HID 键盘页（0x07）用途码
 */
type KeyUsage uint32

const (
	UsageCapsLock    KeyUsage = 0x39
	UsageLeftShift   KeyUsage = 0xE1
	UsageLeftOption  KeyUsage = 0xE2
	UsageRightShift  KeyUsage = 0xE5
	UsageRightOption KeyUsage = 0xE6
)

// IsShift 是否为左右 Shift
func (u KeyUsage) IsShift() bool {
	return u == UsageLeftShift || u == UsageRightShift
}

// IsOption 是否为左右 Option
func (u KeyUsage) IsOption() bool {
	return u == UsageLeftOption || u == UsageRightOption
}

func (u KeyUsage) String() string {
	switch u {
	case UsageCapsLock:
		return "caps_lock"
	case UsageLeftShift:
		return "left_shift"
	case UsageRightShift:
		return "right_shift"
	case UsageLeftOption:
		return "left_option"
	case UsageRightOption:
		return "right_option"
	default:
		return fmt.Sprintf("usage_0x%02X", uint32(u))
	}
}

/**
 * WatchedUsages 返回需要监听的用途码
 *
 * Parameters:
 *   - withOption: 是否包含 Option（只有配置了第三输入源时才需要）
 */
func WatchedUsages(withOption bool) []KeyUsage {
	usages := []KeyUsage{UsageCapsLock, UsageLeftShift, UsageRightShift}
	if withOption {
		usages = append(usages, UsageLeftOption, UsageRightOption)
	}
	return usages
}

/**
 * Transition 按键转换方向
 */
type Transition int

const (
	KeyUp Transition = iota
	KeyDown
)

func (t Transition) String() string {
	if t == KeyDown {
		return "down"
	}
	return "up"
}

/**
 * KeyTransition 一次硬件按键转换
 */
type KeyTransition struct {
	// Usage 按键用途码
	Usage KeyUsage

	// Transition 按下或抬起
	Transition Transition

	// At 系统上报时间
	At time.Time
}
