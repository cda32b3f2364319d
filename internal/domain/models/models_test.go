package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLocale 测试输入源名称解析
func TestParseLocale(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Locale
		wantErr  bool
	}{
		{"符号名", "primary-cjk", LocalePrimaryCJK, false},
		{"英文别名", "english", LocaleLatin, false},
		{"日文别名", "ja", LocaleSecondaryCJKA, false},
		{"中文别名", "chinese", LocaleSecondaryCJKB, false},
		{"未知名称", "klingon", "", true},
		{"空字符串", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocale(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// TestLocale_Required 测试必需输入源判定
func TestLocale_Required(t *testing.T) {
	assert.True(t, LocaleLatin.Required())
	assert.True(t, LocalePrimaryCJK.Required())
	assert.False(t, LocaleSecondaryCJKA.Required())
	assert.False(t, LocaleSecondaryCJKB.Required())
}

// TestWatchedUsages 测试监听的用途码集合
func TestWatchedUsages(t *testing.T) {
	assert.Equal(t, []KeyUsage{UsageCapsLock, UsageLeftShift, UsageRightShift}, WatchedUsages(false))

	withOption := WatchedUsages(true)
	assert.Len(t, withOption, 5)
	assert.Contains(t, withOption, UsageLeftOption)
	assert.Contains(t, withOption, UsageRightOption)
}

// TestKeyUsage_Classification 测试修饰键分类
func TestKeyUsage_Classification(t *testing.T) {
	assert.True(t, UsageLeftShift.IsShift())
	assert.True(t, UsageRightShift.IsShift())
	assert.False(t, UsageCapsLock.IsShift())
	assert.True(t, UsageRightOption.IsOption())
	assert.False(t, UsageLeftShift.IsOption())
	assert.Equal(t, "caps_lock", UsageCapsLock.String())
	assert.Equal(t, "usage_0x04", KeyUsage(0x04).String())
}
