package platform

import (
	"strconv"
	"strings"
)

// Capabilities 启动时确定的平台能力
type Capabilities struct {
	// OSVersion 系统产品版本，例如 "15.2"
	OSVersion string

	// NativeCapsLockLatch 系统自己管理 Caps-Lock 锁定灯（macOS 15.2 起），
	// 软件只需维护自己的记录，不再写系统锁定状态
	NativeCapsLockLatch bool
}

// nativeLatchSince 系统开始自行管理 Caps-Lock 锁定的版本
var nativeLatchSince = [3]int{15, 2, 0}

// capabilitiesForVersion 根据系统版本计算能力
func capabilitiesForVersion(version string) Capabilities {
	v, ok := parseOSVersion(version)
	return Capabilities{
		OSVersion:           version,
		NativeCapsLockLatch: ok && !versionLess(v, nativeLatchSince),
	}
}

// parseOSVersion 解析 "major.minor.patch"，缺省部分为 0
func parseOSVersion(version string) ([3]int, bool) {
	var v [3]int
	version = strings.TrimSpace(version)
	if version == "" {
		return v, false
	}

	parts := strings.Split(version, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return [3]int{}, false
		}
		v[i] = n
	}
	return v, true
}

func versionLess(a, b [3]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
