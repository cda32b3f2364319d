//go:build darwin

package platform

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/chenyang-zz/capsflow/pkg/logger"
)

// DetectCapabilities 读取 kern.osproductversion 计算平台能力
func DetectCapabilities() Capabilities {
	version, err := unix.Sysctl("kern.osproductversion")
	if err != nil {
		logger.Warn("读取系统版本失败，按旧版本处理",
			zap.String("component", "platform"),
			zap.Error(err),
		)
		return Capabilities{}
	}

	caps := capabilitiesForVersion(version)
	logger.Info("平台能力",
		zap.String("component", "platform"),
		zap.String("os_version", caps.OSVersion),
		zap.Bool("native_capslock_latch", caps.NativeCapsLockLatch),
	)
	return caps
}
