//go:build !darwin

package platform

import "fmt"

// StubPermissionChecker 权限检查器的 stub 实现（非 macOS 平台）
type StubPermissionChecker struct{}

// NewPermissionChecker 创建权限检查器的 stub 实现
func NewPermissionChecker() PermissionChecker {
	return &StubPermissionChecker{}
}

// CheckPermission 始终返回 Unknown
func (c *StubPermissionChecker) CheckPermission(permType PermissionType) PermissionStatus {
	return PermissionStatusUnknown
}

// RequestPermission 在非 macOS 平台上始终返回错误
func (c *StubPermissionChecker) RequestPermission(permType PermissionType) error {
	return fmt.Errorf("请求 %s 权限: %w", permType, ErrUnsupported)
}

// OpenSystemSettings 在非 macOS 平台上始终返回错误
func (c *StubPermissionChecker) OpenSystemSettings(permType PermissionType) error {
	return fmt.Errorf("打开 %s 设置: %w", permType, ErrUnsupported)
}
