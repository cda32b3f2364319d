//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices -framework IOKit -framework Foundation

#include <ApplicationServices/ApplicationServices.h>
#include <IOKit/hidsystem/IOHIDLib.h>
#import <Foundation/Foundation.h>

// checkAccessibilityPermission 检查辅助功能权限（static 避免符号冲突）
// Returns: 1=已授权, 0=未授权
static int checkAccessibilityPermission() {
    return AXIsProcessTrusted();
}

// requestAccessibilityPermission 显示系统辅助功能授权对话框
// Returns: 0=已授权, -1=未授权
static int requestAccessibilityPermission() {
    @autoreleasepool {
        NSDictionary *options = @{(__bridge id)kAXTrustedCheckOptionPrompt: @YES};
        BOOL trusted = AXIsProcessTrustedWithOptions((__bridge CFDictionaryRef)options);
        return trusted ? 0 : -1;
    }
}

// checkInputMonitoringPermission 检查输入监控权限
// Returns: 0=已授权, 1=已拒绝, 2=未决定
static int checkInputMonitoringPermission() {
    IOHIDAccessType access = IOHIDCheckAccess(kIOHIDRequestTypeListenEvent);
    switch (access) {
    case kIOHIDAccessTypeGranted:
        return 0;
    case kIOHIDAccessTypeDenied:
        return 1;
    default:
        return 2;
    }
}

// requestInputMonitoringPermission 显示系统输入监控授权对话框
// Returns: 1=已授权, 0=未授权
static int requestInputMonitoringPermission() {
    return IOHIDRequestAccess(kIOHIDRequestTypeListenEvent) ? 1 : 0;
}
*/
import "C"
import (
	"fmt"
	"os/exec"
)

// DarwinPermissionChecker macOS 平台的权限检查器实现
type DarwinPermissionChecker struct{}

// NewPermissionChecker 创建 macOS 平台的权限检查器
// Returns: PermissionChecker - macOS 平台的权限检查器实例
func NewPermissionChecker() PermissionChecker {
	return &DarwinPermissionChecker{}
}

// CheckPermission 检查权限状态
// Parameters: permType - 权限类型
// Returns: PermissionStatus - 权限状态
func (c *DarwinPermissionChecker) CheckPermission(permType PermissionType) PermissionStatus {
	switch permType {
	case PermissionAccessibility:
		if C.checkAccessibilityPermission() == 1 {
			return PermissionStatusGranted
		}
		return PermissionStatusDenied

	case PermissionInputMonitoring:
		switch C.checkInputMonitoringPermission() {
		case 0:
			return PermissionStatusGranted
		case 1:
			return PermissionStatusDenied
		default:
			return PermissionStatusUnknown
		}

	default:
		return PermissionStatusUnknown
	}
}

// RequestPermission 请求权限
// 显示系统权限请求对话框，用户授权前返回错误
// Parameters: permType - 权限类型
// Returns: error - 仍未授权时返回错误
func (c *DarwinPermissionChecker) RequestPermission(permType PermissionType) error {
	switch permType {
	case PermissionAccessibility:
		if C.requestAccessibilityPermission() != 0 {
			return fmt.Errorf("辅助功能权限尚未授予")
		}
		return nil

	case PermissionInputMonitoring:
		if C.requestInputMonitoringPermission() != 1 {
			return fmt.Errorf("输入监控权限尚未授予")
		}
		return nil

	default:
		return fmt.Errorf("未知的权限类型: %v", permType)
	}
}

// OpenSystemSettings 打开系统设置中的对应权限页面
// Parameters: permType - 权限类型
// Returns: error - 打开失败时返回错误
func (c *DarwinPermissionChecker) OpenSystemSettings(permType PermissionType) error {
	var url string

	switch permType {
	case PermissionAccessibility:
		url = "x-apple.systempreferences:com.apple.preference.security?Privacy_Accessibility"
	case PermissionInputMonitoring:
		url = "x-apple.systempreferences:com.apple.preference.security?Privacy_ListenEvent"
	default:
		return fmt.Errorf("未知的权限类型: %v", permType)
	}

	// 不等待命令完成，立即返回
	if err := exec.Command("open", url).Start(); err != nil {
		return fmt.Errorf("打开系统设置失败: %w", err)
	}
	return nil
}
