package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/pkg/events"
	"github.com/chenyang-zz/capsflow/pkg/logger"
)

// ErrPermissionDenied 所需的系统权限未授予
var ErrPermissionDenied = errors.New("permission denied")

// PermissionManager 权限管理器
//
// 负责检查和请求系统权限，提供权限缓存和事件发布功能。
// 弹窗抑制启动前通过 EnsurePermission 确认辅助功能权限。
type PermissionManager struct {
	// checker 平台层权限检查器
	checker platform.PermissionChecker

	// eventBus 事件总线，用于发布权限事件，可以为 nil
	eventBus *events.EventBus

	// cache 只缓存已授予的状态，未授予的每次都重新检查
	cache map[platform.PermissionType]time.Time

	mu sync.Mutex

	// cacheDuration 缓存有效期（默认 5 分钟）
	cacheDuration time.Duration
}

// NewPermissionManager 创建权限管理器
//
// Parameters:
//   - checker: 平台层权限检查器实例
//   - eventBus: 事件总线实例，用于发布权限事件
//
// Returns: *PermissionManager - 新创建的权限管理器实例
func NewPermissionManager(checker platform.PermissionChecker, eventBus *events.EventBus) *PermissionManager {
	return &PermissionManager{
		checker:       checker,
		eventBus:      eventBus,
		cache:         make(map[platform.PermissionType]time.Time),
		cacheDuration: 5 * time.Minute,
	}
}

// CheckPermission 检查权限状态
//
// 已授予的状态在缓存有效期内直接返回；用户可能随时在系统设置中授权，
// 所以未授予的状态不缓存。
//
// Parameters:
//   - permType: 权限类型
//
// Returns: PermissionStatus - 权限状态
func (pm *PermissionManager) CheckPermission(permType platform.PermissionType) platform.PermissionStatus {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if expire, ok := pm.cache[permType]; ok && time.Now().Before(expire) {
		return platform.PermissionStatusGranted
	}

	status := pm.checker.CheckPermission(permType)
	if status == platform.PermissionStatusGranted {
		pm.cache[permType] = time.Now().Add(pm.cacheDuration)
	} else {
		delete(pm.cache, permType)
	}

	logger.Debug("权限状态",
		zap.String("component", "permission"),
		zap.String("permission", permType.String()),
		zap.String("status", status.String()),
	)
	return status
}

// EnsurePermission 确保权限已授予
//
// 权限未授予时请求一次系统授权（系统会弹出提示），然后返回 ErrPermissionDenied。
// 用户授权后调用方重试即可，这里不会阻塞等待。
//
// Parameters:
//   - permType: 权限类型
//
// Returns: error - 权限未授予时返回包装了 ErrPermissionDenied 的错误
func (pm *PermissionManager) EnsurePermission(permType platform.PermissionType) error {
	status := pm.CheckPermission(permType)
	if status == platform.PermissionStatusGranted {
		return nil
	}

	logger.Warn("缺少系统权限",
		zap.String("component", "permission"),
		zap.String("permission", permType.String()),
		zap.String("status", status.String()),
		zap.String("hint", permissionHint(permType)),
	)

	if err := pm.RequestPermission(permType); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, permType, err)
	}

	// 部分系统在请求后立即生效
	if pm.CheckPermission(permType) == platform.PermissionStatusGranted {
		return nil
	}

	pm.publishPermissionEvent(permType, status, permissionHint(permType))
	return fmt.Errorf("%w: %s", ErrPermissionDenied, permType)
}

// RequestPermission 请求权限
//
// 显示系统权限请求对话框。调用后可以用 OpenSystemSettings 打开设置页面。
func (pm *PermissionManager) RequestPermission(permType platform.PermissionType) error {
	logger.Info("请求权限",
		zap.String("component", "permission"),
		zap.String("permission", permType.String()),
	)

	if err := pm.checker.RequestPermission(permType); err != nil {
		logger.Error("请求权限失败",
			zap.String("component", "permission"),
			zap.String("permission", permType.String()),
			zap.Error(err),
		)
		return err
	}

	pm.InvalidateCache(permType)
	return nil
}

// OpenSystemSettings 打开系统设置中对应的权限页面
func (pm *PermissionManager) OpenSystemSettings(permType platform.PermissionType) error {
	if err := pm.checker.OpenSystemSettings(permType); err != nil {
		logger.Error("打开系统设置失败",
			zap.String("component", "permission"),
			zap.String("permission", permType.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// PermissionReport 一项权限的状态，未授予时附带授权提示
type PermissionReport struct {
	Type   platform.PermissionType
	Status platform.PermissionStatus
	Hint   string
}

// RequiredPermissions 运行所需的全部权限
var RequiredPermissions = []platform.PermissionType{
	platform.PermissionInputMonitoring,
	platform.PermissionAccessibility,
}

// Report 检查全部所需权限，不会请求授权
func (pm *PermissionManager) Report() []PermissionReport {
	reports := make([]PermissionReport, 0, len(RequiredPermissions))
	for _, permType := range RequiredPermissions {
		r := PermissionReport{Type: permType, Status: pm.CheckPermission(permType)}
		if r.Status != platform.PermissionStatusGranted {
			r.Hint = permissionHint(permType)
		}
		reports = append(reports, r)
	}
	return reports
}

// InvalidateCache 清除指定权限的缓存
func (pm *PermissionManager) InvalidateCache(permType platform.PermissionType) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.cache, permType)
}

// SetCacheDuration 设置缓存有效期
func (pm *PermissionManager) SetCacheDuration(duration time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.cacheDuration = duration
}

func (pm *PermissionManager) publishPermissionEvent(permType platform.PermissionType, status platform.PermissionStatus, message string) {
	if pm.eventBus == nil {
		return
	}

	event := events.NewEvent(events.EventTypePermission, map[string]interface{}{
		"permission":        permType.String(),
		events.DataKeyState: status.String(),
		"message":           message,
	})
	if err := pm.eventBus.Publish(*event); err != nil {
		logger.Debug("发布权限事件失败",
			zap.String("component", "permission"),
			zap.Error(err),
		)
	}
}

// permissionHint 返回用户友好的授权提示
func permissionHint(permType platform.PermissionType) string {
	switch permType {
	case platform.PermissionAccessibility:
		return "弹窗抑制需要辅助功能权限。" +
			"请在【系统设置 > 隐私与安全性 > 辅助功能】中启用此应用后重试。"

	case platform.PermissionInputMonitoring:
		return "Caps-Lock 切换需要输入监控权限。" +
			"请在【系统设置 > 隐私与安全性 > 输入监控】中启用此应用。"

	default:
		return "需要相关权限才能正常工作。"
	}
}
