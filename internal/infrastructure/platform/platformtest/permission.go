package platformtest

import (
	"sync"

	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
)

// Permissions 内存权限检查器
type Permissions struct {
	mu       sync.Mutex
	statuses map[platform.PermissionType]platform.PermissionStatus
	requests []platform.PermissionType
	settings []platform.PermissionType

	// GrantOnRequest 为 true 时 RequestPermission 会直接授予权限
	GrantOnRequest bool
}

// NewPermissions 创建所有权限都已授予的检查器
func NewPermissions() *Permissions {
	return &Permissions{statuses: map[platform.PermissionType]platform.PermissionStatus{
		platform.PermissionAccessibility:   platform.PermissionStatusGranted,
		platform.PermissionInputMonitoring: platform.PermissionStatusGranted,
	}}
}

// Set 修改权限状态
func (p *Permissions) Set(permType platform.PermissionType, status platform.PermissionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[permType] = status
}

func (p *Permissions) CheckPermission(permType platform.PermissionType) platform.PermissionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[permType]
	if !ok {
		return platform.PermissionStatusUnknown
	}
	return status
}

func (p *Permissions) RequestPermission(permType platform.PermissionType) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, permType)
	if p.GrantOnRequest {
		p.statuses[permType] = platform.PermissionStatusGranted
	}
	return nil
}

func (p *Permissions) OpenSystemSettings(permType platform.PermissionType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = append(p.settings, permType)
	return nil
}

// Requests 返回 RequestPermission 调用记录
func (p *Permissions) Requests() []platform.PermissionType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platform.PermissionType(nil), p.requests...)
}

// Settings 返回 OpenSystemSettings 调用记录
func (p *Permissions) Settings() []platform.PermissionType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platform.PermissionType(nil), p.settings...)
}
