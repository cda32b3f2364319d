/**
 * Package events 提供事件系统的核心类型定义
 *
 * 事件系统是 CapsFlow 组件之间的通信机制，用于：
 * - 窗口观察器广播窗口创建事件
 * - 切换协议广播输入源切换结果
 * - 弹窗抑制引擎广播销毁结果与状态变化
 */

package events

import (
	"time"

	"github.com/google/uuid"
)

/**
 * EventType 事件类型枚举
 */
type EventType string

/**
 * 所有事件类型常量
 */
const (
	// 监控事件
	EventTypeWindowCreated   EventType = "window_created"   // 前台进程创建了新窗口
	EventTypeAppLifecycle    EventType = "app_lifecycle"    // 应用启动/退出/激活/失活
	EventTypeCapsLockPressed EventType = "capslock_pressed" // 接受的 Caps-Lock 按下

	// 业务事件
	EventTypeLocaleSwitched EventType = "locale_switched" // 已发出切换命令
	EventTypePopupDestroyed EventType = "popup_destroyed" // 弹窗已被移出屏幕

	// 系统事件
	EventTypeError      EventType = "error"      // 错误事件
	EventTypePermission EventType = "permission" // 权限事件
	EventTypeStatus     EventType = "status"     // 状态事件
)

// Data 中常用的键
const (
	DataKeyPID     = "pid"
	DataKeyElement = "element"
	DataKeyLocale  = "locale"
	DataKeyAction  = "action"
	DataKeyState   = "state"
	DataKeyRetry   = "retry"
)

/**
 * Event 统一事件结构
 *
 * 所有监控器和系统事件都使用此结构
 */
type Event struct {
	// ID 事件唯一标识符
	ID string `json:"id"`

	// Type 事件类型
	Type EventType `json:"type"`

	// Timestamp 事件发生时间
	Timestamp time.Time `json:"timestamp"`

	// Data 事件数据（类型特定的数据）
	Data map[string]interface{} `json:"data"`

	// Metadata 事件元数据（可选的额外信息）
	Metadata map[string]string `json:"metadata,omitempty"`
}

/**
 * NewEvent 创建新事件
 *
 * Parameters:
 *   - eventType: 事件类型
 *   - data: 事件数据
 *
 * Returns:
 *   - *Event: 新创建的事件
 */
func NewEvent(eventType EventType, data map[string]interface{}) *Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Event{
		ID:        generateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Metadata:  make(map[string]string),
	}
}

/**
 * WithMetadata 添加元数据
 *
 * Parameters:
 *   - key: 元数据键
 *   - value: 元数据值
 *
 * Returns:
 *   - *Event: 返回自身，支持链式调用
 */
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// String 读取字符串类型的数据字段，不存在或类型不符时返回空字符串
func (e Event) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Int 读取整数类型的数据字段
func (e Event) Int(key string) (int, bool) {
	n, ok := e.Data[key].(int)
	return n, ok
}

/**
 * generateEventID 生成事件唯一 ID
 *
 * 使用 UUID v4 确保全局唯一性
 */
func generateEventID() string {
	return uuid.New().String()
}

/**
 * AppLifecycleEventData 应用生命周期事件数据
 */
type AppLifecycleEventData struct {
	Kind     string `json:"kind"`      // launch/terminate/activate/deactivate
	PID      int    `json:"pid"`       // 进程 ID
	BundleID string `json:"bundle_id"` // 应用 Bundle ID
}

// ToMap 转换为事件数据
func (d AppLifecycleEventData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"kind":      d.Kind,
		DataKeyPID:  d.PID,
		"bundle_id": d.BundleID,
	}
}
