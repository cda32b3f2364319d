package monitor

import (
	"sync"
	"time"
)

// CapsLockSession 按键切换与弹窗抑制共享的会话状态
//
// 只有 Interpreter 写入，其他组件只读。
type CapsLockSession struct {
	mu            sync.RWMutex
	engaged       bool
	lastPressedAt time.Time
}

// NewCapsLockSession 创建会话
//
// startedAt 作为初始的按下时间，启动后 Gate 时间内出现的弹窗同样会被忽略。
func NewCapsLockSession(startedAt time.Time) *CapsLockSession {
	return &CapsLockSession{lastPressedAt: startedAt}
}

// Engaged Caps-Lock 是否处于软件记录的锁定状态
func (s *CapsLockSession) Engaged() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engaged
}

// SetEngaged 设置锁定状态
func (s *CapsLockSession) SetEngaged(engaged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engaged = engaged
}

// ToggleEngaged 翻转锁定状态并返回新值
func (s *CapsLockSession) ToggleEngaged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engaged = !s.engaged
	return s.engaged
}

// LastPressedAt 最近一次触发切换的 Caps-Lock 按下时间，从未按下时为会话创建时间
func (s *CapsLockSession) LastPressedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPressedAt
}

// MarkPressed 记录按下时间
func (s *CapsLockSession) MarkPressed(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPressedAt = at
}
