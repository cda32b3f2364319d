package platformtest

import (
	"sync"
)

// Latch 内存 Caps-Lock 锁定状态
type Latch struct {
	mu       sync.Mutex
	on       bool
	sets     []bool
	watchers map[int]func(bool)
	nextID   int
}

// NewLatch 创建初始为关闭的锁定状态
func NewLatch() *Latch {
	return &Latch{watchers: make(map[int]func(bool))}
}

func (l *Latch) Get() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on, nil
}

// Set 记录写入，不通知监听者（与系统 API 一致）
func (l *Latch) Set(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = on
	l.sets = append(l.sets, on)
	return nil
}

func (l *Latch) Watch(callback func(bool)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.watchers[id] = callback

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.watchers, id)
	}, nil
}

// Toggle 模拟物理按键改变了锁定状态，并通知监听者
func (l *Latch) Toggle(on bool) {
	l.mu.Lock()
	l.on = on
	callbacks := make([]func(bool), 0, len(l.watchers))
	for _, cb := range l.watchers {
		callbacks = append(callbacks, cb)
	}
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(on)
	}
}

// Sets 返回 Set 调用记录
func (l *Latch) Sets() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.sets...)
}

// Watchers 当前监听者数量
func (l *Latch) Watchers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.watchers)
}
