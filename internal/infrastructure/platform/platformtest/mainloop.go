package platformtest

import (
	"context"
	"sync"
	"sync/atomic"
)

// InlineMainLoop 在调用方 goroutine 中立即执行投递的任务
type InlineMainLoop struct {
	dispatched atomic.Int64
}

// NewInlineMainLoop 创建同步主循环
func NewInlineMainLoop() *InlineMainLoop {
	return &InlineMainLoop{}
}

func (l *InlineMainLoop) Dispatch(fn func()) {
	l.dispatched.Add(1)
	fn()
}

func (l *InlineMainLoop) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Dispatched 已投递的任务数
func (l *InlineMainLoop) Dispatched() int {
	return int(l.dispatched.Load())
}

// QueuedMainLoop 投递的任务先排队，Flush 时才在调用方 goroutine 中按顺序执行
type QueuedMainLoop struct {
	mu    sync.Mutex
	queue []func()
}

// NewQueuedMainLoop 创建排队主循环
func NewQueuedMainLoop() *QueuedMainLoop {
	return &QueuedMainLoop{}
}

func (l *QueuedMainLoop) Dispatch(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = append(l.queue, fn)
}

func (l *QueuedMainLoop) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Pending 尚未执行的任务数
func (l *QueuedMainLoop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Flush 执行所有排队任务，包括执行期间新投递的，返回执行的数量
func (l *QueuedMainLoop) Flush() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
		n++
	}
}
