package platform

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/pkg/logger"
)

// QueueMainLoop 纯 Go 的主循环
//
// 没有系统 run loop 的平台使用它，投递的任务在 Run 的 goroutine 中按顺序执行。
type QueueMainLoop struct {
	mu     sync.Mutex
	queue  []func()
	notify chan struct{}
}

// NewQueueMainLoop 创建纯 Go 主循环
func NewQueueMainLoop() *QueueMainLoop {
	return &QueueMainLoop{notify: make(chan struct{}, 1)}
}

// Dispatch 追加任务，不阻塞
func (l *QueueMainLoop) Dispatch(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Run 执行任务直到 ctx 结束
func (l *QueueMainLoop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.notify:
		}

		for {
			fn := l.pop()
			if fn == nil {
				break
			}
			l.runTask(fn)
		}
	}
}

func (l *QueueMainLoop) pop() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *QueueMainLoop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("主循环任务 panic",
				zap.String("component", "mainloop"),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
