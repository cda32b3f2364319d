/**
 * Package scheduler 提供定时延续的抽象
 *
 * 所有延迟操作（切换协议的 1ms/100ms、弹窗销毁的 1/60s 节奏、冷却期）
 * 都通过 Scheduler.AfterFunc 调度，组件内部从不 sleep。
 * 生产环境使用 RealScheduler，测试使用 ManualScheduler 精确推进时间。
 */
package scheduler

import (
	"sync"
	"time"
)

// Timer 已调度的延续
type Timer interface {
	// Stop 取消尚未执行的延续
	//
	// Returns: bool - true 表示成功阻止了执行，false 表示已执行或已取消
	Stop() bool
}

// Scheduler 定时调度器
type Scheduler interface {
	// Now 返回调度器的当前时间
	Now() time.Time

	// AfterFunc 在 d 之后执行 fn，fn 在调度器自己的 goroutine 中运行
	AfterFunc(d time.Duration, fn func()) Timer
}

// RealScheduler 基于系统时钟的调度器
type RealScheduler struct{}

// NewRealScheduler 创建系统时钟调度器
func NewRealScheduler() *RealScheduler {
	return &RealScheduler{}
}

// Now 返回系统时间
func (RealScheduler) Now() time.Time {
	return time.Now()
}

// AfterFunc 使用 time.AfterFunc 调度
func (RealScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Debouncer 返回基于 s 的尾部去抖工厂，签名与 bep/debounce.New 相同
//
// 配合 ManualScheduler 使用时，去抖时间随 Advance 推进。
func Debouncer(s Scheduler) func(after time.Duration) func(f func()) {
	return func(after time.Duration) func(f func()) {
		var mu sync.Mutex
		var timer Timer
		return func(f func()) {
			mu.Lock()
			defer mu.Unlock()
			if timer != nil {
				timer.Stop()
			}
			timer = s.AfterFunc(after, f)
		}
	}
}
