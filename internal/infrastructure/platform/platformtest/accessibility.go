package platformtest

import (
	"sync"

	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
)

// Accessibility 内存辅助功能观察器工厂
//
// 记录同时存活的观察器数量的峰值，用于断言最多只有一个观察器。
type Accessibility struct {
	mu       sync.Mutex
	live     map[*Observation]struct{}
	maxLive  int
	observed []int

	// ObserveErr 非空时 Observe 返回该错误
	ObserveErr error
}

// NewAccessibility 创建内存观察器工厂
func NewAccessibility() *Accessibility {
	return &Accessibility{live: make(map[*Observation]struct{})}
}

func (a *Accessibility) Observe(pid int, callback platform.WindowCallback) (platform.Observation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ObserveErr != nil {
		return nil, a.ObserveErr
	}

	obs := &Observation{owner: a, pid: pid, callback: callback}
	a.live[obs] = struct{}{}
	a.observed = append(a.observed, pid)
	if len(a.live) > a.maxLive {
		a.maxLive = len(a.live)
	}
	return obs, nil
}

// Live 当前存活的观察器数量
func (a *Accessibility) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// MaxLive 同时存活的观察器数量峰值
func (a *Accessibility) MaxLive() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxLive
}

// Observed 按顺序返回被观察过的 pid
func (a *Accessibility) Observed() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int(nil), a.observed...)
}

// CreateWindow 模拟 pid 进程创建了一个新窗口
//
// Returns: bool - 是否有存活的观察器收到了通知
func (a *Accessibility) CreateWindow(pid int, element platform.UIElement) bool {
	a.mu.Lock()
	var callbacks []platform.WindowCallback
	for obs := range a.live {
		if obs.pid == pid {
			callbacks = append(callbacks, obs.callback)
		}
	}
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(element)
	}
	return len(callbacks) > 0
}

// Observation 内存观察器
type Observation struct {
	owner    *Accessibility
	pid      int
	callback platform.WindowCallback
}

func (o *Observation) PID() int { return o.pid }

func (o *Observation) Cancel() error {
	o.owner.mu.Lock()
	defer o.owner.mu.Unlock()
	delete(o.owner.live, o)
	return nil
}
