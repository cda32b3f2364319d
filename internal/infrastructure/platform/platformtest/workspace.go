package platformtest

import (
	"errors"
	"sync"

	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
)

// Workspace 内存应用生命周期监控器
type Workspace struct {
	mu        sync.Mutex
	running   bool
	callback  platform.AppNotificationCallback
	frontmost int
	hasFront  bool
	starts    int
}

// NewWorkspace 创建内存监控器，初始前台进程为 pid
func NewWorkspace(pid int) *Workspace {
	return &Workspace{frontmost: pid, hasFront: pid > 0}
}

func (w *Workspace) Start(callback platform.AppNotificationCallback) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("workspace monitor already running")
	}
	w.running = true
	w.callback = callback
	w.starts++
	return nil
}

func (w *Workspace) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return errors.New("workspace monitor not running")
	}
	w.running = false
	w.callback = nil
	return nil
}

func (w *Workspace) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Workspace) FrontmostPID() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frontmost, w.hasFront
}

// Starts 返回 Start 成功的次数
func (w *Workspace) Starts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.starts
}

// SetFrontmost 修改前台进程，ok 为 false 表示没有前台进程
func (w *Workspace) SetFrontmost(pid int, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frontmost = pid
	w.hasFront = ok
}

// Post 投递一条应用通知
func (w *Workspace) Post(kind platform.AppNotificationKind, pid int) {
	w.mu.Lock()
	cb := w.callback
	w.mu.Unlock()

	if cb != nil {
		cb(platform.AppNotification{Kind: kind, PID: pid})
	}
}
