package platformtest

import (
	"errors"
	"sync"
	"time"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
)

// HID 内存 HID 监控器
type HID struct {
	mu       sync.Mutex
	running  bool
	usages   []models.KeyUsage
	callback platform.KeyCallback

	// StartErr 非空时 Start 返回该错误
	StartErr error
}

// NewHID 创建内存 HID 监控器
func NewHID() *HID {
	return &HID{}
}

func (h *HID) Start(usages []models.KeyUsage, callback platform.KeyCallback) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.StartErr != nil {
		return h.StartErr
	}
	if h.running {
		return errors.New("hid monitor already running")
	}
	h.running = true
	h.usages = append([]models.KeyUsage(nil), usages...)
	h.callback = callback
	return nil
}

func (h *HID) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return errors.New("hid monitor not running")
	}
	h.running = false
	h.callback = nil
	return nil
}

func (h *HID) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Usages 返回 Start 时请求的用途码
func (h *HID) Usages() []models.KeyUsage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.KeyUsage(nil), h.usages...)
}

// Emit 投递一次按键转换，未过滤的用途码会被丢弃，与真实设备一致
func (h *HID) Emit(usage models.KeyUsage, transition models.Transition) {
	h.mu.Lock()
	cb := h.callback
	watched := false
	for _, u := range h.usages {
		if u == usage {
			watched = true
			break
		}
	}
	h.mu.Unlock()

	if cb == nil || !watched {
		return
	}
	cb(models.KeyTransition{Usage: usage, Transition: transition, At: time.Now()})
}

// Press 投递按下和抬起
func (h *HID) Press(usage models.KeyUsage) {
	h.Emit(usage, models.KeyDown)
	h.Emit(usage, models.KeyUp)
}
