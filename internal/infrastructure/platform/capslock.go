package platform

import "sync"

// capsLockKeyCode Caps-Lock 的虚拟键码（kVK_CapsLock）
const capsLockKeyCode = 0x39

// flagsWatchers 修饰键标志变化的监听者集合
type flagsWatchers struct {
	mu        sync.Mutex
	seq       int
	callbacks map[int]func(bool)
}

func newFlagsWatchers() *flagsWatchers {
	return &flagsWatchers{callbacks: make(map[int]func(bool))}
}

// add 登记监听者，first 表示这是第一个
func (w *flagsWatchers) add(callback func(bool)) (id int, first bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	w.callbacks[w.seq] = callback
	return w.seq, len(w.callbacks) == 1
}

// remove 注销监听者，last 表示已经没有监听者
func (w *flagsWatchers) remove(id int) (last bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.callbacks[id]; !ok {
		return false
	}
	delete(w.callbacks, id)
	return len(w.callbacks) == 0
}

// notify 转发一次标志变化，只有 Caps-Lock 键自身引起的变化才会转发
func (w *flagsWatchers) notify(keyCode int, on bool) {
	if keyCode != capsLockKeyCode {
		return
	}

	w.mu.Lock()
	callbacks := make([]func(bool), 0, len(w.callbacks))
	for _, cb := range w.callbacks {
		callbacks = append(callbacks, cb)
	}
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(on)
	}
}
