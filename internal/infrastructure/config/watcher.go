package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/pkg/logger"
)

// reloadDebounce 编辑器保存时往往连续产生多个事件
const reloadDebounce = 200 * time.Millisecond

// Watcher 监听配置文件变化并重新加载
//
// 只有成功解析并通过校验的配置才会回调，错误的配置只记录日志。
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(*Config)
	debounce func(func())
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewWatcher 创建配置文件监听器
//
// Parameters:
//   - path: 配置文件路径
//   - onChange: 新配置回调，在监听 goroutine 中调用
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  w,
		path:     path,
		onChange: onChange,
		debounce: debounce.New(reloadDebounce),
		done:     make(chan struct{}),
	}, nil
}

// Start 开始监听
//
// 监听配置文件所在目录，比直接监听文件更可靠（编辑器常用重命名方式保存）。
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.running = true

	go w.watch()
	return nil
}

func (w *Watcher) watch() {
	filename := filepath.Base(w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.debounce(w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("配置文件监听错误",
				zap.String("component", "config"),
				zap.Error(err),
			)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}

	cfg, err := LoadFrom(w.path)
	if err != nil {
		logger.Warn("重新加载配置失败，保留当前配置",
			zap.String("component", "config"),
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	logger.Info("配置已重新加载",
		zap.String("component", "config"),
		zap.String("path", w.path),
	)
	w.onChange(cfg)
}

// Stop 停止监听并释放 fsnotify 句柄，Start 失败后同样需要调用
//
// 停止后不能再次启动。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		w.running = false
		close(w.done)
	}
	return w.watcher.Close()
}
