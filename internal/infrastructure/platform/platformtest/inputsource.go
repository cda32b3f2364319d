/**
 * Package platformtest 提供平台适配器接口的内存实现，供各业务包的测试使用
 *
 * 所有 Fake 都是并发安全的，并记录调用历史以便断言。
 */
package platformtest

import (
	"errors"
	"sync"

	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
)

// InputSources 内存输入源注册表
type InputSources struct {
	mu         sync.Mutex
	sources    []*InputSource
	selected   string
	selections []string
	swallow    map[string]int

	// SourcesErr 非空时 Sources 返回该错误
	SourcesErr error
}

// NewInputSources 创建包含 ids 的注册表，第一个输入源处于选中状态
func NewInputSources(ids ...string) *InputSources {
	r := &InputSources{swallow: make(map[string]int)}
	for _, id := range ids {
		r.sources = append(r.sources, &InputSource{registry: r, id: id})
	}
	if len(ids) > 0 {
		r.selected = ids[0]
	}
	return r
}

// Sources 返回所有输入源
func (r *InputSources) Sources() ([]platform.InputSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.SourcesErr != nil {
		return nil, r.SourcesErr
	}
	out := make([]platform.InputSource, len(r.sources))
	for i, src := range r.sources {
		out[i] = src
	}
	return out, nil
}

// SelectedID 当前选中的输入源
func (r *InputSources) SelectedID() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.selected == "" {
		return "", errors.New("no selected input source")
	}
	return r.selected, nil
}

// SetSelected 直接修改选中的输入源，不记录为一次选择
func (r *InputSources) SetSelected(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = id
}

// SwallowNext 让接下来 n 次选中 id 的命令不生效，模拟系统吞掉切换
func (r *InputSources) SwallowNext(id string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swallow[id] = n
}

// Selections 返回按顺序记录的所有选择命令
func (r *InputSources) Selections() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.selections...)
}

// ResetSelections 清空选择记录
func (r *InputSources) ResetSelections() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selections = nil
}

func (r *InputSources) selectID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.selections = append(r.selections, id)
	if r.swallow[id] > 0 {
		r.swallow[id]--
		return
	}
	r.selected = id
}

func (r *InputSources) isSelected(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected == id
}

// InputSource 内存输入源
type InputSource struct {
	registry *InputSources
	id       string
}

func (s *InputSource) ID() string       { return s.id }
func (s *InputSource) Name() string     { return s.id }
func (s *InputSource) IsSelected() bool { return s.registry.isSelected(s.id) }

// Select 记录选择并更新选中状态
func (s *InputSource) Select() error {
	s.registry.selectID(s.id)
	return nil
}
