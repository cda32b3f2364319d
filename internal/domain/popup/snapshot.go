/**
 * Package popup 实现输入法切换弹窗的识别与抑制
 */
package popup

import (
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
)

// Snapshot 辅助功能元素的按需视图
//
// 属性只在被读取时才向系统查询，也不缓存：每次识别都创建新的 Snapshot。
// 子元素同样包装为 Snapshot，不会递归展开整棵元素树。
type Snapshot struct {
	element platform.UIElement
}

// NewSnapshot 包装元素
func NewSnapshot(element platform.UIElement) *Snapshot {
	return &Snapshot{element: element}
}

// Element 底层元素
func (s *Snapshot) Element() platform.UIElement {
	return s.element
}

// Value 读取属性，不支持或没有值时第二个返回值为 false
func (s *Snapshot) Value(name string) (platform.Value, bool) {
	if s.element == nil {
		return platform.None(), false
	}

	v, err := s.element.Attribute(name)
	if err != nil || v.IsNone() {
		return platform.None(), false
	}
	return v, true
}

// String 读取字符串属性
func (s *Snapshot) String(name string) (string, bool) {
	v, ok := s.Value(name)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Bool 读取布尔属性
func (s *Snapshot) Bool(name string) (bool, bool) {
	v, ok := s.Value(name)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// Children 读取子元素，每个列表项对应一个快照
//
// 不是元素的项对应空快照（任何属性都读不到），子元素数量始终等于列表长度。
func (s *Snapshot) Children() ([]*Snapshot, bool) {
	v, ok := s.Value(platform.AttrChildren)
	if !ok {
		return nil, false
	}

	items, ok := v.AsList()
	if !ok {
		return nil, false
	}

	children := make([]*Snapshot, 0, len(items))
	for _, item := range items {
		el, _ := item.AsElement()
		children = append(children, NewSnapshot(el))
	}
	return children, true
}
