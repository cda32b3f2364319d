package platformtest

import (
	"sync"

	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
)

// Element 内存辅助功能元素
type Element struct {
	mu        sync.Mutex
	pid       int
	attrs     map[string]platform.Value
	positions []platform.Point
	reads     map[string]int
}

// NewElement 创建带有给定属性的元素
func NewElement(pid int, attrs map[string]platform.Value) *Element {
	if attrs == nil {
		attrs = make(map[string]platform.Value)
	}
	return &Element{pid: pid, attrs: attrs, reads: make(map[string]int)}
}

// NewPopup 创建一个符合输入法切换弹窗特征的元素：
// 子角色为 AXDialog，不是主窗口，只有一个 AXButton 子元素
func NewPopup(pid int) *Element {
	button := NewElement(pid, map[string]platform.Value{
		platform.AttrRole: platform.StringValue("AXButton"),
	})
	return NewElement(pid, map[string]platform.Value{
		platform.AttrRole:     platform.StringValue("AXWindow"),
		platform.AttrSubrole:  platform.StringValue("AXDialog"),
		platform.AttrMain:     platform.BoolValue(false),
		platform.AttrChildren: platform.ListValue([]platform.Value{platform.ElementValue(button)}),
	})
}

// NewDocumentWindow 创建一个普通主窗口
func NewDocumentWindow(pid int) *Element {
	return NewElement(pid, map[string]platform.Value{
		platform.AttrRole:    platform.StringValue("AXWindow"),
		platform.AttrSubrole: platform.StringValue("AXStandardWindow"),
		platform.AttrMain:    platform.BoolValue(true),
	})
}

// Attribute 读取属性，未设置时返回 ErrAttributeUnsupported
func (e *Element) Attribute(name string) (platform.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reads[name]++
	v, ok := e.attrs[name]
	if !ok {
		return platform.None(), platform.ErrAttributeUnsupported
	}
	return v, nil
}

// Set 修改属性
func (e *Element) Set(name string, v platform.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attrs[name] = v
}

// Delete 删除属性
func (e *Element) Delete(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.attrs, name)
}

// SetPosition 记录重定位
func (e *Element) SetPosition(p platform.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.positions = append(e.positions, p)
	e.attrs[platform.AttrPosition] = platform.PointValue(p)
	return nil
}

func (e *Element) PID() int { return e.pid }

// Positions 按顺序返回所有重定位坐标
func (e *Element) Positions() []platform.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]platform.Point(nil), e.positions...)
}

// Reads 返回属性被读取的次数
func (e *Element) Reads(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reads[name]
}
