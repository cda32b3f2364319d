package platform

import "fmt"

// 常用的辅助功能属性名
const (
	AttrRole     = "AXRole"
	AttrSubrole  = "AXSubrole"
	AttrMain     = "AXMain"
	AttrChildren = "AXChildren"
	AttrPosition = "AXPosition"
	AttrSize     = "AXSize"
	AttrTitle    = "AXTitle"
)

// Point 屏幕坐标
type Point struct {
	X, Y float64
}

// Size 尺寸
type Size struct {
	Width, Height float64
}

// Rect 矩形
type Rect struct {
	Origin Point
	Size   Size
}

// ValueKind Value 的具体类型
type ValueKind int

const (
	KindNone ValueKind = iota
	KindString
	KindBool
	KindInt
	KindFloat
	KindPoint
	KindSize
	KindRect
	KindElement
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindPoint:
		return "point"
	case KindSize:
		return "size"
	case KindRect:
		return "rect"
	case KindElement:
		return "element"
	case KindList:
		return "list"
	default:
		return "none"
	}
}

// Value 属性值
//
// 辅助功能属性是动态类型的，Value 用一个带类型标签的联合体表示。
// 列表中的元素值只是句柄，不会递归展开。
type Value struct {
	kind    ValueKind
	str     string
	boolean bool
	integer int64
	float   float64
	point   Point
	size    Size
	rect    Rect
	element UIElement
	list    []Value
}

// None 空值
func None() Value { return Value{} }

func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func BoolValue(b bool) Value     { return Value{kind: KindBool, boolean: b} }
func IntValue(n int64) Value     { return Value{kind: KindInt, integer: n} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, float: f} }
func PointValue(p Point) Value   { return Value{kind: KindPoint, point: p} }
func SizeValue(s Size) Value     { return Value{kind: KindSize, size: s} }
func RectValue(r Rect) Value     { return Value{kind: KindRect, rect: r} }
func ElementValue(e UIElement) Value {
	if e == nil {
		return None()
	}
	return Value{kind: KindElement, element: e}
}
func ListValue(items []Value) Value { return Value{kind: KindList, list: items} }

// Kind 返回值类型
func (v Value) Kind() ValueKind { return v.kind }

// IsNone 是否为空值
func (v Value) IsNone() bool { return v.kind == KindNone }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }
func (v Value) AsPoint() (Point, bool)   { return v.point, v.kind == KindPoint }
func (v Value) AsSize() (Size, bool)     { return v.size, v.kind == KindSize }
func (v Value) AsRect() (Rect, bool)     { return v.rect, v.kind == KindRect }
func (v Value) AsInt() (int64, bool)     { return v.integer, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool) { return v.float, v.kind == KindFloat }

// AsBool 读取布尔值，整数 0/1 也视为布尔
func (v Value) AsBool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.boolean, true
	case KindInt:
		return v.integer != 0, true
	default:
		return false, false
	}
}

// AsElement 读取元素句柄
func (v Value) AsElement() (UIElement, bool) {
	return v.element, v.kind == KindElement
}

// AsList 读取列表
func (v Value) AsList() ([]Value, bool) {
	return v.list, v.kind == KindList
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindBool:
		return fmt.Sprintf("%t", v.boolean)
	case KindInt:
		return fmt.Sprintf("%d", v.integer)
	case KindFloat:
		return fmt.Sprintf("%g", v.float)
	case KindPoint:
		return fmt.Sprintf("(%g, %g)", v.point.X, v.point.Y)
	case KindSize:
		return fmt.Sprintf("%gx%g", v.size.Width, v.size.Height)
	case KindRect:
		return fmt.Sprintf("(%g, %g, %gx%g)", v.rect.Origin.X, v.rect.Origin.Y, v.rect.Size.Width, v.rect.Size.Height)
	case KindElement:
		return fmt.Sprintf("element(pid=%d)", v.element.PID())
	case KindList:
		return fmt.Sprintf("list[%d]", len(v.list))
	default:
		return "none"
	}
}
