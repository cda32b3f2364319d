package platform

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCapabilitiesForVersion 测试按系统版本计算原生锁定能力
func TestCapabilitiesForVersion(t *testing.T) {
	tests := []struct {
		version string
		native  bool
	}{
		{"15.2", true},
		{"15.2.1", true},
		{"15.3", true},
		{"26.0", true},
		{"15.1.1", false},
		{"15", false},
		{"14.7", false},
		{"", false},
		{"garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			caps := capabilitiesForVersion(tt.version)
			assert.Equal(t, tt.native, caps.NativeCapsLockLatch)
			assert.Equal(t, tt.version, caps.OSVersion)
		})
	}
}

// TestParseOSVersion 测试版本解析
func TestParseOSVersion(t *testing.T) {
	v, ok := parseOSVersion(" 14.6.1\n")
	require.True(t, ok)
	assert.Equal(t, [3]int{14, 6, 1}, v)

	v, ok = parseOSVersion("13")
	require.True(t, ok)
	assert.Equal(t, [3]int{13, 0, 0}, v)

	_, ok = parseOSVersion("13.x")
	assert.False(t, ok)
}

type testElement struct{ pid int }

func (e *testElement) Attribute(name string) (Value, error) { return None(), ErrAttributeUnsupported }
func (e *testElement) SetPosition(p Point) error            { return nil }
func (e *testElement) PID() int                             { return e.pid }

// TestValue 测试带类型标签的属性值
func TestValue(t *testing.T) {
	s, ok := StringValue("AXDialog").AsString()
	assert.True(t, ok)
	assert.Equal(t, "AXDialog", s)

	_, ok = StringValue("AXDialog").AsBool()
	assert.False(t, ok, "字符串不能读成布尔")

	b, ok := IntValue(1).AsBool()
	assert.True(t, ok, "整数可以读成布尔")
	assert.True(t, b)

	p, ok := PointValue(Point{X: -10000, Y: -10000}).AsPoint()
	assert.True(t, ok)
	assert.Equal(t, -10000.0, p.X)

	assert.True(t, None().IsNone())
	assert.True(t, ElementValue(nil).IsNone(), "nil 元素视为空值")

	elem := &testElement{pid: 7}
	list := ListValue([]Value{ElementValue(elem), StringValue("x")})
	items, ok := list.AsList()
	require.True(t, ok)
	require.Len(t, items, 2)
	got, ok := items[0].AsElement()
	assert.True(t, ok)
	assert.Equal(t, 7, got.PID())
	assert.Equal(t, "list[2]", list.String())
	assert.Equal(t, KindElement, items[0].Kind())
}

// TestQueueMainLoop 测试纯 Go 主循环按投递顺序执行
func TestQueueMainLoop(t *testing.T) {
	loop := NewQueueMainLoop()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		loop.Dispatch(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	loop.Dispatch(func() { panic("任务 panic 不应终止主循环") })
	wg.Wait()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("主循环没有在 ctx 结束后退出")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

// TestPermissionTypeString 测试权限类型字符串
func TestPermissionTypeString(t *testing.T) {
	assert.Equal(t, "accessibility", PermissionAccessibility.String())
	assert.Equal(t, "input_monitoring", PermissionInputMonitoring.String())
	assert.Equal(t, "unknown", PermissionType(99).String())
	assert.Equal(t, "denied", PermissionStatusDenied.String())
	assert.Equal(t, "unknown", PermissionStatusUnknown.String())
}

// TestFlagsWatchers 测试只有 Caps-Lock 键引起的标志变化会转发
func TestFlagsWatchers(t *testing.T) {
	w := newFlagsWatchers()

	var mu sync.Mutex
	var got []bool
	id, first := w.add(func(on bool) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, on)
	})
	assert.True(t, first)

	second, first := w.add(func(bool) {})
	assert.False(t, first)

	w.notify(0x38, true) // 左 Shift
	w.notify(0x3A, true) // 左 Option
	w.notify(capsLockKeyCode, true)
	w.notify(capsLockKeyCode, false)

	mu.Lock()
	assert.Equal(t, []bool{true, false}, got)
	mu.Unlock()

	assert.False(t, w.remove(id))
	assert.False(t, w.remove(id), "重复注销不算最后一个")
	assert.True(t, w.remove(second))
}
