package popup

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyang-zz/capsflow/internal/infrastructure/config"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform/platformtest"
)

func defaultClassifier() *Classifier {
	return NewClassifier(config.Default().Popup.Signature)
}

func button() platform.Value {
	return platform.ElementValue(platformtest.NewElement(1, map[string]platform.Value{
		platform.AttrRole: platform.StringValue("AXButton"),
	}))
}

// TestClassifier_Matches 测试弹窗特征
func TestClassifier_Matches(t *testing.T) {
	c := defaultClassifier()
	assert.True(t, c.Matches(NewSnapshot(platformtest.NewPopup(1))))
	assert.False(t, c.Matches(NewSnapshot(platformtest.NewDocumentWindow(1))))
}

// TestClassifier_EachFact 测试任意一个特征改变都不匹配
func TestClassifier_EachFact(t *testing.T) {
	c := defaultClassifier()

	cases := []struct {
		name   string
		mutate func(*platformtest.Element)
	}{
		{"子角色不同", func(e *platformtest.Element) {
			e.Set(platform.AttrSubrole, platform.StringValue("AXStandardWindow"))
		}},
		{"是主窗口", func(e *platformtest.Element) {
			e.Set(platform.AttrMain, platform.BoolValue(true))
		}},
		{"两个子元素", func(e *platformtest.Element) {
			e.Set(platform.AttrChildren, platform.ListValue([]platform.Value{button(), button()}))
		}},
		{"按钮之外还有一个非元素项", func(e *platformtest.Element) {
			e.Set(platform.AttrChildren, platform.ListValue([]platform.Value{
				button(), platform.StringValue("not an element"),
			}))
		}},
		{"唯一的子项不是元素", func(e *platformtest.Element) {
			e.Set(platform.AttrChildren, platform.ListValue([]platform.Value{platform.IntValue(7)}))
		}},
		{"没有子元素", func(e *platformtest.Element) {
			e.Set(platform.AttrChildren, platform.ListValue(nil))
		}},
		{"子元素不是按钮", func(e *platformtest.Element) {
			e.Set(platform.AttrChildren, platform.ListValue([]platform.Value{
				platform.ElementValue(platformtest.NewElement(1, map[string]platform.Value{
					platform.AttrRole: platform.StringValue("AXStaticText"),
				})),
			}))
		}},
		{"缺少子角色", func(e *platformtest.Element) { e.Delete(platform.AttrSubrole) }},
		{"缺少主窗口标志", func(e *platformtest.Element) { e.Delete(platform.AttrMain) }},
		{"缺少子元素", func(e *platformtest.Element) { e.Delete(platform.AttrChildren) }},
		{"子角色类型错误", func(e *platformtest.Element) {
			e.Set(platform.AttrSubrole, platform.IntValue(1))
		}},
		{"子元素列表类型错误", func(e *platformtest.Element) {
			e.Set(platform.AttrChildren, button())
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			el := platformtest.NewPopup(1)
			tc.mutate(el)
			assert.False(t, c.Matches(NewSnapshot(el)))
		})
	}
}

// TestClassifier_IndependentOfOtherAttributes 测试结果只取决于三个特征
func TestClassifier_IndependentOfOtherAttributes(t *testing.T) {
	c := defaultClassifier()
	rng := rand.New(rand.NewSource(7))

	noise := []string{platform.AttrRole, platform.AttrTitle, platform.AttrPosition, platform.AttrSize, "AXFocused", "AXIdentifier"}
	values := []platform.Value{
		platform.None(),
		platform.StringValue("AXDialog"),
		platform.BoolValue(true),
		platform.IntValue(3),
		platform.FloatValue(1.5),
		platform.PointValue(platform.Point{X: 10, Y: 20}),
		platform.SizeValue(platform.Size{Width: 100, Height: 40}),
		platform.ListValue([]platform.Value{button()}),
	}

	for i := 0; i < 200; i++ {
		matching := platformtest.NewPopup(1)
		broken := platformtest.NewPopup(1)
		broken.Set(platform.AttrMain, platform.BoolValue(true))

		for _, name := range noise {
			v := values[rng.Intn(len(values))]
			matching.Set(name, v)
			broken.Set(name, v)
		}

		require.True(t, c.Matches(NewSnapshot(matching)), "iteration %d", i)
		require.False(t, c.Matches(NewSnapshot(broken)), "iteration %d", i)
	}
}

// TestClassifier_DemandDriven 测试只读取需要的属性且不缓存
func TestClassifier_DemandDriven(t *testing.T) {
	c := defaultClassifier()

	el := platformtest.NewDocumentWindow(1)
	assert.False(t, c.Matches(NewSnapshot(el)))
	assert.Equal(t, 1, el.Reads(platform.AttrSubrole))
	assert.Zero(t, el.Reads(platform.AttrMain), "子角色不匹配时不再读取其他属性")
	assert.Zero(t, el.Reads(platform.AttrChildren))

	popup := platformtest.NewPopup(1)
	assert.True(t, c.Matches(NewSnapshot(popup)))
	assert.True(t, c.Matches(NewSnapshot(popup)))
	assert.Equal(t, 2, popup.Reads(platform.AttrSubrole), "每次识别都重新读取")
	assert.Zero(t, popup.Reads(platform.AttrTitle))
}

// TestClassifier_CustomSignature 测试可配置的特征
func TestClassifier_CustomSignature(t *testing.T) {
	c := NewClassifier(config.SignatureConfig{Subrole: "AXFloatingWindow", ChildRole: "AXImage"})

	el := platformtest.NewPopup(1)
	assert.False(t, c.Matches(NewSnapshot(el)))

	el.Set(platform.AttrSubrole, platform.StringValue("AXFloatingWindow"))
	el.Set(platform.AttrChildren, platform.ListValue([]platform.Value{
		platform.ElementValue(platformtest.NewElement(1, map[string]platform.Value{
			platform.AttrRole: platform.StringValue("AXImage"),
		})),
	}))
	assert.True(t, c.Matches(NewSnapshot(el)))
}

// TestSnapshot 测试快照访问器
func TestSnapshot(t *testing.T) {
	el := platformtest.NewElement(1, map[string]platform.Value{
		platform.AttrTitle: platform.StringValue("输入法"),
		platform.AttrMain:  platform.IntValue(0),
		platform.AttrChildren: platform.ListValue([]platform.Value{
			platform.StringValue("not an element"),
			button(),
		}),
		"AXEmpty": platform.None(),
	})
	s := NewSnapshot(el)
	assert.Same(t, el, s.Element())

	title, ok := s.String(platform.AttrTitle)
	require.True(t, ok)
	assert.Equal(t, "输入法", title)

	main, ok := s.Bool(platform.AttrMain)
	require.True(t, ok, "整数也可以作为布尔值")
	assert.False(t, main)

	children, ok := s.Children()
	require.True(t, ok)
	require.Len(t, children, 2, "非元素项同样计数")
	_, ok = children[0].String(platform.AttrRole)
	assert.False(t, ok, "非元素项读不到任何属性")
	role, _ := children[1].String(platform.AttrRole)
	assert.Equal(t, "AXButton", role)

	_, ok = s.Value("AXEmpty")
	assert.False(t, ok)
	_, ok = s.String(platform.AttrSubrole)
	assert.False(t, ok)

	_, ok = NewSnapshot(nil).Value(platform.AttrRole)
	assert.False(t, ok)
}
