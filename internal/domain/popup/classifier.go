package popup

import (
	"github.com/chenyang-zz/capsflow/internal/infrastructure/config"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
)

// Classifier 按结构特征识别输入法切换弹窗
//
// 窗口同时满足以下条件才会被识别：
//   - 子角色等于 Signature.Subrole（默认 AXDialog）
//   - 主窗口标志存在且为 false
//   - 恰好一个子元素，且其角色等于 Signature.ChildRole（默认 AXButton）
//
// 属性缺失或不支持一律视为不匹配。按上述顺序读取，前面的条件不满足时不会读取后面的属性。
type Classifier struct {
	subrole   string
	childRole string
}

// NewClassifier 创建识别器
func NewClassifier(sig config.SignatureConfig) *Classifier {
	return &Classifier{
		subrole:   sig.Subrole,
		childRole: sig.ChildRole,
	}
}

// Matches 快照是否为目标弹窗
func (c *Classifier) Matches(s *Snapshot) bool {
	subrole, ok := s.String(platform.AttrSubrole)
	if !ok || subrole != c.subrole {
		return false
	}

	main, ok := s.Bool(platform.AttrMain)
	if !ok || main {
		return false
	}

	children, ok := s.Children()
	if !ok || len(children) != 1 {
		return false
	}

	role, ok := children[0].String(platform.AttrRole)
	return ok && role == c.childRole
}
