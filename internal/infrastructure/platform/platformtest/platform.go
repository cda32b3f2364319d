package platformtest

import (
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
)

// Fakes 一整套内存平台适配器
type Fakes struct {
	HID           *HID
	InputSources  *InputSources
	Workspace     *Workspace
	Accessibility *Accessibility
	Latch         *Latch
	MainLoop      *InlineMainLoop
	Permissions   *Permissions
}

// New 创建一整套内存平台适配器
//
// Parameters:
//   - frontmostPID: 初始前台进程，0 表示没有
//   - sourceIDs: 已安装的输入源，第一个处于选中状态
func New(frontmostPID int, sourceIDs ...string) *Fakes {
	return &Fakes{
		HID:           NewHID(),
		InputSources:  NewInputSources(sourceIDs...),
		Workspace:     NewWorkspace(frontmostPID),
		Accessibility: NewAccessibility(),
		Latch:         NewLatch(),
		MainLoop:      NewInlineMainLoop(),
		Permissions:   NewPermissions(),
	}
}

// Platform 组装为 platform.Platform
func (f *Fakes) Platform(caps platform.Capabilities) *platform.Platform {
	return &platform.Platform{
		HID:           f.HID,
		InputSources:  f.InputSources,
		Workspace:     f.Workspace,
		Accessibility: f.Accessibility,
		Latch:         f.Latch,
		MainLoop:      f.MainLoop,
		Permissions:   f.Permissions,
		Capabilities:  caps,
	}
}
