// Package services 提供跨领域模块的应用级服务
//
// Service 层不包含核心业务逻辑（在 Domain 层），只负责编排：
// 例如在启动弹窗抑制之前确认辅助功能权限。
package services
