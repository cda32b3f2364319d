/**
 * CapsFlow 主入口文件
 *
 * 用 Caps-Lock 在拉丁与 CJK 输入源之间切换，并可选地抑制系统的
 * "输入法已切换" 弹窗。负责：
 * 1. 把主 goroutine 锁定在主 OS 线程（系统事件循环要求）
 * 2. 解析命令行并执行子命令
 */

package main

import (
	"runtime"
)

func init() {
	// 系统 run loop 和输入源选择只能在主线程上执行
	runtime.LockOSThread()
}

/**
 * 主函数
 *
 * 应用的入口点，没有子命令时运行后台服务
 */
func main() {
	Execute()
}
