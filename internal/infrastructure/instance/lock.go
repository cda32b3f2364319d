// Package instance 保证同一用户只有一个 capsflow 进程在运行
package instance

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
)

// RelativePath 锁文件相对 XDG 状态目录的路径
const RelativePath = "capsflow/capsflow.lock"

// ErrAlreadyRunning 已有另一个实例持有锁
var ErrAlreadyRunning = errors.New("instance: another capsflow process is already running")

// Lock 单实例锁
//
// 锁由操作系统在进程退出时自动释放，崩溃后不会留下过期的锁。
type Lock struct {
	path string
	file *os.File
}

// DefaultPath 返回锁文件路径，会创建缺失的父目录
func DefaultPath() (string, error) {
	path, err := xdg.StateFile(RelativePath)
	if err != nil {
		return "", fmt.Errorf("resolve lock path: %w", err)
	}
	return path, nil
}

// Acquire 在默认路径获取单实例锁
func Acquire() (*Lock, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return AcquireAt(path)
}

// AcquireAt 在 path 获取单实例锁
//
// Parameters:
//   - path: 锁文件路径
//
// Returns:
//   - *Lock: 持有的锁，退出前调用 Release
//   - error: 已有实例运行时为 ErrAlreadyRunning
func AcquireAt(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := tryLock(file); err != nil {
		file.Close()
		return nil, err
	}

	// 记录持有者 PID，方便排查
	if err := file.Truncate(0); err == nil {
		_, _ = file.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}

	return &Lock{path: path, file: file}, nil
}

// Path 锁文件路径
func (l *Lock) Path() string {
	return l.path
}

// Release 释放锁，重复调用安全
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	file := l.file
	l.file = nil

	unlock(file)
	_ = os.Remove(l.path)
	return file.Close()
}

// HolderPID 读取锁文件里记录的持有者 PID
//
// Returns: 进程 ID，文件不存在或内容无效时第二个返回值为 false
func HolderPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
