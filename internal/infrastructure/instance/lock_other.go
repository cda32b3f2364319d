//go:build !unix

package instance

import "os"

// 非 unix 平台没有 flock，锁文件只记录 PID
func tryLock(*os.File) error { return nil }

func unlock(*os.File) {}
