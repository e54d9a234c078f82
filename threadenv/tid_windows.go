//go:build windows

package threadenv

import "golang.org/x/sys/windows"

func threadID() uint64 {
	return uint64(windows.GetCurrentThreadId())
}
