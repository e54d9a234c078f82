//go:build !linux && !windows

package threadenv

import (
	"bytes"
	"runtime"
	"strconv"
)

// threadID falls back to the goroutine id where the OS offers no portable
// thread id. Callers lock the goroutine to its thread, so the two are
// interchangeable for the lifetime of a binding.
func threadID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	id, _ := strconv.ParseUint(string(s), 10, 64)
	return id
}
