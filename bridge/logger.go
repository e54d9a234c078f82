package bridge

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge/proxy"
	"github.com/wippyai/objbridge/threadenv"
	"github.com/wippyai/objbridge/typereg"
	"github.com/wippyai/objbridge/wrapper"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the bridge package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	logger.CompareAndSwap(nil, zap.NewNop())
	return logger.Load()
}

// SetLogger configures the logger of the bridge and of every package it
// wires together, each under its own name. Proxy teardown logs from the
// runtime's cleanup goroutine, so loggers may be swapped while bridges are
// in use.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
	threadenv.SetLogger(l.Named("threadenv"))
	typereg.SetLogger(l.Named("typereg"))
	proxy.SetLogger(l.Named("proxy"))
	wrapper.SetLogger(l.Named("wrapper"))
}
