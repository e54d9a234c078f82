package threadenv

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
)

// binding is the per-thread attachment state. Only the owning thread reads
// or writes it after it has been stored.
type binding struct {
	env   objbridge.Env
	err   error
	hooks []func(objbridge.Env)
}

// Registry attaches native threads to the host on first use and caches the
// resulting environment per OS thread.
type Registry struct {
	host     objbridge.Host
	bindings sync.Map // uint64 thread id -> *binding
	attached atomic.Int64
	closed   atomic.Bool
}

// New creates a registry attaching threads to host.
func New(host objbridge.Host) *Registry {
	return &Registry{host: host}
}

// Current returns the calling thread's host environment, attaching the
// thread on first use. The caller must hold runtime.LockOSThread for as long
// as it uses the returned Env.
//
// Bindings are keyed by OS thread id. A goroutine that attaches through
// Current and then exits while still locked leaves its binding behind, and a
// later thread given the same id by the kernel inherits it. Threads that
// come and go should be started with Go, which detaches before exiting.
//
// A failed attachment is final for the thread: every later call returns the
// same AttachmentFailure without contacting the host again.
func (r *Registry) Current() (objbridge.Env, error) {
	if r.closed.Load() {
		return nil, errors.Closed(errors.PhaseAttach, "thread registry")
	}

	tid := threadID()
	if v, ok := r.bindings.Load(tid); ok {
		b := v.(*binding)
		return b.env, b.err
	}

	b := &binding{}
	env, err := r.host.AttachCurrentThread()
	switch {
	case err != nil:
		b.err = errors.AttachmentFailed(err)
	case env == nil:
		b.err = errors.New(errors.PhaseAttach, errors.KindAttachment).
			Detail("host returned no environment").
			Build()
	default:
		b.env = env
	}
	r.bindings.Store(tid, b)

	if b.err != nil {
		Logger().Error("thread attachment failed", zap.Uint64("tid", tid), zap.Error(b.err))
		return nil, b.err
	}

	n := r.attached.Add(1)
	Logger().Debug("thread attached", zap.Uint64("tid", tid), zap.Int64("attached", n))
	return b.env, nil
}

// MustCurrent is Current for callers that cannot continue without the host.
// It panics when the thread cannot be attached.
func (r *Registry) MustCurrent() objbridge.Env {
	env, err := r.Current()
	if err != nil {
		panic(err)
	}
	return env
}

// Do runs fn with the calling goroutine locked to its OS thread and that
// thread's environment. The thread stays attached after Do returns.
func (r *Registry) Do(fn func(objbridge.Env) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	env, err := r.Current()
	if err != nil {
		return err
	}
	return fn(env)
}

// Teardown runs fn like Do but keeps working after Close, so references
// owned by objects that die late are still released. After Close a thread
// without a binding is attached for the duration of fn only.
func (r *Registry) Teardown(fn func(objbridge.Env) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !r.closed.Load() {
		env, err := r.Current()
		if err == nil {
			return fn(env)
		}
		if !r.closed.Load() {
			return err
		}
	}

	if v, ok := r.bindings.Load(threadID()); ok {
		b := v.(*binding)
		if b.err != nil {
			return b.err
		}
		return fn(b.env)
	}

	env, err := r.host.AttachCurrentThread()
	switch {
	case err != nil:
		return errors.AttachmentFailed(err)
	case env == nil:
		return errors.New(errors.PhaseAttach, errors.KindAttachment).
			Detail("host returned no environment").
			Build()
	}
	err = fn(env)
	if derr := r.host.DetachCurrentThread(); derr != nil {
		err = multierr.Append(err, errors.Wrap(errors.PhaseAttach, errors.KindAttachment, derr, "detach current thread"))
	}
	return err
}

// Go runs fn on a dedicated OS thread. When fn returns, the thread's exit
// hooks run, the thread detaches from the host and the OS thread is
// destroyed. The returned channel receives fn's error combined with any
// detach error.
func (r *Registry) Go(fn func(objbridge.Env) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		// Never unlocked: the runtime terminates a thread whose locked
		// goroutine exits, so the thread id cannot be observed again.
		runtime.LockOSThread()

		env, err := r.Current()
		if err != nil {
			r.bindings.Delete(threadID())
			done <- err
			return
		}
		err = fn(env)
		done <- multierr.Append(err, r.exit())
	}()
	return done
}

// OnExit registers fn to run with the calling thread's environment right
// before the thread detaches. Hooks run in reverse registration order. The
// calling goroutine must be locked to its OS thread.
func (r *Registry) OnExit(fn func(objbridge.Env)) error {
	if _, err := r.Current(); err != nil {
		return err
	}
	v, _ := r.bindings.Load(threadID())
	b := v.(*binding)
	b.hooks = append(b.hooks, fn)
	return nil
}

// Attached returns the number of threads currently attached through r.
func (r *Registry) Attached() int {
	return int(r.attached.Load())
}

// Close detaches the calling thread and stops attaching new threads. Threads
// attached from other goroutines cannot be detached from here; they are
// reported and left to the host.
func (r *Registry) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	err := r.exit()
	if n := r.attached.Load(); n > 0 {
		Logger().Warn("threads still attached at close", zap.Int64("attached", n))
	}
	return err
}

// exit runs the calling thread's hooks and detaches it.
func (r *Registry) exit() error {
	tid := threadID()
	v, ok := r.bindings.LoadAndDelete(tid)
	if !ok {
		return nil
	}
	b := v.(*binding)
	if b.env == nil {
		return nil
	}

	for i := len(b.hooks) - 1; i >= 0; i-- {
		b.hooks[i](b.env)
	}

	r.attached.Add(-1)
	if err := r.host.DetachCurrentThread(); err != nil {
		Logger().Warn("thread detach failed", zap.Uint64("tid", tid), zap.Error(err))
		return errors.Wrap(errors.PhaseAttach, errors.KindAttachment, err, "detach current thread")
	}
	Logger().Debug("thread detached", zap.Uint64("tid", tid))
	return nil
}
