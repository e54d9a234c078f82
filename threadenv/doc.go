// Package threadenv binds native OS threads to the host runtime.
//
// Every call into the host needs an environment that is only valid on the
// thread that obtained it. The Registry attaches a thread on its first call
// and caches the environment under the OS thread id:
//
//	runtime.LockOSThread()
//	defer runtime.UnlockOSThread()
//
//	env, err := reg.Current()
//
// Do wraps the locking for short calls:
//
//	err := reg.Do(func(env objbridge.Env) error {
//	    env.DeleteRef(ref)
//	    return nil
//	})
//
// # Thread Exit
//
// Go has no thread-exit hook for arbitrary threads. Threads started with
// Registry.Go run their OnExit hooks and detach when their function returns,
// and the OS thread is then destroyed. Threads attached through Current or Do
// stay attached until Close, which only detaches the calling thread.
//
// Bindings are keyed by OS thread id, which the kernel reuses. A goroutine
// that exits while locked after attaching through Current leaves a binding
// the next thread with its id inherits; use Go for short-lived threads.
//
// # Teardown
//
// Close stops Current and Do. Teardown keeps running after Close so that
// objects dying late can still release their host references; a thread with
// no binding is attached only for the call.
//
// # Failure
//
// An attachment failure is permanent for the thread: Current keeps returning
// it without retrying. MustCurrent panics instead.
package threadenv
