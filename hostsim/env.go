package hostsim

import "github.com/wippyai/objbridge"

// Env is the simulated per-thread host environment.
type Env struct {
	rt *Runtime
}

var _ objbridge.Env = (*Env)(nil)

// Runtime returns the runtime the environment belongs to.
func (e *Env) Runtime() *Runtime {
	return e.rt
}

// NewObject creates a host object and returns a local reference to it.
func (e *Env) NewObject(class string, finalizer func()) objbridge.Ref {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	return e.rt.newRefLocked(e.rt.newObjectLocked(class, finalizer), kindLocal)
}

// Class returns the class name of the object r denotes, or "".
func (e *Env) Class(r objbridge.Ref) string {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	if obj := e.rt.resolveLocked(r); obj != nil {
		return obj.class
	}
	return ""
}

func (e *Env) NewGlobalRef(obj objbridge.Ref) objbridge.Ref {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	return e.rt.newRefLocked(e.rt.resolveLocked(obj), kindGlobal)
}

func (e *Env) NewWeakGlobalRef(obj objbridge.Ref) objbridge.Ref {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	return e.rt.newRefLocked(e.rt.resolveLocked(obj), kindWeak)
}

func (e *Env) NewLocalRef(ref objbridge.Ref) objbridge.Ref {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	return e.rt.newRefLocked(e.rt.resolveLocked(ref), kindLocal)
}

func (e *Env) DeleteRef(ref objbridge.Ref) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	e.rt.deleteLocked(ref)
}

// IsSameObject follows host semantics: two null (or cleared) references
// are the same object.
func (e *Env) IsSameObject(a, b objbridge.Ref) bool {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	return e.rt.resolveLocked(a) == e.rt.resolveLocked(b)
}

func (e *Env) IdentityHashCode(obj objbridge.Ref) int32 {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	if o := e.rt.resolveLocked(obj); o != nil {
		return o.hash
	}
	return 0
}

func (e *Env) GetLongField(obj objbridge.Ref, field string) int64 {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	if o := e.rt.resolveLocked(obj); o != nil {
		return o.fields[field]
	}
	return 0
}

func (e *Env) SetLongField(obj objbridge.Ref, field string, value int64) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	if o := e.rt.resolveLocked(obj); o != nil {
		o.fields[field] = value
	}
}
