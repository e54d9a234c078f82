package hostsim

import (
	"sync"
	"sync/atomic"

	"github.com/wippyai/objbridge"
)

// Config controls the simulated host.
type Config struct {
	// AttachError, when set, makes every AttachCurrentThread call fail.
	AttachError error

	// HashModulus folds identity hashes into [0, HashModulus) so that
	// distinct objects collide. Zero keeps full-width hashes.
	HashModulus int32
}

// Stats is a snapshot of the runtime's counters.
type Stats struct {
	Attaches    int64
	Detaches    int64
	Created     int64
	Collected   int64
	Finalized   int64
	InvalidRefs int64
	Live        int
	LocalRefs   int
	GlobalRefs  int
	WeakRefs    int
}

type object struct {
	fields    map[string]int64
	finalizer func()
	class     string
	id        uint64
	strong    int
	hash      int32
}

// Runtime is an in-process stand-in for a collected host runtime. An object
// is reachable while at least one local or global reference to it exists;
// Collect reclaims everything else.
//
// Thread affinity of environments is not enforced.
type Runtime struct {
	objects  map[*object]struct{}
	pending  []func()
	refs     refTable
	cfg      Config
	nextID   uint64
	mu       sync.Mutex
	attaches atomic.Int64
	detaches atomic.Int64
	created  atomic.Int64
	collects atomic.Int64
	finals   atomic.Int64
	invalid  atomic.Int64
}

var _ objbridge.Host = (*Runtime)(nil)

// New creates a runtime. A nil cfg selects defaults.
func New(cfg *Config) *Runtime {
	rt := &Runtime{
		objects: make(map[*object]struct{}),
		refs:    newRefTable(),
	}
	if cfg != nil {
		rt.cfg = *cfg
	}
	return rt
}

// AttachCurrentThread returns a fresh environment for the caller.
func (rt *Runtime) AttachCurrentThread() (objbridge.Env, error) {
	if rt.cfg.AttachError != nil {
		return nil, rt.cfg.AttachError
	}
	rt.attaches.Add(1)
	return &Env{rt: rt}, nil
}

// DetachCurrentThread records a detach.
func (rt *Runtime) DetachCurrentThread() error {
	rt.detaches.Add(1)
	return nil
}

// NewObject creates a host object held by a global reference, the way host
// code holds an object in a variable. finalizer, if set, runs after the
// object is collected.
func (rt *Runtime) NewObject(class string, finalizer func()) objbridge.Ref {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.newRefLocked(rt.newObjectLocked(class, finalizer), kindGlobal)
}

// Release drops a reference held by host code.
func (rt *Runtime) Release(r objbridge.Ref) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.deleteLocked(r)
}

// Collect reclaims unreachable objects: weak references to them are cleared
// at once, finalizers are queued for RunFinalizers. It returns the number of
// objects collected.
func (rt *Runtime) Collect() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	n := 0
	for obj := range rt.objects {
		if obj.strong > 0 {
			continue
		}
		delete(rt.objects, obj)
		rt.refs.clearWeak(obj)
		if obj.finalizer != nil {
			rt.pending = append(rt.pending, obj.finalizer)
		}
		n++
	}
	rt.collects.Add(int64(n))
	return n
}

// RunFinalizers runs queued finalizers on the calling goroutine, outside the
// runtime lock, and returns how many ran.
func (rt *Runtime) RunFinalizers() int {
	rt.mu.Lock()
	pending := rt.pending
	rt.pending = nil
	rt.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	rt.finals.Add(int64(len(pending)))
	return len(pending)
}

// GC collects and finalizes in one step.
func (rt *Runtime) GC() int {
	n := rt.Collect()
	rt.RunFinalizers()
	return n
}

// Stats returns a snapshot of the runtime's counters.
func (rt *Runtime) Stats() Stats {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return Stats{
		Attaches:    rt.attaches.Load(),
		Detaches:    rt.detaches.Load(),
		Created:     rt.created.Load(),
		Collected:   rt.collects.Load(),
		Finalized:   rt.finals.Load(),
		InvalidRefs: rt.invalid.Load(),
		Live:        len(rt.objects),
		LocalRefs:   rt.refs.count(kindLocal),
		GlobalRefs:  rt.refs.count(kindGlobal),
		WeakRefs:    rt.refs.count(kindWeak),
	}
}

func (rt *Runtime) newObjectLocked(class string, finalizer func()) *object {
	rt.nextID++
	id := rt.nextID
	// Fibonacci hashing spreads sequential ids across the int32 range.
	hash := int32(uint32(id * 2654435761))
	if m := rt.cfg.HashModulus; m > 0 {
		hash = int32(uint32(hash) % uint32(m))
	}
	obj := &object{
		id:        id,
		class:     class,
		hash:      hash,
		fields:    make(map[string]int64),
		finalizer: finalizer,
	}
	rt.objects[obj] = struct{}{}
	rt.created.Add(1)
	return obj
}

// resolveLocked returns the object r denotes, nil if r is invalid or a
// cleared weak reference.
func (rt *Runtime) resolveLocked(r objbridge.Ref) *object {
	if r == 0 {
		return nil
	}
	e, ok := rt.refs.lookup(r)
	if !ok {
		rt.invalid.Add(1)
		return nil
	}
	return e.obj
}

func (rt *Runtime) newRefLocked(obj *object, kind refKind) objbridge.Ref {
	if obj == nil {
		return 0
	}
	if kind.strong() {
		obj.strong++
	}
	return rt.refs.insert(obj, kind)
}

func (rt *Runtime) deleteLocked(r objbridge.Ref) {
	if r == 0 {
		return
	}
	e, ok := rt.refs.drop(r)
	if !ok {
		rt.invalid.Add(1)
		return
	}
	if e.kind.strong() && e.obj != nil {
		e.obj.strong--
	}
}
