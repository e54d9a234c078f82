package typereg

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
)

// Constructor builds the host wrapper for a native object and returns a
// local reference to it. Implementations write the object's address into
// objbridge.HandleField.
type Constructor func(env objbridge.Env, obj objbridge.NativeObject) (objbridge.Ref, error)

// Registry maps type tags to wrapper constructors and native addresses to
// the tag of the object currently living there.
//
// The constructor table is append-only: a tag is registered once and never
// changes. The address table changes as objects cross the boundary and die.
type Registry struct {
	ctors   map[string]Constructor
	dynamic map[objbridge.Address]string
	ctorMu  sync.RWMutex
	dynMu   sync.Mutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		ctors:   make(map[string]Constructor),
		dynamic: make(map[objbridge.Address]string),
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry used by static registrations.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// MustRegister registers ctor for tag in the default registry and panics on
// failure. It returns true so it can initialize a package-level variable:
//
//	var _ = typereg.MustRegister("Circle", newCircleWrapper)
func MustRegister(tag string, ctor Constructor) bool {
	if err := Default().Register(tag, ctor); err != nil {
		panic(err)
	}
	return true
}

// Register associates tag with ctor. A tag can be registered only once.
func (r *Registry) Register(tag string, ctor Constructor) error {
	if tag == "" {
		return errors.Registration(tag, "empty type tag")
	}
	if ctor == nil {
		return errors.Registration(tag, "nil constructor")
	}

	r.ctorMu.Lock()
	defer r.ctorMu.Unlock()

	if _, exists := r.ctors[tag]; exists {
		return errors.Registration(tag, "already registered")
	}
	r.ctors[tag] = ctor
	Logger().Debug("type registered", zap.String("tag", tag))
	return nil
}

// Constructor returns the constructor registered for tag.
func (r *Registry) Constructor(tag string) (Constructor, bool) {
	r.ctorMu.RLock()
	defer r.ctorMu.RUnlock()
	ctor, ok := r.ctors[tag]
	return ctor, ok
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.ctorMu.RLock()
	tags := make([]string, 0, len(r.ctors))
	for tag := range r.ctors {
		tags = append(tags, tag)
	}
	r.ctorMu.RUnlock()

	sort.Strings(tags)
	return tags
}

// Bind records that the object at addr has the concrete type tag. Binding
// an address again overwrites the previous tag: the address now holds a
// different object.
func (r *Registry) Bind(addr objbridge.Address, tag string) {
	r.dynMu.Lock()
	defer r.dynMu.Unlock()
	r.dynamic[addr] = tag
}

// Unbind forgets the tag recorded for addr. Unbinding an address that was
// never bound is a programmer error: it is reported at DPanic level, which
// panics under a development logger, and returned.
func (r *Registry) Unbind(addr objbridge.Address) error {
	r.dynMu.Lock()
	_, ok := r.dynamic[addr]
	delete(r.dynamic, addr)
	r.dynMu.Unlock()

	if ok {
		return nil
	}
	err := errors.Consistency(errors.PhaseRegistry, uintptr(addr), "unbind of unregistered address")
	Logger().DPanic("type registry inconsistency", zap.Uintptr("addr", uintptr(addr)), zap.Error(err))
	return err
}

// Bound returns the number of addresses with a recorded tag.
func (r *Registry) Bound() int {
	r.dynMu.Lock()
	defer r.dynMu.Unlock()
	return len(r.dynamic)
}

// Lookup returns the tag bound to addr, or declared when the object never
// reported its concrete type.
func (r *Registry) Lookup(addr objbridge.Address, declared string) string {
	r.dynMu.Lock()
	tag, ok := r.dynamic[addr]
	r.dynMu.Unlock()

	if ok {
		return tag
	}
	return declared
}

// Resolve picks the constructor for the object at addr. It prefers the bound
// concrete tag and falls back to the declared tag's constructor, producing a
// less-derived wrapper rather than failing.
func (r *Registry) Resolve(addr objbridge.Address, declared string) (string, Constructor, error) {
	tag := r.Lookup(addr, declared)
	if ctor, ok := r.Constructor(tag); ok {
		return tag, ctor, nil
	}
	if tag != declared {
		if ctor, ok := r.Constructor(declared); ok {
			Logger().Debug("falling back to declared type",
				zap.String("tag", tag),
				zap.String("declared", declared),
				zap.Uintptr("addr", uintptr(addr)))
			return declared, ctor, nil
		}
	}
	return "", nil, errors.NotFound(errors.PhaseRegistry, "wrapper constructor", declared)
}
