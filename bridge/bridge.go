package bridge

import (
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/proxy"
	"github.com/wippyai/objbridge/threadenv"
	"github.com/wippyai/objbridge/typereg"
	"github.com/wippyai/objbridge/wrapper"
)

// Config holds bridge configuration. The zero value is usable.
type Config struct {
	// Logger, when set, replaces the logger of every bridge package.
	Logger *zap.Logger

	// Types is the type registry to resolve wrappers with. Nil selects
	// typereg.Default, which holds static registrations.
	Types *typereg.Registry

	// DisableProxyCache builds a fresh proxy on every AcquireProxy call.
	DisableProxyCache bool
}

// Stats is a snapshot of the bridge's tables.
type Stats struct {
	Proxies           int
	ReverseEntries    int
	Wrappers          int
	ScheduledRemovals uint
	BoundTypes        int
	AttachedThreads   int
}

// Bridge owns the caches and registries for one host runtime. It is meant
// to be created once per process and closed at shutdown.
type Bridge struct {
	threads  *threadenv.Registry
	types    *typereg.Registry
	reverse  *proxy.Reverse
	proxies  *proxy.Cache
	wrappers *wrapper.Cache
	cfg      Config
	closed   atomic.Bool
}

// New wires a bridge to host. A nil cfg selects defaults.
func New(host objbridge.Host, cfg *Config) *Bridge {
	b := &Bridge{}
	if cfg != nil {
		b.cfg = *cfg
	}
	if b.cfg.Logger != nil {
		SetLogger(b.cfg.Logger)
	}

	b.types = b.cfg.Types
	if b.types == nil {
		b.types = typereg.Default()
	}
	b.threads = threadenv.New(host)
	b.reverse = proxy.NewReverse()
	b.proxies = proxy.NewCache(b.threads, b.reverse)
	b.wrappers = wrapper.NewCache()

	Logger().Info("bridge created",
		zap.Int("types", len(b.types.Tags())),
		zap.Bool("proxy_cache", !b.cfg.DisableProxyCache))
	return b
}

// Threads returns the bridge's thread registry.
func (b *Bridge) Threads() *threadenv.Registry {
	return b.threads
}

// Types returns the bridge's type registry.
func (b *Bridge) Types() *typereg.Registry {
	return b.types
}

// Do runs fn on the calling goroutine's OS thread with its host
// environment. See threadenv.Registry.Do.
func (b *Bridge) Do(fn func(objbridge.Env) error) error {
	if b.closed.Load() {
		return errors.Closed(errors.PhaseAttach, "bridge")
	}
	return b.threads.Do(fn)
}

// AcquireProxy returns the native proxy for a host object, building it with
// factory if no reachable proxy exists for host and tag. env must belong to
// the calling thread.
func AcquireProxy[T any](b *Bridge, env objbridge.Env, host objbridge.Ref, tag string, factory proxy.Factory[T], cacheable bool) (*T, error) {
	if b.closed.Load() {
		return nil, errors.Closed(errors.PhaseProxy, "bridge")
	}
	return proxy.GetOrCreate(b.proxies, env, host, tag, factory, cacheable && !b.cfg.DisableProxyCache)
}

// ReverseLookup returns the host object backing a cached proxy, or zero.
func ReverseLookup[T any](b *Bridge, p *T) objbridge.Ref {
	return b.reverse.Lookup(proxy.AddressOf(p))
}

// AcquireWrapper returns a local reference to the host wrapper of obj,
// constructing one if the host holds none. declared is the static type the
// caller knows obj by; the type registry may pick a more derived wrapper.
// env must belong to the calling thread.
func (b *Bridge) AcquireWrapper(env objbridge.Env, obj objbridge.NativeObject, declared string) (objbridge.Ref, error) {
	if b.closed.Load() {
		return 0, errors.Closed(errors.PhaseWrapper, "bridge")
	}
	addr := obj.Address()
	if addr == 0 {
		return 0, errors.InvalidInput(errors.PhaseWrapper, "null native object")
	}

	if ref := b.wrappers.GetOrCreate(env, addr); ref != 0 {
		return ref, nil
	}

	tag, ctor, err := b.types.Resolve(addr, declared)
	if err != nil {
		return 0, err
	}
	ref, err := ctor(env, obj)
	if err != nil || ref == 0 {
		return 0, errors.New(errors.PhaseWrapper, errors.KindAllocation).
			Tag(tag).
			Address(uintptr(addr)).
			Detail("wrapper construction failed").
			Cause(err).
			Build()
	}

	winner := b.wrappers.Insert(env, addr, ref)
	if winner != ref {
		env.DeleteRef(ref)
	}
	Logger().Debug("wrapper created", zap.String("tag", tag), zap.Uintptr("addr", uintptr(addr)))
	return winner, nil
}

// Remove drops the wrapper cache entry for addr. Native destructors call it
// from any thread, also after Close.
func (b *Bridge) Remove(addr objbridge.Address) error {
	return b.threads.Teardown(func(env objbridge.Env) error {
		b.wrappers.Remove(env, addr)
		return nil
	})
}

// Stats returns a snapshot of the bridge's tables.
func (b *Bridge) Stats() Stats {
	return Stats{
		Proxies:           b.proxies.Len(),
		ReverseEntries:    b.reverse.Len(),
		Wrappers:          b.wrappers.Len(),
		ScheduledRemovals: b.wrappers.Pending(),
		BoundTypes:        b.types.Bound(),
		AttachedThreads:   b.threads.Attached(),
	}
}

// Close purges dead proxy entries and detaches the calling thread. New
// acquisitions fail afterwards. Proxies and wrappers still alive keep their
// host references until they die; their teardown and Remove keep working.
func (b *Bridge) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	var purged int
	err := b.threads.Do(func(env objbridge.Env) error {
		purged = b.proxies.Purge(env)
		return nil
	})
	err = multierr.Append(err, b.threads.Close())

	s := b.Stats()
	Logger().Info("bridge closed",
		zap.Int("purged", purged),
		zap.Int("proxies", s.Proxies),
		zap.Int("wrappers", s.Wrappers),
		zap.Uint("scheduled_removals", s.ScheduledRemovals))
	return err
}
