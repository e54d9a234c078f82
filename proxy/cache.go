package proxy

import (
	"runtime"
	"sync"
	"unsafe"
	"weak"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/threadenv"
)

// Factory builds a native proxy around a host object. The proxy takes
// ownership of global, a strong reference to the host object, and must not
// call back into the cache for the same host object.
type Factory[T any] func(global objbridge.Ref) (*T, error)

type key struct {
	tag  string
	hash int32
}

type entry struct {
	proxy any         // weak.Pointer[T]
	alive func() bool // reports whether the proxy is still reachable
	key   key
	host  objbridge.Ref // weak reference used for identity comparison
}

type cleanup struct {
	entry  *entry
	addr   objbridge.Address
	global objbridge.Ref
}

// Cache maps host objects to the native proxies wrapping them. Proxies are
// held weakly: an entry lives as long as native code keeps its proxy.
//
// One mutex covers lookups, host identity comparisons and proxy
// construction, so two proxies for the same host object and tag never
// coexist.
type Cache struct {
	threads *threadenv.Registry
	reverse *Reverse
	buckets map[key][]*entry
	size    int
	mu      sync.Mutex
}

// NewCache creates a cache. threads provides the host environment for proxy
// teardown; reverse receives every cacheable proxy.
func NewCache(threads *threadenv.Registry, reverse *Reverse) *Cache {
	return &Cache{
		threads: threads,
		reverse: reverse,
		buckets: make(map[key][]*entry),
	}
}

// AddressOf returns the native address of a proxy.
func AddressOf[T any](p *T) objbridge.Address {
	return objbridge.Address(uintptr(unsafe.Pointer(p)))
}

// GetOrCreate returns the proxy for host under tag, building it with factory
// on a miss. With cacheable set, a proxy still reachable from an earlier call
// is returned instead and the new proxy is recorded for later calls and in
// the reverse lookup. env must belong to the calling thread.
//
// A tag fixes the proxy type for a host object: while a cacheable proxy of
// one type is reachable, asking for another type under the same tag fails
// with InvalidInput. T must not be a zero-size type.
func GetOrCreate[T any](c *Cache, env objbridge.Env, host objbridge.Ref, tag string, factory Factory[T], cacheable bool) (*T, error) {
	if host == 0 {
		return nil, errors.InvalidInput(errors.PhaseProxy, "null host object")
	}
	global := env.NewGlobalRef(host)
	if global == 0 {
		return nil, errors.InvalidInput(errors.PhaseProxy, "host object is not reachable")
	}
	k := key{hash: env.IdentityHashCode(global), tag: tag}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cacheable {
		if e := c.findLocked(env, k, global); e != nil {
			w, ok := e.proxy.(weak.Pointer[T])
			switch {
			case ok:
				if p := w.Value(); p != nil {
					env.DeleteRef(global)
					Logger().Debug("proxy cache hit", zap.String("tag", tag), zap.Int32("hash", k.hash))
					return p, nil
				}
			case e.alive():
				env.DeleteRef(global)
				return nil, errors.New(errors.PhaseProxy, errors.KindInvalidInput).
					Tag(tag).
					Detail("tag already holds a live proxy of another type").
					Build()
			}
		}
	}

	p, err := factory(global)
	if err != nil || p == nil {
		env.DeleteRef(global)
		Logger().Warn("proxy construction failed", zap.String("tag", tag), zap.Error(err))
		return nil, errors.AllocationFailed(errors.PhaseProxy, tag, err)
	}

	addr := AddressOf(p)
	var e *entry
	if cacheable {
		w := weak.Make(p)
		e = &entry{
			proxy: w,
			alive: func() bool { return w.Value() != nil },
			key:   k,
			host:  env.NewWeakGlobalRef(global),
		}
		c.insertLocked(env, e)
		c.reverse.Register(addr, global)
	}
	runtime.AddCleanup(p, c.release, cleanup{entry: e, addr: addr, global: global})

	Logger().Debug("proxy created",
		zap.String("tag", tag),
		zap.Int32("hash", k.hash),
		zap.Uintptr("addr", uintptr(addr)),
		zap.Bool("cacheable", cacheable))
	return p, nil
}

// Len returns the number of cached entries, including entries whose proxy
// was collected but not yet cleaned up.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Purge drops entries whose proxies are no longer reachable and returns how
// many were dropped. Proxy teardown does this on its own; Purge forces it.
func (c *Cache) Purge(env objbridge.Env) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, bucket := range c.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if e.alive() {
				kept = append(kept, e)
				continue
			}
			env.DeleteRef(e.host)
			n++
		}
		c.setBucketLocked(k, kept)
	}
	c.size -= n
	return n
}

// findLocked returns the entry for the host object behind global. Distinct
// objects may share a hash, so each candidate is confirmed by the host.
func (c *Cache) findLocked(env objbridge.Env, k key, global objbridge.Ref) *entry {
	for _, e := range c.buckets[k] {
		if env.IsSameObject(e.host, global) {
			return e
		}
	}
	return nil
}

// insertLocked adds e, dropping any entry it supersedes and any entry whose
// host object is already gone.
func (c *Cache) insertLocked(env objbridge.Env, e *entry) {
	bucket := c.buckets[e.key]
	kept := bucket[:0]
	for _, old := range bucket {
		if env.IsSameObject(old.host, e.host) || env.IsSameObject(old.host, 0) {
			env.DeleteRef(old.host)
			c.size--
			continue
		}
		kept = append(kept, old)
	}
	c.buckets[e.key] = append(kept, e)
	c.size++
}

// removeLocked removes exactly e. It reports false when e was already
// superseded or purged.
func (c *Cache) removeLocked(e *entry) bool {
	bucket := c.buckets[e.key]
	for i, cur := range bucket {
		if cur != e {
			continue
		}
		bucket = append(bucket[:i], bucket[i+1:]...)
		c.setBucketLocked(e.key, bucket)
		c.size--
		return true
	}
	return false
}

func (c *Cache) setBucketLocked(k key, bucket []*entry) {
	if len(bucket) == 0 {
		delete(c.buckets, k)
		return
	}
	c.buckets[k] = bucket
}

// release tears down a collected proxy: its reverse mapping, its own cache
// entry and the references it owned. It runs on the runtime's cleanup
// goroutine.
func (c *Cache) release(cl cleanup) {
	err := c.threads.Teardown(func(env objbridge.Env) error {
		if cl.entry != nil {
			c.reverse.Unregister(cl.addr, cl.global)

			c.mu.Lock()
			removed := c.removeLocked(cl.entry)
			if removed {
				env.DeleteRef(cl.entry.host)
			}
			c.mu.Unlock()
		}
		env.DeleteRef(cl.global)
		return nil
	})
	if err != nil {
		Logger().Warn("proxy teardown without host environment",
			zap.Uintptr("addr", uintptr(cl.addr)),
			zap.Error(err))
		return
	}
	Logger().Debug("proxy released", zap.Uintptr("addr", uintptr(cl.addr)))
}
