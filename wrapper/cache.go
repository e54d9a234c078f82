package wrapper

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
)

// entry is the cached wrapper of the object at one native address.
// scheduled counts host collections this cache noticed whose matching
// native Remove has not arrived yet.
type entry struct {
	slot      objbridge.Ref // weak reference to the host wrapper; zero once found dead
	scheduled uint
}

// Cache maps native addresses to weak references on their host wrappers.
type Cache struct {
	entries map[objbridge.Address]*entry
	mu      sync.Mutex
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[objbridge.Address]*entry),
	}
}

// GetOrCreate returns a local reference to the cached wrapper for addr, or
// zero when the caller has to construct one and Insert it. A wrapper the
// host has collected counts as a miss; its slot is cleared and one removal
// is scheduled for the Remove that the native destructor will deliver.
func (c *Cache) GetOrCreate(env objbridge.Env, addr objbridge.Address) objbridge.Ref {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[addr]
	if !ok || e.slot == 0 {
		return 0
	}

	if local := env.NewLocalRef(e.slot); local != 0 {
		return local
	}

	env.DeleteRef(e.slot)
	e.slot = 0
	e.scheduled++
	Logger().Debug("wrapper collected by host",
		zap.Uintptr("addr", uintptr(addr)),
		zap.Uint("scheduled", e.scheduled))
	return 0
}

// Insert records local as the wrapper for addr and returns the wrapper the
// caller should use. If another thread cached a live wrapper first, that
// one is returned as a new local reference and local is left untouched for
// the caller to discard.
func (c *Cache) Insert(env objbridge.Env, addr objbridge.Address, local objbridge.Ref) objbridge.Ref {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[addr]
	if !ok {
		e = &entry{}
		c.entries[addr] = e
	}

	if e.slot != 0 {
		if existing := env.NewLocalRef(e.slot); existing != 0 {
			return existing
		}
		env.DeleteRef(e.slot)
		e.slot = 0
		e.scheduled++
	}

	e.slot = env.NewWeakGlobalRef(local)
	return local
}

// Remove is called from a native object's destructor. If an earlier lookup
// already found the wrapper dead, this call settles that scheduled removal
// and leaves the entry alone: it may by now belong to a new object at the
// reused address. Otherwise the entry is released and erased.
func (c *Cache) Remove(env objbridge.Env, addr objbridge.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[addr]
	if !ok {
		return
	}

	if e.scheduled > 0 {
		e.scheduled--
		Logger().Debug("scheduled wrapper removal settled",
			zap.Uintptr("addr", uintptr(addr)),
			zap.Uint("scheduled", e.scheduled))
		if e.scheduled == 0 && e.slot == 0 {
			delete(c.entries, addr)
		}
		return
	}

	if e.slot != 0 {
		env.DeleteRef(e.slot)
	}
	delete(c.entries, addr)
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Scheduled returns the number of pending scheduled removals for addr.
func (c *Cache) Scheduled(addr objbridge.Address) uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[addr]; ok {
		return e.scheduled
	}
	return 0
}

// Pending returns the total number of scheduled removals.
func (c *Cache) Pending() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n uint
	for _, e := range c.entries {
		n += e.scheduled
	}
	return n
}
