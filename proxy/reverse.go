package proxy

import (
	"sync"

	"github.com/wippyai/objbridge"
)

// Reverse maps a live proxy's address to the global reference it holds on
// its host object. The reference is owned by the proxy; Reverse only
// mirrors it.
type Reverse struct {
	refs map[objbridge.Address]objbridge.Ref
	mu   sync.Mutex
}

// NewReverse creates an empty reverse lookup.
func NewReverse() *Reverse {
	return &Reverse{
		refs: make(map[objbridge.Address]objbridge.Ref),
	}
}

// Register records that the proxy at addr is backed by host.
func (r *Reverse) Register(addr objbridge.Address, host objbridge.Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[addr] = host
}

// Lookup returns the host object backing the proxy at addr, or zero. The
// reference stays valid only while the proxy is alive.
func (r *Reverse) Lookup(addr objbridge.Address) objbridge.Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[addr]
}

// Unregister removes the mapping for addr if it still points at host. A
// proxy allocated later at the same address registers a different global
// reference, so a late unregister from a dead proxy leaves it alone.
func (r *Reverse) Unregister(addr objbridge.Address, host objbridge.Ref) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.refs[addr]; !ok || cur != host {
		return false
	}
	delete(r.refs, addr)
	return true
}

// Len returns the number of registered proxies.
func (r *Reverse) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs)
}
