package wrapper

import (
	"testing"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/hostsim"
)

const addr objbridge.Address = 0x1040

func setup(t *testing.T) (*hostsim.Runtime, objbridge.Env, *Cache) {
	t.Helper()
	rt := hostsim.New(nil)
	env, err := rt.AttachCurrentThread()
	if err != nil {
		t.Fatalf("AttachCurrentThread failed: %v", err)
	}
	return rt, env, NewCache()
}

// newWrapper creates a host wrapper and returns a local reference to it,
// the way a constructor does.
func newWrapper(env objbridge.Env, a objbridge.Address) objbridge.Ref {
	w := env.(*hostsim.Env).NewObject("Shape", nil)
	env.SetLongField(w, objbridge.HandleField, int64(a))
	return w
}

func TestCache_InsertAndLookup(t *testing.T) {
	_, env, c := setup(t)

	if ref := c.GetOrCreate(env, addr); ref != 0 {
		t.Fatal("Expected miss on empty cache")
	}
	w := newWrapper(env, addr)
	if got := c.Insert(env, addr, w); got != w {
		t.Fatal("Expected Insert to return the inserted wrapper")
	}

	ref := c.GetOrCreate(env, addr)
	if ref == 0 {
		t.Fatal("Expected hit after Insert")
	}
	if !env.IsSameObject(ref, w) {
		t.Fatal("Expected the cached wrapper")
	}
	if c.Len() != 1 {
		t.Fatalf("Expected 1 entry, got %d", c.Len())
	}
}

func TestCache_InsertKeepsLiveWrapper(t *testing.T) {
	_, env, c := setup(t)

	first := newWrapper(env, addr)
	c.Insert(env, addr, first)

	second := newWrapper(env, addr)
	got := c.Insert(env, addr, second)
	if !env.IsSameObject(got, first) {
		t.Fatal("Expected the wrapper inserted first to win")
	}
	if env.IsSameObject(got, second) {
		t.Fatal("Losing wrapper must not be returned")
	}
}

func TestCache_RemoveReleasesEntry(t *testing.T) {
	rt, env, c := setup(t)

	w := newWrapper(env, addr)
	c.Insert(env, addr, w)
	c.Remove(env, addr)

	if c.Len() != 0 {
		t.Fatalf("Expected empty cache, got %d", c.Len())
	}
	if n := rt.Stats().WeakRefs; n != 0 {
		t.Fatalf("Expected weak ref released, got %d", n)
	}

	// unknown address
	c.Remove(env, 0x2000)
	if n := rt.Stats().InvalidRefs; n != 0 {
		t.Fatalf("Expected no invalid refs, got %d", n)
	}
}

func TestCache_CollectedWrapperSchedulesRemoval(t *testing.T) {
	rt, env, c := setup(t)

	w := newWrapper(env, addr)
	c.Insert(env, addr, w)
	env.DeleteRef(w)
	if n := rt.Collect(); n != 1 {
		t.Fatalf("Expected wrapper collected, got %d", n)
	}

	if ref := c.GetOrCreate(env, addr); ref != 0 {
		t.Fatal("Expected miss for a collected wrapper")
	}
	if c.Scheduled(addr) != 1 || c.Pending() != 1 {
		t.Fatalf("Expected 1 scheduled removal, got %d", c.Scheduled(addr))
	}
	if ref := c.GetOrCreate(env, addr); ref != 0 {
		t.Fatal("Expected miss again")
	}
	if c.Scheduled(addr) != 1 {
		t.Fatal("A cleared slot must not schedule twice")
	}

	c.Remove(env, addr)
	if c.Scheduled(addr) != 0 || c.Len() != 0 {
		t.Fatal("Expected settled removal to drop the empty entry")
	}
	if s := rt.Stats(); s.WeakRefs != 0 || s.InvalidRefs != 0 {
		t.Fatalf("Expected clean ref table, got %+v", s)
	}
}

func TestCache_AddressReuse(t *testing.T) {
	rt, env, c := setup(t)

	// Object A's wrapper is collected by the host while A is still being
	// torn down natively.
	wa := newWrapper(env, addr)
	c.Insert(env, addr, wa)
	env.DeleteRef(wa)
	rt.Collect()

	// Object B, allocated at the same address, crosses before A's
	// destructor reports.
	if ref := c.GetOrCreate(env, addr); ref != 0 {
		t.Fatal("Expected miss for B")
	}
	wb := newWrapper(env, addr)
	c.Insert(env, addr, wb)

	// A's destructor.
	c.Remove(env, addr)
	ref := c.GetOrCreate(env, addr)
	if ref == 0 || !env.IsSameObject(ref, wb) {
		t.Fatal("Late removal for A dropped B's wrapper")
	}
	env.DeleteRef(ref)

	// B's destructor.
	c.Remove(env, addr)
	if c.Len() != 0 {
		t.Fatal("Expected entry removed with B")
	}
	if s := rt.Stats(); s.WeakRefs != 0 || s.InvalidRefs != 0 {
		t.Fatalf("Expected no leaked or double-deleted refs, got %+v", s)
	}
}

func TestCache_InsertOverDeadSlot(t *testing.T) {
	rt, env, c := setup(t)

	wa := newWrapper(env, addr)
	c.Insert(env, addr, wa)
	env.DeleteRef(wa)
	rt.Collect()

	wb := newWrapper(env, addr)
	if got := c.Insert(env, addr, wb); got != wb {
		t.Fatal("Expected new wrapper to replace the dead one")
	}
	if c.Scheduled(addr) != 1 {
		t.Fatalf("Expected dead slot to schedule a removal, got %d", c.Scheduled(addr))
	}
	if n := rt.Stats().WeakRefs; n != 1 {
		t.Fatalf("Expected only the new weak ref, got %d", n)
	}
}
