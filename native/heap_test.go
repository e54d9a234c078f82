package native

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/wippyai/objbridge"
	bridgeerrors "github.com/wippyai/objbridge/errors"
)

func newHeap(t *testing.T) *Heap {
	t.Helper()
	ctx := context.Background()
	h, err := New(ctx)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { h.Close(ctx) })
	return h
}

func TestHeap_AllocAndRelease(t *testing.T) {
	h := newHeap(t)

	var freed []objbridge.Address
	h.OnFree(func(addr objbridge.Address) { freed = append(freed, addr) })

	obj, err := h.Alloc("Circle", 24)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if obj.Address() == 0 {
		t.Fatal("Expected non-null address")
	}
	if obj.Address()%blockAlign != 0 {
		t.Fatalf("Expected aligned address, got %#x", obj.Address())
	}
	if obj.RefCount() != 1 {
		t.Fatalf("Expected refcount 1, got %d", obj.RefCount())
	}

	if err := obj.Retain(); err != nil {
		t.Fatalf("Retain failed: %v", err)
	}
	if obj.Release() {
		t.Fatal("Expected object to survive first release")
	}
	if len(freed) != 0 {
		t.Fatal("OnFree ran too early")
	}
	if !obj.Release() {
		t.Fatal("Expected object to be freed")
	}
	if len(freed) != 1 || freed[0] != obj.Address() {
		t.Fatalf("Expected OnFree(%#x), got %v", obj.Address(), freed)
	}
	if obj.Alive() || obj.RefCount() != 0 {
		t.Fatal("Expected dead handle")
	}
	if obj.Release() {
		t.Fatal("Release of a dead handle must be a no-op")
	}
}

func TestHeap_AddressReuse(t *testing.T) {
	h := newHeap(t)

	a, _ := h.Alloc("Circle", 16)
	addr := a.Address()
	a.Release()

	b, err := h.Alloc("Square", 16)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if b.Address() != addr {
		t.Fatalf("Expected reuse of %#x, got %#x", addr, b.Address())
	}
	if a.Alive() {
		t.Fatal("Old handle must stay dead after reuse")
	}
	if err := a.Retain(); !errors.Is(err, bridgeerrors.ErrConsistency) {
		t.Fatalf("Expected consistency error, got %v", err)
	}
	a.Release()
	if !b.Alive() || b.RefCount() != 1 {
		t.Fatal("Stale release must not affect the new object")
	}

	got, ok := h.Lookup(addr)
	if !ok || got != b {
		t.Fatal("Expected Lookup to return the new object")
	}
}

func TestHeap_Payload(t *testing.T) {
	h := newHeap(t)

	obj, _ := h.Alloc("Blob", 8)
	if err := obj.Write([]byte("abcdefgh")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := obj.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if !bytes.Equal(got, []byte("abcdefgh")) {
		t.Fatalf("Expected payload, got %q", got)
	}
	if err := obj.Write(make([]byte, 9)); err == nil {
		t.Fatal("Expected oversized write to fail")
	}

	obj.Release()
	again, _ := h.Alloc("Blob", 8)
	got, _ = again.Bytes()
	if !bytes.Equal(got, make([]byte, 8)) {
		t.Fatalf("Expected zeroed payload on reuse, got %q", got)
	}
}

func TestHeap_Grow(t *testing.T) {
	h := newHeap(t)

	before := h.Size()
	var objs []*Object
	for i := 0; i < 8; i++ {
		obj, err := h.Alloc("Page", pageSize/4)
		if err != nil {
			t.Fatalf("Alloc %d failed: %v", i, err)
		}
		objs = append(objs, obj)
	}
	if h.Size() <= before {
		t.Fatalf("Expected memory to grow past %d, got %d", before, h.Size())
	}
	if h.Live() != len(objs) {
		t.Fatalf("Expected %d live, got %d", len(objs), h.Live())
	}
}

func TestHeap_Closed(t *testing.T) {
	ctx := context.Background()
	h, err := New(ctx)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := h.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := h.Alloc("Circle", 8); !errors.Is(err, bridgeerrors.ErrClosed) {
		t.Fatalf("Expected closed error, got %v", err)
	}
	if err := h.Close(ctx); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}

func TestHeap_OnFreeRunsBeforeReuse(t *testing.T) {
	h := newHeap(t)

	a, _ := h.Alloc("Circle", 16)
	var inHook *Object
	h.OnFree(func(addr objbridge.Address) {
		if addr != a.Address() {
			return
		}
		obj, err := h.Alloc("Square", 16)
		if err != nil {
			t.Errorf("Alloc in hook failed: %v", err)
			return
		}
		inHook = obj
	})

	a.Release()
	if inHook == nil {
		t.Fatal("Expected hook to run")
	}
	if inHook.Address() == a.Address() {
		t.Fatal("Block was reused before its destructor hooks finished")
	}

	next, _ := h.Alloc("Square", 16)
	if next.Address() != a.Address() {
		t.Fatalf("Expected reuse of %#x after hooks, got %#x", a.Address(), next.Address())
	}
}
