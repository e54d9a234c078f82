package native

import (
	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
)

// Object is a handle to a block in the heap. The reference count lives in
// the block header, in linear memory. Once the count reaches zero the handle
// is dead even if a new object later occupies the same address.
type Object struct {
	heap *Heap
	tag  string
	addr objbridge.Address
	size uint32
}

var _ objbridge.NativeObject = (*Object)(nil)

// Address returns the object's location in the heap.
func (o *Object) Address() objbridge.Address {
	return o.addr
}

// Tag returns the object's concrete type tag.
func (o *Object) Tag() string {
	return o.tag
}

// Alive reports whether o still owns its block.
func (o *Object) Alive() bool {
	h := o.heap
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed && h.objects[o.addr] == o
}

// RefCount returns the current reference count, zero once freed.
func (o *Object) RefCount() uint32 {
	h := o.heap
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.objects[o.addr] != o {
		return 0
	}
	n, _ := h.mem.ReadUint32Le(uint32(o.addr) + offRefCount)
	return n
}

// Retain adds a reference. It fails on a freed object.
func (o *Object) Retain() error {
	h := o.heap
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.objects[o.addr] != o {
		return errors.Consistency(errors.PhaseNative, uintptr(o.addr), "retain of freed object")
	}
	off := uint32(o.addr) + offRefCount
	n, _ := h.mem.ReadUint32Le(off)
	h.mem.WriteUint32Le(off, n+1)
	return nil
}

// Release drops a reference. When the last one goes the heap's OnFree hooks
// run on the calling goroutine and the block is freed. It reports whether
// the object was freed.
func (o *Object) Release() bool {
	h := o.heap
	h.mu.Lock()
	hooks, freed := h.releaseLocked(o)
	h.mu.Unlock()

	if !freed {
		return false
	}
	for _, fn := range hooks {
		fn(o.addr)
	}
	h.recycle(o.addr, o.size)
	return true
}

// Write copies p into the object's payload.
func (o *Object) Write(p []byte) error {
	if uint32(len(p)) > o.size {
		return errors.InvalidInput(errors.PhaseNative, "payload larger than object")
	}
	h := o.heap
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.objects[o.addr] != o {
		return errors.Consistency(errors.PhaseNative, uintptr(o.addr), "write to freed object")
	}
	if !h.mem.Write(uint32(o.addr)+headerSize, p) {
		return errors.New(errors.PhaseNative, errors.KindInvalidInput).Address(uintptr(o.addr)).Detail("payload out of range").Build()
	}
	return nil
}

// Bytes returns a copy of the object's payload.
func (o *Object) Bytes() ([]byte, error) {
	h := o.heap
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.objects[o.addr] != o {
		return nil, errors.Consistency(errors.PhaseNative, uintptr(o.addr), "read of freed object")
	}
	view, ok := h.mem.Read(uint32(o.addr)+headerSize, o.size)
	if !ok {
		return nil, errors.New(errors.PhaseNative, errors.KindInvalidInput).Address(uintptr(o.addr)).Detail("payload out of range").Build()
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}
