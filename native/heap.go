package native

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
)

// memoryModule is a core wasm module exporting one growable memory:
//
//	(module (memory (export "memory") 1))
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: min 1 page
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00, // export "memory"
}

const (
	pageSize   = 65536
	headerSize = 8
	blockAlign = 16

	// Addresses below firstBlock are never handed out; zero is null.
	firstBlock = 16

	offRefCount = 0
	offSize     = 4
)

// Heap allocates reference-counted native objects in a wasm linear memory.
// Freed blocks are reused last-in first-out per size class, so a new object
// of the same size lands at the address just freed.
type Heap struct {
	runtime wazero.Runtime
	module  api.Module
	mem     api.Memory
	free    map[uint32][]objbridge.Address
	objects map[objbridge.Address]*Object
	onFree  []func(objbridge.Address)
	top     uint32
	mu      sync.Mutex
	closed  bool
}

// New creates a heap backed by a fresh wazero runtime.
func New(ctx context.Context) (*Heap, error) {
	rt := wazero.NewRuntime(ctx)
	mod, err := rt.InstantiateWithConfig(ctx, memoryModule, wazero.NewModuleConfig().WithName("native-heap"))
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseNative, errors.KindAllocation, err, "instantiate heap memory")
	}
	mem := mod.Memory()
	if mem == nil {
		rt.Close(ctx)
		return nil, errors.New(errors.PhaseNative, errors.KindAllocation).Detail("heap module exports no memory").Build()
	}
	return &Heap{
		runtime: rt,
		module:  mod,
		mem:     mem,
		free:    make(map[uint32][]objbridge.Address),
		objects: make(map[objbridge.Address]*Object),
		top:     firstBlock,
	}, nil
}

// OnFree registers fn to run when an object's last reference is released,
// before its block can be handed out again. This is where native destructors
// notify the bridge.
func (h *Heap) OnFree(fn func(objbridge.Address)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFree = append(h.onFree, fn)
}

// Alloc creates an object of the given type tag with a payload of size bytes
// and a reference count of one.
func (h *Heap) Alloc(tag string, size uint32) (*Object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.Closed(errors.PhaseNative, "heap")
	}

	class := blockSize(size)
	var addr objbridge.Address
	if list := h.free[class]; len(list) > 0 {
		addr = list[len(list)-1]
		h.free[class] = list[:len(list)-1]
	} else {
		if err := h.ensure(h.top + class); err != nil {
			return nil, errors.AllocationFailed(errors.PhaseNative, tag, err)
		}
		addr = objbridge.Address(h.top)
		h.top += class
	}

	off := uint32(addr)
	if !h.mem.WriteUint32Le(off+offRefCount, 1) || !h.mem.WriteUint32Le(off+offSize, size) {
		return nil, errors.New(errors.PhaseNative, errors.KindAllocation).
			Tag(tag).
			Address(uintptr(addr)).
			Detail("header out of range").
			Build()
	}
	if size > 0 {
		h.mem.Write(off+headerSize, make([]byte, size))
	}

	obj := &Object{heap: h, addr: addr, size: size, tag: tag}
	h.objects[addr] = obj
	return obj, nil
}

// Lookup returns the live object at addr.
func (h *Heap) Lookup(addr objbridge.Address) (*Object, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	obj, ok := h.objects[addr]
	return obj, ok
}

// Live returns the number of allocated objects.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects)
}

// Size returns the current size of the backing memory in bytes.
func (h *Heap) Size() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mem.Size()
}

// Close releases the backing runtime. Outstanding objects become invalid.
func (h *Heap) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.objects = nil
	h.free = nil
	h.mu.Unlock()

	return h.runtime.Close(ctx)
}

func (h *Heap) ensure(end uint32) error {
	cur := h.mem.Size()
	if end <= cur {
		return nil
	}
	pages := (end - cur + pageSize - 1) / pageSize
	if _, ok := h.mem.Grow(pages); !ok {
		return errors.New(errors.PhaseNative, errors.KindAllocation).
			Detail("grow memory by %d pages", pages).
			Build()
	}
	return nil
}

// releaseLocked drops one reference. At zero the object is unlinked but its
// block is not yet reusable; the caller runs the returned hooks and then
// recycles the block.
func (h *Heap) releaseLocked(o *Object) ([]func(objbridge.Address), bool) {
	if h.closed || h.objects[o.addr] != o {
		return nil, false
	}
	off := uint32(o.addr)
	refs, _ := h.mem.ReadUint32Le(off + offRefCount)
	if refs > 1 {
		h.mem.WriteUint32Le(off+offRefCount, refs-1)
		return nil, false
	}

	h.mem.WriteUint32Le(off+offRefCount, 0)
	delete(h.objects, o.addr)
	return h.onFree, true
}

func (h *Heap) recycle(addr objbridge.Address, size uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	class := blockSize(size)
	h.free[class] = append(h.free[class], addr)
}

func blockSize(size uint32) uint32 {
	return (headerSize + size + blockAlign - 1) &^ (blockAlign - 1)
}
