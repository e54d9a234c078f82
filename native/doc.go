// Package native is a reference-counted object heap living in a wasm linear
// memory.
//
// It stands in for the native engine's allocator. Object headers (reference
// count and payload size) are stored in the memory of a wazero module, and
// freed blocks are reused last-in first-out per size class. Address reuse is
// therefore immediate and deterministic, which is the hazard the wrapper cache
// has to survive:
//
//	heap, _ := native.New(ctx)
//	a, _ := heap.Alloc("Circle", 32)
//	addr := a.Address()
//	a.Release()                      // freed, OnFree hooks run
//	b, _ := heap.Alloc("Square", 32) // b.Address() == addr
//
// OnFree hooks model native destructors: they receive the address of the
// dead object before its block can be handed out again.
package native
