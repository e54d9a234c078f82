// Package typereg picks the right host wrapper for polymorphic native
// objects.
//
// Marshalling code often only sees a base-class pointer. To still hand the
// host a wrapper of the object's concrete type, each exposed type registers
// a wrapper constructor under an opaque tag once, at start-up:
//
//	var _ = typereg.MustRegister("Shape", newShapeWrapper)
//	var _ = typereg.MustRegister("Circle", newCircleWrapper)
//
// and each instance reports its concrete tag when it first crosses the
// boundary, withdrawing it when destroyed:
//
//	reg.Bind(circle.Address(), "Circle")
//	defer reg.Unbind(circle.Address())
//
// Resolve then maps (address, declared tag) to a constructor, falling back
// to the declared type when the object never reported a concrete tag or its
// tag has no constructor.
package typereg
