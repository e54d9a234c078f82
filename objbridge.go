package objbridge

// Address is the identity of a native object: its location in the native
// heap. Addresses are reused once the object is freed. Zero is null.
type Address uintptr

// Ref is an opaque host reference. The host decides whether a Ref is local,
// global or weak; callers release every Ref they create with Env.DeleteRef.
// Zero is the null reference.
type Ref uintptr

// HandleField names the 64-bit field on every host wrapper that holds the
// native address it represents. It is written once, at construction.
const HandleField = "nativeHandle"

// Host is the embedding runtime as seen from a native thread.
type Host interface {
	// AttachCurrentThread attaches the calling OS thread and returns its
	// environment. Attaching an already attached thread returns the same env.
	AttachCurrentThread() (Env, error)

	// DetachCurrentThread releases the calling thread's attachment.
	DetachCurrentThread() error
}

// Env is a host execution context bound to one OS thread. Every method must
// be called from the thread that obtained the Env.
type Env interface {
	// NewGlobalRef creates a strong reference usable from any thread.
	NewGlobalRef(obj Ref) Ref

	// NewWeakGlobalRef creates a reference that does not keep obj alive.
	NewWeakGlobalRef(obj Ref) Ref

	// NewLocalRef resolves ref to a strong local reference. It returns zero
	// when ref is weak and its referent has been collected.
	NewLocalRef(ref Ref) Ref

	// DeleteRef releases a local, global or weak reference.
	DeleteRef(ref Ref)

	// IsSameObject reports whether a and b denote the same host object.
	IsSameObject(a, b Ref) bool

	// IdentityHashCode returns the host's identity hash for obj. Distinct
	// objects may share a hash.
	IdentityHashCode(obj Ref) int32

	// GetLongField reads a 64-bit field of obj.
	GetLongField(obj Ref, field string) int64

	// SetLongField writes a 64-bit field of obj.
	SetLongField(obj Ref, field string, value int64)
}

// NativeObject is a reference-counted native entity crossing to the host.
type NativeObject interface {
	Address() Address
}
