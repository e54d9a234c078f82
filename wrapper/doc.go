// Package wrapper caches the host wrappers of native objects.
//
// Entries are keyed by native address and hold a weak reference to the host
// wrapper. Two independent events end a wrapper's life in the cache: the
// host collects the wrapper, which the cache only notices when a lookup
// fails to resolve the weak reference, and the native object is destroyed,
// which its destructor reports through Remove.
//
// Native addresses are reused. Between the host collecting a wrapper and the
// native destructor running, a different object may be allocated at the
// same address and get its own wrapper. Each entry therefore counts the
// deaths lookups have detected (scheduled removals). A Remove first settles
// one scheduled removal, and only erases the entry when none is pending, so
// a late destructor call never tears down its successor's wrapper.
//
//	ref := cache.GetOrCreate(env, addr)
//	if ref == 0 {
//	    ref = cache.Insert(env, addr, newWrapper(env, obj))
//	}
//
//	// native destructor
//	cache.Remove(env, addr)
package wrapper
