// Package proxy caches the native proxies that stand in for host objects.
//
// When host code passes an object implementing a native capability
// interface into the engine, the engine wraps it in a proxy. GetOrCreate
// keeps that mapping one to one: while a proxy for a host object and type
// tag is reachable from native code, every call returns that same proxy.
//
//	p, err := proxy.GetOrCreate(cache, env, listener, "Listener",
//	    func(global objbridge.Ref) (*listenerProxy, error) {
//	        return &listenerProxy{host: global}, nil
//	    }, true)
//
// # Identity
//
// Entries are keyed by the host's identity hash and the type tag. Hashes
// collide, so every candidate is confirmed with Env.IsSameObject under the
// cache mutex.
//
// # Lifetime
//
// The cache holds proxies through weak pointers and attaches a runtime
// cleanup to each proxy it builds. When native code drops the last
// reference, the cleanup removes that proxy's entry (never a newer entry for
// the same object), unregisters it from the Reverse lookup and deletes the
// global reference the proxy owned.
//
// # Locking
//
// Factories run with the cache mutex held. A factory, or a host identity
// hook, that calls back into the cache deadlocks.
package proxy
