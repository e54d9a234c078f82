// Package objbridge keeps native objects and host objects paired one to one
// across a native/host runtime boundary.
//
// A native engine embedded in a garbage-collected host hands objects across
// the boundary in both directions. Each crossing object needs exactly one
// live counterpart on the other side for as long as either side uses it. The
// two sides free objects independently: the native side when a reference
// count drops to zero, the host side when its collector runs. The native side
// only learns about host collections by failing to resolve a weak reference.
//
// # Architecture Overview
//
//	objbridge/           Root package with the host collaborator contract
//	├── threadenv/       Per-thread host environment attachment
//	├── typereg/         Type tag registry for polymorphic native objects
//	├── proxy/           Host->native proxy cache and reverse lookup
//	├── wrapper/         Native->host wrapper cache with scheduled removals
//	├── bridge/          Facade owning the caches and registries
//	├── errors/          Structured error types
//	├── hostsim/         Simulated collected host runtime
//	├── native/          Reference-counted native heap in wasm linear memory
//	└── cmd/bridgesim/   Stress simulator
//
// # Quick Start
//
//	b := bridge.New(host, nil)
//	defer b.Close()
//
//	err := b.Do(func(env objbridge.Env) error {
//	    // native -> host
//	    ref, err := b.AcquireWrapper(env, layer, "Layer")
//	    if err != nil {
//	        return err
//	    }
//	    defer env.DeleteRef(ref)
//
//	    // host -> native
//	    p, err := bridge.AcquireProxy(b, env, listener, "Listener",
//	        func(global objbridge.Ref) (*listenerProxy, error) {
//	            return &listenerProxy{host: global}, nil
//	        }, true)
//	    ...
//	})
//
//	// from the native destructor
//	b.Remove(layer.Address())
//
// # Locking
//
// The proxy cache runs proxy construction and host identity comparison under
// one mutex. A factory or host identity hook that re-enters the proxy cache
// deadlocks. A host call that stalls while the mutex is held stalls every
// proxy cache user.
package objbridge
