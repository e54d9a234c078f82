// Package bridge ties the thread registry, type registry and both identity
// caches together for one host runtime.
//
// Generated marshalling code calls into a Bridge at every crossing:
//
//	b := bridge.New(host, &bridge.Config{Logger: logger})
//	defer b.Close()
//
//	err := b.Do(func(env objbridge.Env) error {
//	    ref, err := b.AcquireWrapper(env, shape, "Shape")
//	    if err != nil {
//	        return err
//	    }
//	    p, err := bridge.AcquireProxy(b, env, listener, "Listener", newListenerProxy, true)
//	    ...
//	})
//
// Native destructors report freed objects with Remove, which may run on any
// thread. Objects that know their concrete type bind it in Types before
// their first crossing so AcquireWrapper can build the most derived wrapper.
package bridge
