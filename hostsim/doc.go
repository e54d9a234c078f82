// Package hostsim simulates a garbage-collected host runtime.
//
// Runtime implements objbridge.Host with the properties the bridge has to
// cope with: identity hashes that collide, reference values that are reused
// after deletion, and a collector whose only visible effect on the native
// side is that weak references stop resolving.
//
//	rt := hostsim.New(&hostsim.Config{HashModulus: 4})
//
//	obj := rt.NewObject("Listener", nil) // held by host code
//	rt.Release(obj)                      // host code drops it
//	rt.Collect()                         // weak refs to obj now resolve to zero
//	rt.RunFinalizers()                   // finalizer thread catches up
//
// Reachability is reference counting over local and global references;
// objects do not reference each other. Stats exposes attach, collection and
// reference counters for assertions.
package hostsim
