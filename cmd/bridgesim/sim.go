package main

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/bridge"
	"github.com/wippyai/objbridge/hostsim"
	"github.com/wippyai/objbridge/native"
	"github.com/wippyai/objbridge/typereg"
)

// Triangle has no wrapper constructor and crosses as a plain Shape.
var shapeTags = []string{"Circle", "Square", "Triangle"}

const progressInterval = 100 * time.Millisecond

type listenerProxy struct {
	name string
	host objbridge.Ref
}

func newListenerProxy(global objbridge.Ref) (*listenerProxy, error) {
	return &listenerProxy{name: "Listener", host: global}, nil
}

type report struct {
	Elapsed     time.Duration
	Crossings   int64
	Violations  int64
	Collections int64
	HeapLive    int
	Host        hostsim.Stats
	Bridge      bridge.Stats
	Done        bool
}

func (r report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "elapsed      %s\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "crossings    %d\n", r.Crossings)
	fmt.Fprintf(&b, "violations   %d\n", r.Violations)
	fmt.Fprintf(&b, "collections  %d objects\n", r.Collections)
	fmt.Fprintf(&b, "host         %d created, %d collected, %d live, %d invalid refs\n",
		r.Host.Created, r.Host.Collected, r.Host.Live, r.Host.InvalidRefs)
	fmt.Fprintf(&b, "refs         %d global, %d weak, %d local\n",
		r.Host.GlobalRefs, r.Host.WeakRefs, r.Host.LocalRefs)
	fmt.Fprintf(&b, "bridge       %d proxies, %d wrappers, %d scheduled removals\n",
		r.Bridge.Proxies, r.Bridge.Wrappers, r.Bridge.ScheduledRemovals)
	fmt.Fprintf(&b, "native       %d live objects", r.HeapLive)
	return b.String()
}

// simulation drives native worker threads that pass objects across the
// bridge in both directions while a collector thread runs host collections.
type simulation struct {
	cfg        config
	log        *zap.Logger
	rt         *hostsim.Runtime
	heap       *native.Heap
	types      *typereg.Registry
	bridge     *bridge.Bridge
	listeners  []objbridge.Ref
	crossings  atomic.Int64
	violations atomic.Int64
	collected  atomic.Int64
}

func newSimulation(ctx context.Context, cfg config, log *zap.Logger) (*simulation, error) {
	heap, err := native.New(ctx)
	if err != nil {
		return nil, err
	}

	s := &simulation{
		cfg:   cfg,
		log:   log,
		rt:    hostsim.New(&hostsim.Config{HashModulus: cfg.HashModulus}),
		heap:  heap,
		types: typereg.New(),
	}
	for _, tag := range []string{"Shape", "Circle", "Square"} {
		if err := s.types.Register(tag, wrapperCtor(tag)); err != nil {
			heap.Close(ctx)
			return nil, err
		}
	}

	s.bridge = bridge.New(s.rt, &bridge.Config{
		Logger:            log.Named("bridge"),
		Types:             s.types,
		DisableProxyCache: cfg.DisableProxyCache,
	})
	heap.OnFree(s.destroyed)

	for i := 0; i < cfg.Listeners; i++ {
		s.listeners = append(s.listeners, s.rt.NewObject("Listener", nil))
	}
	return s, nil
}

// wrapperCtor builds a host wrapper holding one reference on the native
// object; the wrapper's finalizer gives it back.
func wrapperCtor(tag string) typereg.Constructor {
	return func(env objbridge.Env, obj objbridge.NativeObject) (objbridge.Ref, error) {
		o, ok := obj.(*native.Object)
		if !ok {
			return 0, fmt.Errorf("unexpected native object %T", obj)
		}
		if err := o.Retain(); err != nil {
			return 0, err
		}
		w := env.(*hostsim.Env).NewObject(tag, func() { o.Release() })
		env.SetLongField(w, objbridge.HandleField, int64(o.Address()))
		return w, nil
	}
}

// destroyed is the native destructor hook.
func (s *simulation) destroyed(addr objbridge.Address) {
	if err := s.types.Unbind(addr); err != nil {
		s.log.Warn("unbind failed", zap.Error(err))
	}
	if err := s.bridge.Remove(addr); err != nil {
		s.log.Warn("wrapper removal failed", zap.Uintptr("addr", uintptr(addr)), zap.Error(err))
	}
}

// run executes the simulation. progress, if set, receives periodic
// snapshots from the collector thread.
func (s *simulation) run(ctx context.Context, progress func(report)) (report, error) {
	start := time.Now()
	s.log.Info("simulation started",
		zap.Int("workers", s.cfg.Workers),
		zap.Int("iterations", s.cfg.Iterations),
		zap.Int("objects", s.cfg.Objects),
		zap.Int32("hash_modulus", s.cfg.HashModulus))

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		s.collect(workCtx, start, progress)
	}()

	results := make([]<-chan error, s.cfg.Workers)
	for w := range results {
		results[w] = s.bridge.Threads().Go(func(env objbridge.Env) error {
			return s.work(workCtx, env, w)
		})
	}
	var err error
	for _, ch := range results {
		err = multierr.Append(err, <-ch)
	}
	cancel()
	<-collectorDone

	s.drain()
	rep := s.snapshot(start, true)
	if progress != nil {
		progress(rep)
	}
	return rep, multierr.Append(err, s.close(context.Background()))
}

func (s *simulation) collect(ctx context.Context, start time.Time, progress func(report)) {
	t := time.NewTicker(s.cfg.GCInterval)
	defer t.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		s.collected.Add(int64(s.rt.GC()))
		if progress != nil && time.Since(last) >= progressInterval {
			last = time.Now()
			progress(s.snapshot(start, false))
		}
	}
}

func (s *simulation) work(ctx context.Context, env objbridge.Env, worker int) error {
	for i := 0; i < s.cfg.Iterations; i++ {
		if ctx.Err() != nil {
			return nil
		}
		for j := 0; j < s.cfg.Objects; j++ {
			if err := s.crossNative(env, shapeTags[(worker+i+j)%len(shapeTags)]); err != nil {
				return err
			}
		}
		listener := s.listeners[(worker*s.cfg.Iterations+i)%len(s.listeners)]
		if err := s.crossHost(env, listener); err != nil {
			return err
		}
	}
	return nil
}

// crossNative passes a fresh native object to the host twice and checks
// both crossings produce the same wrapper.
func (s *simulation) crossNative(env objbridge.Env, tag string) error {
	obj, err := s.heap.Alloc(tag, s.cfg.PayloadSize)
	if err != nil {
		return err
	}
	s.types.Bind(obj.Address(), tag)
	defer obj.Release()

	first, err := s.bridge.AcquireWrapper(env, obj, "Shape")
	if err != nil {
		return err
	}
	defer env.DeleteRef(first)
	second, err := s.bridge.AcquireWrapper(env, obj, "Shape")
	if err != nil {
		return err
	}
	defer env.DeleteRef(second)
	s.crossings.Add(2)

	if !env.IsSameObject(first, second) {
		s.violation("wrapper identity", obj.Address())
	}
	if got := env.GetLongField(first, objbridge.HandleField); got != int64(obj.Address()) {
		s.violation("wrapper handle", obj.Address())
	}
	return nil
}

// crossHost passes a host listener to native code twice and checks the
// proxy and its reverse mapping.
func (s *simulation) crossHost(env objbridge.Env, listener objbridge.Ref) error {
	p, err := bridge.AcquireProxy(s.bridge, env, listener, "Listener", newListenerProxy, true)
	if err != nil {
		return err
	}
	q, err := bridge.AcquireProxy(s.bridge, env, listener, "Listener", newListenerProxy, true)
	if err != nil {
		return err
	}
	s.crossings.Add(2)

	if !env.IsSameObject(p.host, listener) {
		s.violation("proxy host", objbridge.Address(0))
	}
	if !s.cfg.DisableProxyCache {
		if p != q {
			s.violation("proxy identity", objbridge.Address(0))
		}
		if !env.IsSameObject(bridge.ReverseLookup(s.bridge, p), listener) {
			s.violation("reverse lookup", objbridge.Address(0))
		}
	}
	runtime.KeepAlive(p)
	runtime.KeepAlive(q)
	return nil
}

func (s *simulation) violation(what string, addr objbridge.Address) {
	s.violations.Add(1)
	s.log.Error("bridge invariant violated", zap.String("check", what), zap.Uintptr("addr", uintptr(addr)))
}

// drain runs both collectors until every native object and proxy is gone
// or the attempts run out.
func (s *simulation) drain() {
	for i := 0; i < 50; i++ {
		runtime.GC()
		s.collected.Add(int64(s.rt.GC()))
		if s.heap.Live() == 0 && s.bridge.Stats().Proxies == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.log.Warn("objects left after drain",
		zap.Int("native", s.heap.Live()),
		zap.Int("proxies", s.bridge.Stats().Proxies))
}

func (s *simulation) snapshot(start time.Time, done bool) report {
	return report{
		Elapsed:     time.Since(start),
		Crossings:   s.crossings.Load(),
		Violations:  s.violations.Load(),
		Collections: s.collected.Load(),
		HeapLive:    s.heap.Live(),
		Host:        s.rt.Stats(),
		Bridge:      s.bridge.Stats(),
		Done:        done,
	}
}

func (s *simulation) close(ctx context.Context) error {
	for _, l := range s.listeners {
		s.rt.Release(l)
	}
	s.rt.GC()
	return multierr.Combine(s.bridge.Close(), s.heap.Close(ctx))
}
