package main

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSimulation_Run(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config)
	}{
		{"defaults", func(*config) {}},
		{"hash collisions", func(c *config) { c.HashModulus = 2 }},
		{"proxy cache disabled", func(c *config) { c.DisableProxyCache = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Workers = 3
			cfg.Iterations = 20
			cfg.Objects = 4
			cfg.Listeners = 4
			cfg.GCInterval = time.Millisecond
			tt.mutate(&cfg)

			ctx := context.Background()
			sim, err := newSimulation(ctx, cfg, zap.NewNop())
			if err != nil {
				t.Fatalf("newSimulation failed: %v", err)
			}

			var snapshots int
			rep, err := sim.run(ctx, func(report) { snapshots++ })
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if rep.Violations != 0 {
				t.Fatalf("Expected no violations, got %d", rep.Violations)
			}
			want := int64(cfg.Workers * cfg.Iterations * (cfg.Objects*2 + 2))
			if rep.Crossings != want {
				t.Fatalf("Expected %d crossings, got %d", want, rep.Crossings)
			}
			if rep.HeapLive != 0 {
				t.Fatalf("Expected every native object freed, got %d", rep.HeapLive)
			}
			if rep.Host.InvalidRefs != 0 {
				t.Fatalf("Expected no invalid host refs, got %d", rep.Host.InvalidRefs)
			}
			if !rep.Done || snapshots == 0 {
				t.Fatal("Expected a final snapshot")
			}
		})
	}
}

func TestSimulation_Cancel(t *testing.T) {
	cfg := defaultConfig()
	cfg.Iterations = 1 << 20

	ctx, cancel := context.WithCancel(context.Background())
	sim, err := newSimulation(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("newSimulation failed: %v", err)
	}

	time.AfterFunc(50*time.Millisecond, cancel)
	rep, err := sim.run(ctx, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if rep.Crossings >= int64(cfg.Workers*cfg.Iterations) {
		t.Fatal("Expected cancellation to stop the workers early")
	}
}
