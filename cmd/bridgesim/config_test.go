package main

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
workers = 2
iterations = 10
gc_interval = "20ms"
hash_modulus = 3
disable_proxy_cache = true
log_level = "debug"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Workers != 2 || cfg.Iterations != 10 {
		t.Fatalf("Unexpected counts: %+v", cfg)
	}
	if cfg.GCInterval != 20*time.Millisecond {
		t.Fatalf("Expected 20ms, got %s", cfg.GCInterval)
	}
	if cfg.HashModulus != 3 || !cfg.DisableProxyCache || cfg.LogLevel != "debug" {
		t.Fatalf("Unexpected config: %+v", cfg)
	}
	// unset keys keep defaults
	if cfg.Objects != defaultConfig().Objects {
		t.Fatalf("Expected default objects, got %d", cfg.Objects)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "workerz = 2\n", "unknown config keys"},
		{"bad syntax", "workers = \n", "decode config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config)
		ok     bool
	}{
		{"defaults", func(*config) {}, true},
		{"no workers", func(c *config) { c.Workers = 0 }, false},
		{"no iterations", func(c *config) { c.Iterations = 0 }, false},
		{"no listeners", func(c *config) { c.Listeners = 0 }, false},
		{"zero interval", func(c *config) { c.GCInterval = 0 }, false},
		{"negative modulus", func(c *config) { c.HashModulus = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			if err := cfg.validate(); (err == nil) != tt.ok {
				t.Fatalf("validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestHashModulusFlag(t *testing.T) {
	maxInt32 := math.MaxInt32
	tests := []struct {
		name string
		in   int
		want int32
		set  bool
		ok   bool
	}{
		{"unset", -1, 0, false, true},
		{"disabled", 0, 0, true, true},
		{"small", 3, 3, true, true},
		{"largest", math.MaxInt32, math.MaxInt32, true, true},
		{"wraps to zero", (maxInt32 + 1) * 2, 0, false, false},
		{"wraps negative", maxInt32 + 1, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.ok && strconv.IntSize == 32 {
				t.Skip("int cannot exceed the int32 range")
			}
			got, set, err := hashModulusFlag(tt.in)
			if (err == nil) != tt.ok {
				t.Fatalf("hashModulusFlag(%d) error = %v, want ok=%v", tt.in, err, tt.ok)
			}
			if got != tt.want || set != tt.set {
				t.Fatalf("Expected (%d, %v), got (%d, %v)", tt.want, tt.set, got, set)
			}
		})
	}
}

func TestConfig_Logger(t *testing.T) {
	cfg := defaultConfig()
	cfg.LogLevel = "loud"
	if _, err := cfg.logger(); err == nil {
		t.Fatal("Expected error for unknown level")
	}
}
