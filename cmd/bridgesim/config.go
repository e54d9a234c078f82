package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type config struct {
	Workers           int           `toml:"workers"`
	Iterations        int           `toml:"iterations"`
	Objects           int           `toml:"objects"`
	Listeners         int           `toml:"listeners"`
	PayloadSize       uint32        `toml:"payload_size"`
	GCInterval        time.Duration `toml:"gc_interval"`
	HashModulus       int32         `toml:"hash_modulus"`
	DisableProxyCache bool          `toml:"disable_proxy_cache"`
	LogLevel          string        `toml:"log_level"`
}

func defaultConfig() config {
	return config{
		Workers:     4,
		Iterations:  200,
		Objects:     8,
		Listeners:   16,
		PayloadSize: 24,
		GCInterval:  5 * time.Millisecond,
		LogLevel:    "info",
	}
}

// loadConfig reads a TOML file over the defaults. Unknown keys are errors.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

func (c config) validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.Iterations < 1:
		return fmt.Errorf("iterations must be positive, got %d", c.Iterations)
	case c.Objects < 1:
		return fmt.Errorf("objects must be positive, got %d", c.Objects)
	case c.Listeners < 1:
		return fmt.Errorf("listeners must be positive, got %d", c.Listeners)
	case c.GCInterval <= 0:
		return fmt.Errorf("gc_interval must be positive, got %s", c.GCInterval)
	case c.HashModulus < 0:
		return fmt.Errorf("hash_modulus must not be negative, got %d", c.HashModulus)
	}
	return nil
}

// hashModulusFlag converts the -hash-modulus flag. Negative values leave the
// configured modulus alone.
func hashModulusFlag(v int) (int32, bool, error) {
	switch {
	case v < 0:
		return 0, false, nil
	case v > math.MaxInt32:
		return 0, false, fmt.Errorf("hash-modulus must be at most %d, got %d", math.MaxInt32, v)
	}
	return int32(v), true, nil
}

func (c config) logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	return zc.Build()
}
