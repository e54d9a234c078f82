package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to TOML config file")
		workers     = flag.Int("workers", 0, "Number of native worker threads")
		iterations  = flag.Int("iterations", 0, "Iterations per worker")
		objects     = flag.Int("objects", 0, "Native objects per iteration")
		listeners   = flag.Int("listeners", 0, "Shared host listener objects")
		collisions  = flag.Int("hash-modulus", -1, "Fold identity hashes to force collisions (0 disables)")
		noCache     = flag.Bool("no-proxy-cache", false, "Build a fresh proxy on every crossing")
		logLevel    = flag.String("log", "", "Log level (debug, info, warn, error)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags override the file.
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *iterations > 0 {
		cfg.Iterations = *iterations
	}
	if *objects > 0 {
		cfg.Objects = *objects
	}
	if *listeners > 0 {
		cfg.Listeners = *listeners
	}
	modulus, set, err := hashModulusFlag(*collisions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if set {
		cfg.HashModulus = modulus
	}
	if *noCache {
		cfg.DisableProxyCache = true
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := cfg.validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Usage: bridgesim [-config file.toml] [-workers n] [-iterations n] [-objects n] [-i]")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Interactive mode needs a terminal; running in batch mode")
		} else {
			if err := runInteractive(ctx, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	log, err := cfg.logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	sim, err := newSimulation(ctx, cfg, log)
	if err != nil {
		return err
	}
	rep, err := sim.run(ctx, nil)
	if err != nil {
		return err
	}

	log.Info("simulation finished",
		zap.Duration("elapsed", rep.Elapsed),
		zap.Int64("crossings", rep.Crossings),
		zap.Int64("violations", rep.Violations))

	fmt.Println(rep.String())
	if rep.Violations > 0 {
		return fmt.Errorf("%d identity violations", rep.Violations)
	}
	return nil
}
