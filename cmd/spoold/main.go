// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spool-works/spool/lib/config"
	"github.com/spool-works/spool/lib/process"
	"github.com/spool-works/spool/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "",
		"path to the YAML configuration file (overrides SPOOL_CONFIG)")
	foreground := flag.Bool("foreground", false,
		"stay attached to the terminal instead of daemonizing")
	showVersion := flag.Bool("version", false,
		"print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("spoold %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Unless asked to stay in the foreground, re-execute detached
	// and let the child do the real work.
	if !*foreground && !process.Detached() {
		pid, err := process.SpawnDetached(os.Args[1:])
		if err != nil {
			return fmt.Errorf("daemonize: %w", err)
		}
		fmt.Printf("spoold started (pid %d)\n", pid)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runDaemon(ctx, cfg)
}
