// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"runtime"

	"github.com/spool-works/spool/lib/clock"
	"github.com/spool-works/spool/lib/config"
	"github.com/spool-works/spool/lib/pidlock"
	"github.com/spool-works/spool/lib/relay"
	"github.com/spool-works/spool/lib/reporter"
	"github.com/spool-works/spool/lib/reporter/otlp"
)

// runDaemon assembles and runs the daemon until ctx is cancelled or
// the reporter fails. The reporter runs in the foreground: its return
// is the daemon's exit, so a dead collector shows up as a dead daemon
// rather than silent loss.
func runDaemon(ctx context.Context, cfg *config.Config) error {
	logger, closeLogger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLogger()

	if cfg.Runtime.Workers > 0 {
		runtime.GOMAXPROCS(cfg.Runtime.Workers)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := cfg.EnsureRuntimeDir(); err != nil {
		return err
	}

	lock, err := pidlock.Acquire(cfg.LockPath())
	if err != nil {
		return err
	}
	defer lock.Release()

	// Remove the socket file on every exit path from here on,
	// startup failures included. Runs before the lock is released,
	// so a daemon starting up concurrently cannot lose its socket
	// to ours.
	socketPath := cfg.SocketPath()
	socketCreated := false
	defer func() {
		if !socketCreated {
			logger.Warn("socket file never created")
			return
		}
		logger.Info("removing socket file", "path", socketPath)
		if err := os.Remove(socketPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Error("removing socket file failed", "error", err)
		}
	}()

	// The pid lock proved no other daemon is alive, so a socket file
	// here is leftover from an unclean shutdown.
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale socket %s: %w", socketPath, err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	socketCreated = true

	// Producers run as arbitrary users; the socket must admit all of
	// them.
	if err := os.Chmod(socketPath, 0o777); err != nil {
		listener.Close()
		return fmt.Errorf("chmod socket %s: %w", socketPath, err)
	}

	exporter, err := otlp.New(otlp.Config{
		Endpoint:       cfg.Server.Address,
		Protocol:       otlp.Protocol(cfg.Server.Protocol),
		Timeout:        cfg.Server.Timeout.Std(),
		Authentication: cfg.Server.Authentication,
		Compression:    reporter.Compression(cfg.Server.Compression),
		TLS: otlp.TLSConfig{
			Enable:   cfg.Server.TLS.Enable,
			CAPath:   cfg.Server.TLS.CAPath,
			CertPath: cfg.Server.TLS.CertPath,
			KeyPath:  cfg.Server.TLS.KeyPath,
		},
	})
	if err != nil {
		listener.Close()
		return fmt.Errorf("creating exporter: %w", err)
	}

	queue := relay.NewQueue(cfg.Runtime.QueueCapacity)

	server := &server{
		listener: listener,
		queue:    queue,
		logger:   logger,
	}
	serverDone := make(chan struct{})
	go func() {
		server.serve(ctx)
		close(serverDone)
	}()

	announcer := &announcer{
		service:  cfg.Service.Name,
		instance: cfg.Service.Instance,
		language: cfg.Service.Language,
		interval: cfg.Heartbeat.Interval.Std(),
		factor:   cfg.Heartbeat.ReportFactor,
		queue:    queue,
		clock:    clock.Real(),
		logger:   logger,
	}
	announcerDone := make(chan struct{})
	go func() {
		announcer.run(ctx)
		close(announcerDone)
	}()

	logger.Info("spoold running",
		"socket", socketPath,
		"endpoint", cfg.Server.Address,
		"protocol", cfg.Server.Protocol,
		"service", cfg.Service.Name,
		"instance", cfg.Service.Instance,
		"queue_capacity", cfg.Runtime.QueueCapacity,
		"heartbeat_interval", cfg.Heartbeat.Interval.Std(),
	)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
	}()

	runErr := reporter.Run(ctx, queue, exporter, logger)

	// Wind down intake: stop the announcer and the socket server,
	// then close the queue so nothing else can be enqueued.
	cancel()
	<-serverDone
	<-announcerDone
	queue.Close()

	if err := exporter.Close(); err != nil {
		logger.Warn("closing exporter", "error", err)
	}

	logger.Info("spoold stopped", "dropped_total", queue.Dropped())
	return runErr
}

// newLogger builds the daemon logger from the log configuration. An
// empty file means stderr, which a daemonized process discards; units
// that need logs on disk set log.file.
func newLogger(cfg config.LogConfig) (*slog.Logger, func(), error) {
	output := os.Stderr
	closeLogger := func() {}
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		output = file
		closeLogger = func() { file.Close() }
	}

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	return logger, closeLogger, nil
}
