// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/spool-works/spool/lib/relay"
	"github.com/spool-works/spool/lib/wire"
)

// server accepts producer connections on the unix socket and feeds
// decoded items into the relay queue. The protocol is one-way:
// nothing is ever written back, and producers hanging up is the
// normal end of a stream.
type server struct {
	listener net.Listener
	queue    *relay.Queue
	logger   *slog.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	nextID uint64

	activeConnections sync.WaitGroup
}

// serve accepts connections until ctx is cancelled and returns once
// every connection handler has finished. Producer streams are
// long-lived, so shutdown closes them directly instead of waiting
// for producers to hang up.
func (s *server) serve(ctx context.Context) {
	s.mu.Lock()
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	// Unblock Accept and the connection read loops when the context
	// is cancelled.
	go func() {
		<-ctx.Done()
		s.listener.Close()
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.nextID++
		logger := s.logger.With("connection", s.nextID)
		s.mu.Unlock()

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handle(conn, logger)
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}

	s.activeConnections.Wait()
}

// handle drains one producer stream frame by frame until the
// connection ends.
func (s *server) handle(conn net.Conn, logger *slog.Logger) {
	defer conn.Close()

	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				// Producer hung up cleanly, or shutdown closed
				// the connection under us.
			case errors.Is(err, io.ErrUnexpectedEOF):
				// Producer died mid-frame. Everything before
				// this frame was already enqueued.
				logger.Debug("connection ended mid-frame")
			default:
				// The stream has no resynchronization point, so
				// a framing error poisons everything after it.
				logger.Error("reading frame", "error", err)
			}
			return
		}

		item, err := wire.DecodeFrame(frame)
		if err != nil {
			// The frame boundary held, so the stream is still
			// aligned; skip the bad frame and keep reading.
			logger.Error("decoding frame", "error", err)
			continue
		}

		switch s.queue.TryEnqueue(item) {
		case relay.Enqueued:
		case relay.Dropped:
			logger.Warn("queue full, dropping item",
				"kind", item.Kind,
				"dropped_total", s.queue.Dropped(),
			)
		case relay.Closed:
			return
		}
	}
}
