// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the producer-side library for handing telemetry to
// a local spool daemon. Instrumented processes such as application
// servers, job runners, and sidecars use it to push finished segments,
// metric batches, and log batches over the daemon's Unix socket.
//
// The protocol is one-way: the daemon never replies, so a report
// returning nil means "handed off", not "exported". Delivery beyond
// the daemon is the daemon's problem.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/spool-works/spool/lib/telemetry"
	"github.com/spool-works/spool/lib/wire"
)

// DialTimeout bounds the socket connect. A daemon that cannot accept
// within this window is treated as absent.
const DialTimeout = 5 * time.Second

// Client is a connection to a spool daemon. A producer typically
// creates one at startup and reuses it for its lifetime; methods are
// safe for concurrent use.
type Client struct {
	// mutex serializes writes so frames from concurrent reporters
	// never interleave on the wire.
	mutex sync.Mutex
	conn  net.Conn
}

// Dial connects to the daemon socket at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial spool daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// ReportSegment sends a finished trace segment.
func (client *Client) ReportSegment(segment *telemetry.Segment) error {
	return client.send("segment", telemetry.Item{
		Kind:    telemetry.KindSegment,
		Segment: segment,
	})
}

// ReportMetrics sends a batch of metric points.
func (client *Client) ReportMetrics(batch *telemetry.MetricBatch) error {
	return client.send("metrics", telemetry.Item{
		Kind:    telemetry.KindMetrics,
		Metrics: batch,
	})
}

// ReportLogs sends a batch of log records.
func (client *Client) ReportLogs(batch *telemetry.LogBatch) error {
	return client.send("logs", telemetry.Item{
		Kind: telemetry.KindLogs,
		Logs: batch,
	})
}

// Ping sends a keep-alive announcement carrying the producer's
// identity.
func (client *Client) Ping(announcement *telemetry.Announcement) error {
	return client.send("ping", telemetry.Item{
		Kind:         telemetry.KindPing,
		Announcement: announcement,
	})
}

// Announce sends a full property announcement.
func (client *Client) Announce(announcement *telemetry.Announcement) error {
	return client.send("announcement", telemetry.Item{
		Kind:         telemetry.KindProperties,
		Announcement: announcement,
	})
}

func (client *Client) send(what string, item telemetry.Item) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	if err := wire.WriteItem(client.conn, item); err != nil {
		return fmt.Errorf("report %s: %w", what, err)
	}
	return nil
}

// Close closes the daemon connection. Reports after Close fail.
func (client *Client) Close() error {
	return client.conn.Close()
}
