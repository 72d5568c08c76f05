// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/spool-works/spool/lib/client"
	"github.com/spool-works/spool/lib/telemetry"
	"github.com/spool-works/spool/lib/wire"
)

func TestEmitterRejectsUnknownKind(t *testing.T) {
	if _, err := emitter("propaganda", "svc", "inst"); err == nil {
		t.Fatal("expected unknown kind to be rejected")
	}
}

func TestSyntheticItemsValidate(t *testing.T) {
	items := []telemetry.Item{
		{Kind: telemetry.KindSegment, Segment: syntheticSegment("svc", "inst", 0)},
		{Kind: telemetry.KindMetrics, Metrics: syntheticMetrics("svc", "inst", 0)},
		{Kind: telemetry.KindLogs, Logs: syntheticLogs("svc", "inst", 0)},
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			t.Errorf("%s: %v", item.Kind, err)
		}
	}
}

func TestSyntheticSegmentShape(t *testing.T) {
	seg := syntheticSegment("svc", "inst", 3)
	if seg.TraceID.IsZero() {
		t.Error("expected a random trace id")
	}
	if len(seg.Spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(seg.Spans))
	}
	for _, span := range seg.Spans {
		if span.EndTime < span.StartTime {
			t.Errorf("span %s ends before it starts", span.Operation)
		}
	}
	// The database span parents to the request span.
	if seg.Spans[0].ParentSpanID != seg.Spans[1].SpanID {
		t.Error("child span does not parent to the root span")
	}
	if !seg.Spans[1].ParentSpanID.IsZero() {
		t.Error("root span has a parent")
	}
}

func TestSyntheticSegmentsGetDistinctIDs(t *testing.T) {
	a := syntheticSegment("svc", "inst", 0)
	b := syntheticSegment("svc", "inst", 1)
	if a.TraceID == b.TraceID {
		t.Error("two segments share a trace id")
	}
}

func TestEmitAgainstSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "test.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	items := make(chan telemetry.Item, 8)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			item, err := wire.ReadItem(conn)
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					t.Errorf("reading item: %v", err)
				}
				close(items)
				return
			}
			items <- item
		}
	}()

	cl, err := client.Dial(socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	emit, err := emitter("segment", "svc", "inst")
	if err != nil {
		t.Fatalf("emitter: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := emit(cl, i); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}
	cl.Close()

	received := 0
	timeout := time.After(5 * time.Second)
	for {
		select {
		case item, ok := <-items:
			if !ok {
				if received != 3 {
					t.Fatalf("received %d items, want 3", received)
				}
				return
			}
			received++
			if item.Kind != telemetry.KindSegment {
				t.Errorf("item kind = %s, want segment", item.Kind)
			}
			if item.Segment.Service != "svc" {
				t.Errorf("service = %q, want svc", item.Segment.Service)
			}
		case <-timeout:
			t.Fatalf("timed out after %d items", received)
		}
	}
}
