// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"strings"
	"testing"

	"github.com/spool-works/spool/lib/codec"
)

func TestTraceIDTextRoundTrip(t *testing.T) {
	id := TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}

	text, err := id.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(text) != "0102030405060708090a0b0c0d0e0f10" {
		t.Fatalf("unexpected text encoding: %s", text)
	}

	var decoded TraceID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if decoded != id {
		t.Fatalf("round trip mismatch: %v != %v", decoded, id)
	}
}

func TestTraceIDCBORIsCompact(t *testing.T) {
	id := TraceID{0xff, 0xee}

	data, err := codec.Marshal(id)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	// Byte string header (1 byte) plus 16 payload bytes.
	if len(data) != 17 {
		t.Fatalf("expected 17-byte CBOR encoding, got %d bytes", len(data))
	}

	var decoded TraceID
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != id {
		t.Fatalf("round trip mismatch: %v != %v", decoded, id)
	}
}

func TestSpanIDRejectsWrongLength(t *testing.T) {
	var id SpanID
	err := id.UnmarshalText([]byte("0102"))
	if err == nil {
		t.Fatal("expected error for short hex input")
	}
	if !strings.Contains(err.Error(), "expected 8 bytes") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestItemValidate(t *testing.T) {
	segment := &Segment{Service: "shop", Instance: "web-1", Spans: []Span{{Operation: "GET /"}}}

	valid := Item{Kind: KindSegment, Segment: segment}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid item rejected: %v", err)
	}

	missing := Item{Kind: KindMetrics}
	if err := missing.Validate(); err == nil {
		t.Fatal("expected error for missing payload")
	}

	mismatched := Item{Kind: KindSegment, Segment: segment, Metrics: &MetricBatch{}}
	if err := mismatched.Validate(); err == nil {
		t.Fatal("expected error for extra payload")
	}

	invalid := Item{Kind: KindInvalid}
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected error for invalid kind")
	}

	anonymous := Item{Kind: KindSegment, Segment: &Segment{Spans: []Span{{Operation: "GET /"}}}}
	if err := anonymous.Validate(); err == nil {
		t.Fatal("expected error for missing service identity")
	}
}

func TestItemKindString(t *testing.T) {
	if got := KindSegment.String(); got != "segment" {
		t.Fatalf("expected %q, got %q", "segment", got)
	}
	if got := ItemKind(99).String(); got != "invalid(99)" {
		t.Fatalf("expected %q, got %q", "invalid(99)", got)
	}
}

func TestAnnouncementCBORRoundTrip(t *testing.T) {
	announcement := Announcement{
		Service:  "shop",
		Instance: "web-1",
		Language: "php",
		Properties: map[string]string{
			PropertyOSName:    "linux",
			PropertyProcessNo: "4242",
		},
	}

	data, err := codec.Marshal(Item{Kind: KindProperties, Announcement: &announcement})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Item
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Kind != KindProperties {
		t.Fatalf("expected kind %v, got %v", KindProperties, decoded.Kind)
	}
	if decoded.Announcement == nil {
		t.Fatal("announcement payload lost in round trip")
	}
	if decoded.Announcement.Properties[PropertyProcessNo] != "4242" {
		t.Fatalf("expected process_no 4242, got %q", decoded.Announcement.Properties[PropertyProcessNo])
	}
}
