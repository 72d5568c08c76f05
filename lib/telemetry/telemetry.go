// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry defines the data types that flow from producer
// processes through the spool daemon to the upstream backend: trace
// segments, metric batches, log batches, and instance announcements.
// One Item is one unit of collection; it is decoded from a single
// wire frame and travels the relay queue unchanged.
package telemetry

import (
	"encoding/hex"
	"fmt"

	"github.com/spool-works/spool/lib/codec"
)

// TraceID is a 16-byte globally unique trace identifier. It correlates
// spans across the short-lived producer processes that contribute to a
// single distributed operation.
//
// Encoding: text uses 32-character lowercase hex (via
// encoding.TextMarshaler). CBOR uses a 16-byte binary string (via
// cbor.Marshaler), saving 17 bytes per ID compared to hex text.
type TraceID [16]byte

// MarshalText implements encoding.TextMarshaler. Returns a
// 32-character lowercase hex string. A zero-value TraceID marshals as
// all zeros.
func (id TraceID) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(id[:])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Parses a
// 32-character hex string into a TraceID.
func (id *TraceID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = TraceID{}
		return nil
	}
	decoded, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("invalid TraceID hex: %w", err)
	}
	if len(decoded) != 16 {
		return fmt.Errorf("invalid TraceID: expected 16 bytes, got %d", len(decoded))
	}
	copy(id[:], decoded)
	return nil
}

// MarshalCBOR implements cbor.Marshaler. Encodes as a CBOR byte
// string (major type 2) containing the raw 16 bytes.
func (id TraceID) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(id[:])
}

// UnmarshalCBOR implements cbor.Unmarshaler. Decodes a CBOR byte
// string into the 16-byte array.
func (id *TraceID) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := codec.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid TraceID CBOR: %w", err)
	}
	if len(raw) != 16 {
		return fmt.Errorf("invalid TraceID: expected 16 bytes, got %d", len(raw))
	}
	copy(id[:], raw)
	return nil
}

// IsZero reports whether this is an uninitialized zero-value TraceID.
func (id TraceID) IsZero() bool { return id == TraceID{} }

// String returns the 32-character lowercase hex representation.
func (id TraceID) String() string { return hex.EncodeToString(id[:]) }

// SpanID is an 8-byte span identifier, unique within a trace.
type SpanID [8]byte

// MarshalText implements encoding.TextMarshaler. Returns a
// 16-character lowercase hex string.
func (id SpanID) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(id[:])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Parses a
// 16-character hex string into a SpanID.
func (id *SpanID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = SpanID{}
		return nil
	}
	decoded, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("invalid SpanID hex: %w", err)
	}
	if len(decoded) != 8 {
		return fmt.Errorf("invalid SpanID: expected 8 bytes, got %d", len(decoded))
	}
	copy(id[:], decoded)
	return nil
}

// MarshalCBOR implements cbor.Marshaler. Encodes as a CBOR byte
// string containing the raw 8 bytes.
func (id SpanID) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(id[:])
}

// UnmarshalCBOR implements cbor.Unmarshaler. Decodes a CBOR byte
// string into the 8-byte array.
func (id *SpanID) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := codec.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid SpanID CBOR: %w", err)
	}
	if len(raw) != 8 {
		return fmt.Errorf("invalid SpanID: expected 8 bytes, got %d", len(raw))
	}
	copy(id[:], raw)
	return nil
}

// IsZero reports whether this is an uninitialized zero-value SpanID.
func (id SpanID) IsZero() bool { return id == SpanID{} }

// String returns the 16-character lowercase hex representation.
func (id SpanID) String() string { return hex.EncodeToString(id[:]) }

// SpanKind classifies a span's role in the operation, mirroring the
// OpenTelemetry span kinds.
type SpanKind uint8

const (
	// SpanKindInternal is an operation internal to the producer.
	SpanKindInternal SpanKind = 0
	// SpanKindServer is the handling of an inbound request.
	SpanKindServer SpanKind = 1
	// SpanKindClient is an outbound call to another component.
	SpanKindClient SpanKind = 2
	// SpanKindProducer is the enqueueing of asynchronous work.
	SpanKindProducer SpanKind = 3
	// SpanKindConsumer is the handling of asynchronous work.
	SpanKindConsumer SpanKind = 4
)

// SpanStatus indicates the outcome of a span's operation.
type SpanStatus uint8

const (
	// SpanStatusUnset means the instrumentation did not record an
	// outcome.
	SpanStatusUnset SpanStatus = 0
	// SpanStatusOK means the operation completed successfully.
	SpanStatusOK SpanStatus = 1
	// SpanStatusError means the operation failed; StatusMessage
	// should describe the failure.
	SpanStatusError SpanStatus = 2
)

// Severity constants for log records, following the OpenTelemetry
// severity numbering. Each named level is the minimum of its range:
// TRACE=1-4, DEBUG=5-8, INFO=9-12, WARN=13-16, ERROR=17-20,
// FATAL=21-24.
const (
	SeverityTrace uint8 = 1
	SeverityDebug uint8 = 5
	SeverityInfo  uint8 = 9
	SeverityWarn  uint8 = 13
	SeverityError uint8 = 17
	SeverityFatal uint8 = 21
)

// Span is one unit of work recorded by a producer. Spans within a
// segment share the producer's process lifetime; the TraceID connects
// segments from different processes into one distributed trace.
type Span struct {
	// SpanID uniquely identifies this span within its trace.
	SpanID SpanID `cbor:"span_id"`

	// ParentSpanID identifies this span's parent. Zero for root
	// spans.
	ParentSpanID SpanID `cbor:"parent_span_id,omitempty"`

	// Operation names the work this span represents
	// ("GET /checkout", "mysql.query", "redis.get").
	Operation string `cbor:"operation"`

	// StartTime and EndTime bound the operation, as Unix nanoseconds.
	StartTime int64 `cbor:"start_time"`
	EndTime   int64 `cbor:"end_time"`

	// Kind classifies the span's role (internal, server, client,
	// producer, consumer).
	Kind SpanKind `cbor:"kind,omitempty"`

	// Peer is the remote address for client-kind spans
	// ("10.0.3.7:3306"). Empty otherwise.
	Peer string `cbor:"peer,omitempty"`

	// Status is the recorded outcome; StatusMessage describes the
	// error when Status is SpanStatusError.
	Status        SpanStatus `cbor:"status,omitempty"`
	StatusMessage string     `cbor:"status_message,omitempty"`

	// Tags are operation-specific key-value pairs
	// ("http.method": "POST", "db.statement": "SELECT ...").
	Tags map[string]string `cbor:"tags,omitempty"`
}

// Segment is the portion of a distributed trace produced by one
// process: every span the producer recorded for one traced request.
type Segment struct {
	// Service is the logical service the producer belongs to.
	Service string `cbor:"service"`

	// Instance identifies the reporting service instance.
	Instance string `cbor:"instance"`

	// TraceID is shared by every segment of the distributed trace.
	TraceID TraceID `cbor:"trace_id"`

	// Spans are the spans recorded in this segment, in completion
	// order.
	Spans []Span `cbor:"spans"`
}

// MetricPoint is a single gauge observation at a point in time.
type MetricPoint struct {
	// Name is the metric name ("process.heap_bytes",
	// "request.duration_ms").
	Name string `cbor:"name"`

	// Labels qualify the observation ("endpoint": "/checkout").
	Labels map[string]string `cbor:"labels,omitempty"`

	// Value is the observed value.
	Value float64 `cbor:"value"`

	// Time is the observation time, as Unix nanoseconds.
	Time int64 `cbor:"time"`
}

// MetricBatch is the set of metric points a producer reports in one
// frame.
type MetricBatch struct {
	Service  string        `cbor:"service"`
	Instance string        `cbor:"instance"`
	Points   []MetricPoint `cbor:"points"`
}

// LogRecord is one log line captured by a producer.
type LogRecord struct {
	// Time is when the record was emitted, as Unix nanoseconds.
	Time int64 `cbor:"time"`

	// Severity uses the OpenTelemetry numbering (see the Severity
	// constants).
	Severity uint8 `cbor:"severity"`

	// Body is the log message.
	Body string `cbor:"body"`

	// TraceID correlates the record with a trace when the producer
	// was inside a traced request. Zero when uncorrelated.
	TraceID TraceID `cbor:"trace_id,omitempty"`

	// Attributes are record-specific key-value pairs.
	Attributes map[string]string `cbor:"attributes,omitempty"`
}

// LogBatch is the set of log records a producer reports in one frame.
type LogBatch struct {
	Service  string      `cbor:"service"`
	Instance string      `cbor:"instance"`
	Records  []LogRecord `cbor:"records"`
}

// Announcement is the daemon's periodic registration event. A full
// properties report (KindProperties) carries the complete property
// set; a keep-alive ping (KindPing) carries identity only, though the
// announcer rebuilds Properties fresh either way.
type Announcement struct {
	// Service and Instance identify the registration being kept
	// alive.
	Service  string `cbor:"service"`
	Instance string `cbor:"instance"`

	// Language is the producer runtime's language tag.
	Language string `cbor:"language,omitempty"`

	// Properties are the instance properties: OS name, hostname,
	// IPv4 addresses, parent process id. Rebuilt live on every
	// heartbeat tick, never cached.
	Properties map[string]string `cbor:"properties,omitempty"`
}

// Well-known property keys used in Announcement.Properties.
const (
	PropertyOSName    = "os_name"
	PropertyHostname  = "hostname"
	PropertyKernel    = "kernel"
	PropertyIPv4      = "ipv4"
	PropertyLanguage  = "language"
	PropertyProcessNo = "process_no"
)

// ItemKind discriminates the payload of an Item.
type ItemKind uint8

const (
	// KindInvalid is the zero value; no valid Item carries it.
	KindInvalid ItemKind = 0
	// KindSegment is one trace segment batch.
	KindSegment ItemKind = 1
	// KindMetrics is one metric batch.
	KindMetrics ItemKind = 2
	// KindLogs is one log batch.
	KindLogs ItemKind = 3
	// KindPing is a keep-alive announcement.
	KindPing ItemKind = 4
	// KindProperties is a full instance properties report.
	KindProperties ItemKind = 5
)

// String returns the kind's wire name, for logging.
func (k ItemKind) String() string {
	switch k {
	case KindSegment:
		return "segment"
	case KindMetrics:
		return "metrics"
	case KindLogs:
		return "logs"
	case KindPing:
		return "ping"
	case KindProperties:
		return "properties"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(k))
	}
}

// Item is one decoded unit of collection: exactly one payload field is
// set, matching Kind. Items are created by decoding one wire frame (or
// by the announcer), handed to the relay queue, and consumed once by
// the upstream sink.
type Item struct {
	Kind         ItemKind      `cbor:"kind"`
	Segment      *Segment      `cbor:"segment,omitempty"`
	Metrics      *MetricBatch  `cbor:"metrics,omitempty"`
	Logs         *LogBatch     `cbor:"logs,omitempty"`
	Announcement *Announcement `cbor:"announcement,omitempty"`
}

// Validate checks that the Item's payload matches its Kind and names
// the reporting service and instance. Producers validate before
// encoding; the daemon trusts decoded frames.
func (i Item) Validate() error {
	var want, got string
	switch i.Kind {
	case KindSegment:
		want = "segment"
		if i.Segment == nil {
			return fmt.Errorf("item kind %s: missing %s payload", i.Kind, want)
		}
	case KindMetrics:
		want = "metrics"
		if i.Metrics == nil {
			return fmt.Errorf("item kind %s: missing %s payload", i.Kind, want)
		}
	case KindLogs:
		want = "logs"
		if i.Logs == nil {
			return fmt.Errorf("item kind %s: missing %s payload", i.Kind, want)
		}
	case KindPing, KindProperties:
		want = "announcement"
		if i.Announcement == nil {
			return fmt.Errorf("item kind %s: missing %s payload", i.Kind, want)
		}
	default:
		return fmt.Errorf("invalid item kind %d", uint8(i.Kind))
	}

	// Exactly one payload: reject extras beyond the matching one.
	if i.Segment != nil && want != "segment" {
		got = "segment"
	}
	if i.Metrics != nil && want != "metrics" {
		got = "metrics"
	}
	if i.Logs != nil && want != "logs" {
		got = "logs"
	}
	if i.Announcement != nil && want != "announcement" {
		got = "announcement"
	}
	if got != "" {
		return fmt.Errorf("item kind %s: unexpected %s payload", i.Kind, got)
	}

	var service, instance string
	switch i.Kind {
	case KindSegment:
		service, instance = i.Segment.Service, i.Segment.Instance
	case KindMetrics:
		service, instance = i.Metrics.Service, i.Metrics.Instance
	case KindLogs:
		service, instance = i.Logs.Service, i.Logs.Instance
	case KindPing, KindProperties:
		service, instance = i.Announcement.Service, i.Announcement.Instance
	}
	if service == "" || instance == "" {
		return fmt.Errorf("item kind %s: missing service identity", i.Kind)
	}
	return nil
}
