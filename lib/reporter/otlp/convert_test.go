// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package otlp

import (
	"bytes"
	"slices"
	"testing"
	"time"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/spool-works/spool/lib/telemetry"
)

// attrValue returns the string value of the attribute with the given
// key, or "" when absent.
func attrValue(attrs []*commonpb.KeyValue, key string) string {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value.GetStringValue()
		}
	}
	return ""
}

func TestTraceRequest(t *testing.T) {
	traceID := telemetry.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	rootID := telemetry.SpanID{1, 1, 1, 1, 1, 1, 1, 1}
	childID := telemetry.SpanID{2, 2, 2, 2, 2, 2, 2, 2}
	seg := &telemetry.Segment{
		Service:  "checkout",
		Instance: "web-1",
		TraceID:  traceID,
		Spans: []telemetry.Span{
			{
				SpanID:    rootID,
				Operation: "GET /checkout",
				StartTime: 1000,
				EndTime:   5000,
				Kind:      telemetry.SpanKindServer,
				Tags:      map[string]string{"http.method": "GET"},
			},
			{
				SpanID:        childID,
				ParentSpanID:  rootID,
				Operation:     "mysql.query",
				StartTime:     2000,
				EndTime:       3000,
				Kind:          telemetry.SpanKindClient,
				Peer:          "10.0.3.7:3306",
				Status:        telemetry.SpanStatusError,
				StatusMessage: "connection refused",
			},
		},
	}

	req := TraceRequest(seg)

	if len(req.ResourceSpans) != 1 {
		t.Fatalf("expected 1 resource spans entry, got %d", len(req.ResourceSpans))
	}
	rs := req.ResourceSpans[0]
	if got := attrValue(rs.Resource.Attributes, "service.name"); got != "checkout" {
		t.Errorf("service.name = %q, want %q", got, "checkout")
	}
	if got := attrValue(rs.Resource.Attributes, "service.instance.id"); got != "web-1" {
		t.Errorf("service.instance.id = %q, want %q", got, "web-1")
	}

	spans := rs.ScopeSpans[0].Spans
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	root := spans[0]
	if !bytes.Equal(root.TraceId, traceID[:]) {
		t.Errorf("root TraceId = %x, want %x", root.TraceId, traceID[:])
	}
	if !bytes.Equal(root.SpanId, rootID[:]) {
		t.Errorf("root SpanId = %x, want %x", root.SpanId, rootID[:])
	}
	if len(root.ParentSpanId) != 0 {
		t.Errorf("root ParentSpanId = %x, want empty", root.ParentSpanId)
	}
	if root.Name != "GET /checkout" {
		t.Errorf("root Name = %q, want %q", root.Name, "GET /checkout")
	}
	if root.Kind != tracepb.Span_SPAN_KIND_SERVER {
		t.Errorf("root Kind = %v, want server", root.Kind)
	}
	if root.StartTimeUnixNano != 1000 || root.EndTimeUnixNano != 5000 {
		t.Errorf("root times = %d..%d, want 1000..5000", root.StartTimeUnixNano, root.EndTimeUnixNano)
	}
	if got := attrValue(root.Attributes, "http.method"); got != "GET" {
		t.Errorf("http.method = %q, want %q", got, "GET")
	}
	if root.Status != nil {
		t.Errorf("root Status = %v, want nil", root.Status)
	}

	child := spans[1]
	if !bytes.Equal(child.ParentSpanId, rootID[:]) {
		t.Errorf("child ParentSpanId = %x, want %x", child.ParentSpanId, rootID[:])
	}
	if child.Kind != tracepb.Span_SPAN_KIND_CLIENT {
		t.Errorf("child Kind = %v, want client", child.Kind)
	}
	if got := attrValue(child.Attributes, "net.peer.name"); got != "10.0.3.7:3306" {
		t.Errorf("net.peer.name = %q, want %q", got, "10.0.3.7:3306")
	}
	if child.Status == nil || child.Status.Code != tracepb.Status_STATUS_CODE_ERROR {
		t.Fatalf("child Status = %v, want error code", child.Status)
	}
	if child.Status.Message != "connection refused" {
		t.Errorf("status message = %q, want %q", child.Status.Message, "connection refused")
	}
}

func TestSpanKindMapping(t *testing.T) {
	cases := []struct {
		in   telemetry.SpanKind
		want tracepb.Span_SpanKind
	}{
		{telemetry.SpanKindInternal, tracepb.Span_SPAN_KIND_INTERNAL},
		{telemetry.SpanKindServer, tracepb.Span_SPAN_KIND_SERVER},
		{telemetry.SpanKindClient, tracepb.Span_SPAN_KIND_CLIENT},
		{telemetry.SpanKindProducer, tracepb.Span_SPAN_KIND_PRODUCER},
		{telemetry.SpanKindConsumer, tracepb.Span_SPAN_KIND_CONSUMER},
		{telemetry.SpanKind(99), tracepb.Span_SPAN_KIND_INTERNAL},
	}
	for _, c := range cases {
		if got := spanKind(c.in); got != c.want {
			t.Errorf("spanKind(%d) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMetricsRequest(t *testing.T) {
	batch := &telemetry.MetricBatch{
		Service:  "checkout",
		Instance: "web-1",
		Points: []telemetry.MetricPoint{
			{Name: "process.heap_bytes", Value: 1 << 20, Time: 7000},
			{
				Name:   "request.duration_ms",
				Labels: map[string]string{"endpoint": "/checkout"},
				Value:  12.5,
				Time:   8000,
			},
		},
	}

	req := MetricsRequest(batch)

	rm := req.ResourceMetrics[0]
	if got := attrValue(rm.Resource.Attributes, "service.name"); got != "checkout" {
		t.Errorf("service.name = %q, want %q", got, "checkout")
	}
	metrics := rm.ScopeMetrics[0].Metrics
	if len(metrics) != 2 {
		t.Fatalf("expected 2 metrics, got %d", len(metrics))
	}
	if metrics[0].Name != "process.heap_bytes" {
		t.Errorf("metric name = %q, want %q", metrics[0].Name, "process.heap_bytes")
	}
	point := metrics[0].GetGauge().DataPoints[0]
	if point.GetAsDouble() != 1<<20 {
		t.Errorf("value = %v, want %v", point.GetAsDouble(), 1<<20)
	}
	if point.TimeUnixNano != 7000 {
		t.Errorf("TimeUnixNano = %d, want 7000", point.TimeUnixNano)
	}
	labeled := metrics[1].GetGauge().DataPoints[0]
	if got := attrValue(labeled.Attributes, "endpoint"); got != "/checkout" {
		t.Errorf("endpoint label = %q, want %q", got, "/checkout")
	}
	if labeled.GetAsDouble() != 12.5 {
		t.Errorf("labeled value = %v, want 12.5", labeled.GetAsDouble())
	}
}

func TestLogsRequest(t *testing.T) {
	traceID := telemetry.TraceID{0xde, 0xad, 0xbe, 0xef, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	batch := &telemetry.LogBatch{
		Service:  "checkout",
		Instance: "web-1",
		Records: []telemetry.LogRecord{
			{
				Time:       9000,
				Severity:   telemetry.SeverityError,
				Body:       "payment gateway unreachable",
				TraceID:    traceID,
				Attributes: map[string]string{"gateway": "stripe"},
			},
			{Time: 9500, Severity: telemetry.SeverityInfo, Body: "retrying"},
		},
	}

	req := LogsRequest(batch)

	rl := req.ResourceLogs[0]
	if got := attrValue(rl.Resource.Attributes, "service.instance.id"); got != "web-1" {
		t.Errorf("service.instance.id = %q, want %q", got, "web-1")
	}
	records := rl.ScopeLogs[0].LogRecords
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.TimeUnixNano != 9000 {
		t.Errorf("TimeUnixNano = %d, want 9000", first.TimeUnixNano)
	}
	if first.SeverityNumber != logspb.SeverityNumber(telemetry.SeverityError) {
		t.Errorf("SeverityNumber = %v, want %d", first.SeverityNumber, telemetry.SeverityError)
	}
	if first.SeverityText != "ERROR" {
		t.Errorf("SeverityText = %q, want ERROR", first.SeverityText)
	}
	if got := first.Body.GetStringValue(); got != "payment gateway unreachable" {
		t.Errorf("Body = %q, want %q", got, "payment gateway unreachable")
	}
	if !bytes.Equal(first.TraceId, traceID[:]) {
		t.Errorf("TraceId = %x, want %x", first.TraceId, traceID[:])
	}
	if got := attrValue(first.Attributes, "gateway"); got != "stripe" {
		t.Errorf("gateway attribute = %q, want %q", got, "stripe")
	}

	second := records[1]
	if len(second.TraceId) != 0 {
		t.Errorf("uncorrelated TraceId = %x, want empty", second.TraceId)
	}
	if second.SeverityText != "INFO" {
		t.Errorf("SeverityText = %q, want INFO", second.SeverityText)
	}
}

func TestSeverityText(t *testing.T) {
	cases := []struct {
		severity uint8
		want     string
	}{
		{0, ""},
		{telemetry.SeverityTrace, "TRACE"},
		{telemetry.SeverityDebug, "DEBUG"},
		{telemetry.SeverityInfo, "INFO"},
		{11, "INFO"},
		{telemetry.SeverityWarn, "WARN"},
		{telemetry.SeverityError, "ERROR"},
		{telemetry.SeverityFatal, "FATAL"},
		{24, "FATAL"},
	}
	for _, c := range cases {
		if got := severityText(c.severity); got != c.want {
			t.Errorf("severityText(%d) = %q, want %q", c.severity, got, c.want)
		}
	}
}

func TestHeartbeatRequestFull(t *testing.T) {
	a := &telemetry.Announcement{
		Service:  "checkout",
		Instance: "web-1",
		Language: "php",
		Properties: map[string]string{
			telemetry.PropertyHostname:  "web-1.internal",
			telemetry.PropertyOSName:    "linux",
			telemetry.PropertyProcessNo: "4242",
		},
	}

	before := time.Now().UnixNano()
	req := HeartbeatRequest(a, true)
	after := time.Now().UnixNano()

	rm := req.ResourceMetrics[0]
	attrs := rm.Resource.Attributes
	if got := attrValue(attrs, "service.name"); got != "checkout" {
		t.Errorf("service.name = %q, want %q", got, "checkout")
	}
	if got := attrValue(attrs, "telemetry.sdk.language"); got != "php" {
		t.Errorf("telemetry.sdk.language = %q, want %q", got, "php")
	}
	if got := attrValue(attrs, telemetry.PropertyHostname); got != "web-1.internal" {
		t.Errorf("hostname property = %q, want %q", got, "web-1.internal")
	}
	if got := attrValue(attrs, telemetry.PropertyProcessNo); got != "4242" {
		t.Errorf("process_no property = %q, want %q", got, "4242")
	}

	metric := rm.ScopeMetrics[0].Metrics[0]
	if metric.Name != "spool.heartbeat" {
		t.Errorf("metric name = %q, want spool.heartbeat", metric.Name)
	}
	point := metric.GetGauge().DataPoints[0]
	if point.GetAsDouble() != 1 {
		t.Errorf("heartbeat value = %v, want 1", point.GetAsDouble())
	}
	if point.TimeUnixNano < uint64(before) || point.TimeUnixNano > uint64(after) {
		t.Errorf("TimeUnixNano = %d, want between %d and %d", point.TimeUnixNano, before, after)
	}
}

func TestHeartbeatRequestPing(t *testing.T) {
	a := &telemetry.Announcement{
		Service:  "checkout",
		Instance: "web-1",
		Language: "php",
		Properties: map[string]string{
			telemetry.PropertyHostname: "web-1.internal",
		},
	}

	req := HeartbeatRequest(a, false)

	attrs := req.ResourceMetrics[0].Resource.Attributes
	if got := attrValue(attrs, telemetry.PropertyHostname); got != "" {
		t.Errorf("ping carries hostname property %q, want none", got)
	}
	if got := attrValue(attrs, "service.name"); got != "checkout" {
		t.Errorf("service.name = %q, want %q", got, "checkout")
	}
	if got := attrValue(attrs, "telemetry.sdk.language"); got != "php" {
		t.Errorf("telemetry.sdk.language = %q, want %q", got, "php")
	}
}

func TestKeyValuesSorted(t *testing.T) {
	attrs := keyValues(map[string]string{"zebra": "1", "alpha": "2", "mango": "3"})
	keys := make([]string, 0, len(attrs))
	for _, kv := range attrs {
		keys = append(keys, kv.Key)
	}
	want := []string{"alpha", "mango", "zebra"}
	if !slices.Equal(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}

func TestKeyValuesEmpty(t *testing.T) {
	if got := keyValues(nil); got != nil {
		t.Errorf("keyValues(nil) = %v, want nil", got)
	}
}
