// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package otlp

import (
	"slices"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/spool-works/spool/lib/telemetry"
)

// heartbeatMetric is the gauge name announcements export as. The
// value is always 1; the signal is the fresh timestamp and the
// resource attributes around it.
const heartbeatMetric = "spool.heartbeat"

// TraceRequest converts a trace segment into an OTLP trace export
// request. All spans share the segment's resource identity.
func TraceRequest(seg *telemetry.Segment) *coltracepb.ExportTraceServiceRequest {
	spans := make([]*tracepb.Span, 0, len(seg.Spans))
	for _, s := range seg.Spans {
		spans = append(spans, convertSpan(seg.TraceID, s))
	}
	return &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			Resource: resource(seg.Service, seg.Instance, "", nil),
			ScopeSpans: []*tracepb.ScopeSpans{{
				Spans: spans,
			}},
		}},
	}
}

func convertSpan(traceID telemetry.TraceID, s telemetry.Span) *tracepb.Span {
	span := &tracepb.Span{
		TraceId:           traceID[:],
		SpanId:            s.SpanID[:],
		Name:              s.Operation,
		Kind:              spanKind(s.Kind),
		StartTimeUnixNano: uint64(s.StartTime),
		EndTimeUnixNano:   uint64(s.EndTime),
		Attributes:        keyValues(s.Tags),
	}
	if !s.ParentSpanID.IsZero() {
		span.ParentSpanId = s.ParentSpanID[:]
	}
	if s.Peer != "" {
		span.Attributes = append(span.Attributes, &commonpb.KeyValue{
			Key:   "net.peer.name",
			Value: stringValue(s.Peer),
		})
	}
	if s.Status != telemetry.SpanStatusUnset || s.StatusMessage != "" {
		span.Status = &tracepb.Status{
			Code:    statusCode(s.Status),
			Message: s.StatusMessage,
		}
	}
	return span
}

func spanKind(k telemetry.SpanKind) tracepb.Span_SpanKind {
	switch k {
	case telemetry.SpanKindServer:
		return tracepb.Span_SPAN_KIND_SERVER
	case telemetry.SpanKindClient:
		return tracepb.Span_SPAN_KIND_CLIENT
	case telemetry.SpanKindProducer:
		return tracepb.Span_SPAN_KIND_PRODUCER
	case telemetry.SpanKindConsumer:
		return tracepb.Span_SPAN_KIND_CONSUMER
	default:
		return tracepb.Span_SPAN_KIND_INTERNAL
	}
}

func statusCode(s telemetry.SpanStatus) tracepb.Status_StatusCode {
	switch s {
	case telemetry.SpanStatusOK:
		return tracepb.Status_STATUS_CODE_OK
	case telemetry.SpanStatusError:
		return tracepb.Status_STATUS_CODE_ERROR
	default:
		return tracepb.Status_STATUS_CODE_UNSET
	}
}

// MetricsRequest converts a metric batch into an OTLP metrics export
// request. Every point becomes a single-datapoint gauge: producers
// report point-in-time observations, not pre-aggregated series.
func MetricsRequest(batch *telemetry.MetricBatch) *colmetricspb.ExportMetricsServiceRequest {
	metrics := make([]*metricspb.Metric, 0, len(batch.Points))
	for _, p := range batch.Points {
		metrics = append(metrics, &metricspb.Metric{
			Name: p.Name,
			Data: &metricspb.Metric_Gauge{
				Gauge: &metricspb.Gauge{
					DataPoints: []*metricspb.NumberDataPoint{{
						TimeUnixNano: uint64(p.Time),
						Attributes:   keyValues(p.Labels),
						Value:        &metricspb.NumberDataPoint_AsDouble{AsDouble: p.Value},
					}},
				},
			},
		})
	}
	return &colmetricspb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricspb.ResourceMetrics{{
			Resource: resource(batch.Service, batch.Instance, "", nil),
			ScopeMetrics: []*metricspb.ScopeMetrics{{
				Metrics: metrics,
			}},
		}},
	}
}

// LogsRequest converts a log batch into an OTLP logs export request.
func LogsRequest(batch *telemetry.LogBatch) *collogspb.ExportLogsServiceRequest {
	records := make([]*logspb.LogRecord, 0, len(batch.Records))
	for _, r := range batch.Records {
		record := &logspb.LogRecord{
			TimeUnixNano:   uint64(r.Time),
			SeverityNumber: logspb.SeverityNumber(r.Severity),
			SeverityText:   severityText(r.Severity),
			Body:           stringValue(r.Body),
			Attributes:     keyValues(r.Attributes),
		}
		if !r.TraceID.IsZero() {
			record.TraceId = r.TraceID[:]
		}
		records = append(records, record)
	}
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: resource(batch.Service, batch.Instance, "", nil),
			ScopeLogs: []*logspb.ScopeLogs{{
				LogRecords: records,
			}},
		}},
	}
}

func severityText(severity uint8) string {
	switch {
	case severity >= telemetry.SeverityFatal:
		return "FATAL"
	case severity >= telemetry.SeverityError:
		return "ERROR"
	case severity >= telemetry.SeverityWarn:
		return "WARN"
	case severity >= telemetry.SeverityInfo:
		return "INFO"
	case severity >= telemetry.SeverityDebug:
		return "DEBUG"
	case severity >= telemetry.SeverityTrace:
		return "TRACE"
	default:
		return ""
	}
}

// HeartbeatRequest converts an announcement into an OTLP metrics
// export request carrying one spool.heartbeat gauge, stamped with the
// current time. A full properties report attaches every instance
// property as a resource attribute; a keep-alive ping carries the
// service identity and language only.
func HeartbeatRequest(a *telemetry.Announcement, full bool) *colmetricspb.ExportMetricsServiceRequest {
	var properties map[string]string
	if full {
		properties = a.Properties
	}
	return &colmetricspb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricspb.ResourceMetrics{{
			Resource: resource(a.Service, a.Instance, a.Language, properties),
			ScopeMetrics: []*metricspb.ScopeMetrics{{
				Metrics: []*metricspb.Metric{{
					Name: heartbeatMetric,
					Data: &metricspb.Metric_Gauge{
						Gauge: &metricspb.Gauge{
							DataPoints: []*metricspb.NumberDataPoint{{
								TimeUnixNano: uint64(time.Now().UnixNano()),
								Value:        &metricspb.NumberDataPoint_AsDouble{AsDouble: 1},
							}},
						},
					},
				}},
			}},
		}},
	}
}

// resource builds the OTLP resource identifying the reporting
// service instance. language and properties are optional extras used
// by heartbeats.
func resource(service, instance, language string, properties map[string]string) *resourcepb.Resource {
	attrs := []*commonpb.KeyValue{
		{Key: "service.name", Value: stringValue(service)},
		{Key: "service.instance.id", Value: stringValue(instance)},
	}
	if language != "" {
		attrs = append(attrs, &commonpb.KeyValue{
			Key:   "telemetry.sdk.language",
			Value: stringValue(language),
		})
	}
	return &resourcepb.Resource{
		Attributes: append(attrs, keyValues(properties)...),
	}
}

// keyValues converts a string map into OTLP attributes, sorted by key
// so encoded requests are byte-stable.
func keyValues(m map[string]string) []*commonpb.KeyValue {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	attrs := make([]*commonpb.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, &commonpb.KeyValue{Key: k, Value: stringValue(m[k])})
	}
	return attrs
}

func stringValue(s string) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: s}}
}
