// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Spool-emit sends synthetic telemetry to a running spoold. It smoke
// tests a deployment end to end: if the emitted items show up at the
// collector, the socket, relay queue, and exporter are all healthy.
//
//	spool-emit --kind segment --count 10 --interval 100ms
//
// Each run opens one connection, emits count items of the chosen
// kind, and prints what it sent.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/spool-works/spool/lib/client"
	"github.com/spool-works/spool/lib/config"
	"github.com/spool-works/spool/lib/telemetry"
	"github.com/spool-works/spool/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		socketPath string
		kind       string
		count      int
		interval   time.Duration
		service    string
		instance   string
	)

	flagSet := pflag.NewFlagSet("spool-emit", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", config.Default().SocketPath(),
		"spoold producer socket")
	flagSet.StringVar(&kind, "kind", "segment",
		"item kind to emit: segment, metrics, logs, or ping")
	flagSet.IntVar(&count, "count", 1, "number of items to emit")
	flagSet.DurationVar(&interval, "interval", 0, "pause between items")
	flagSet.StringVar(&service, "service", "spool-emit",
		"service name stamped on emitted items")
	flagSet.StringVar(&instance, "instance", "",
		"service instance (default: <hostname>:<pid>)")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("spool-emit %s\n", version.Info())
		return nil
	}
	if count < 1 {
		return fmt.Errorf("--count must be positive")
	}
	if instance == "" {
		hostname, _ := os.Hostname()
		instance = fmt.Sprintf("%s:%d", hostname, os.Getpid())
	}

	emit, err := emitter(kind, service, instance)
	if err != nil {
		return err
	}

	cl, err := client.Dial(socketPath)
	if err != nil {
		return err
	}
	defer cl.Close()

	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 {
			time.Sleep(interval)
		}
		if err := emit(cl, i); err != nil {
			return fmt.Errorf("emitting item %d: %w", i+1, err)
		}
	}

	fmt.Printf("sent %d %s item(s) to %s\n", count, kind, socketPath)
	return nil
}

// emitter returns the function that emits one item of the requested
// kind, numbered by its position in the run.
func emitter(kind, service, instance string) (func(*client.Client, int) error, error) {
	switch kind {
	case "segment":
		return func(cl *client.Client, i int) error {
			return cl.ReportSegment(syntheticSegment(service, instance, i))
		}, nil
	case "metrics":
		return func(cl *client.Client, i int) error {
			return cl.ReportMetrics(syntheticMetrics(service, instance, i))
		}, nil
	case "logs":
		return func(cl *client.Client, i int) error {
			return cl.ReportLogs(syntheticLogs(service, instance, i))
		}, nil
	case "ping":
		return func(cl *client.Client, _ int) error {
			return cl.Ping(&telemetry.Announcement{Service: service, Instance: instance})
		}, nil
	default:
		return nil, fmt.Errorf("unknown kind %q: want segment, metrics, logs, or ping", kind)
	}
}

// syntheticSegment builds a two-span segment resembling a web request
// with one database call, spans in completion order.
func syntheticSegment(service, instance string, i int) *telemetry.Segment {
	rootID := telemetry.NewSpanID()
	end := time.Now()
	start := end.Add(-120 * time.Millisecond)
	return &telemetry.Segment{
		Service:  service,
		Instance: instance,
		TraceID:  telemetry.NewTraceID(),
		Spans: []telemetry.Span{
			{
				SpanID:       telemetry.NewSpanID(),
				ParentSpanID: rootID,
				Operation:    "mysql.query",
				StartTime:    start.Add(20 * time.Millisecond).UnixNano(),
				EndTime:      start.Add(80 * time.Millisecond).UnixNano(),
				Kind:         telemetry.SpanKindClient,
				Peer:         "127.0.0.1:3306",
				Tags:         map[string]string{"db.statement": "SELECT 1"},
			},
			{
				SpanID:    rootID,
				Operation: fmt.Sprintf("GET /synthetic/%d", i),
				StartTime: start.UnixNano(),
				EndTime:   end.UnixNano(),
				Kind:      telemetry.SpanKindServer,
				Status:    telemetry.SpanStatusOK,
				Tags: map[string]string{
					"http.method":      "GET",
					"http.status_code": "200",
				},
			},
		},
	}
}

func syntheticMetrics(service, instance string, i int) *telemetry.MetricBatch {
	now := time.Now().UnixNano()
	return &telemetry.MetricBatch{
		Service:  service,
		Instance: instance,
		Points: []telemetry.MetricPoint{
			{Name: "synthetic.sequence", Value: float64(i + 1), Time: now},
			{
				Name:   "synthetic.duration_ms",
				Labels: map[string]string{"endpoint": "/synthetic"},
				Value:  12.5,
				Time:   now,
			},
		},
	}
}

func syntheticLogs(service, instance string, i int) *telemetry.LogBatch {
	return &telemetry.LogBatch{
		Service:  service,
		Instance: instance,
		Records: []telemetry.LogRecord{{
			Time:       time.Now().UnixNano(),
			Severity:   telemetry.SeverityInfo,
			Body:       fmt.Sprintf("synthetic log record %d", i+1),
			Attributes: map[string]string{"sequence": strconv.Itoa(i + 1)},
		}},
	}
}
