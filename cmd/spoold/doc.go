// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Spoold is the out-of-process telemetry collection daemon. It runs
// on each host beside short-lived producer processes (FPM workers,
// CLI jobs, cron tasks), receives their trace segments, metric
// batches, and log batches over a unix domain socket, and forwards
// everything to an OpenTelemetry collector over OTLP.
//
// Data flow:
//
//	producer → unix socket → relay queue → reporter → OTLP collector
//
// One spoold instance serves every producer on the host. The daemon
// holds the service registration alive with periodic heartbeats, so a
// producer that lives for milliseconds still shows up upstream as
// part of one long-lived service instance.
//
// Spoold daemonizes by default: the launching process re-executes
// itself detached from the controlling terminal and returns
// immediately. Run with --foreground to stay attached, which is what
// systemd units and containers want.
//
// Configuration comes from a YAML file named by --config or the
// SPOOL_CONFIG environment variable; every setting has a working
// default, so spoold runs with no configuration at all.
package main
