// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spool-works/spool/lib/clock"
	"github.com/spool-works/spool/lib/hostinfo"
	"github.com/spool-works/spool/lib/relay"
	"github.com/spool-works/spool/lib/telemetry"
)

// announcer keeps the service registration alive. It enqueues one
// announcement immediately on startup and one per interval after
// that: a full properties report every factor-th announcement, a
// lightweight ping otherwise. Properties are probed fresh for every
// report, never cached, so reparenting and address changes show up
// on the next tick.
type announcer struct {
	service  string
	instance string
	language string
	interval time.Duration
	factor   int
	queue    *relay.Queue
	clock    clock.Clock
	logger   *slog.Logger
}

// run announces until ctx is cancelled or the queue closes.
func (a *announcer) run(ctx context.Context) {
	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		kind := telemetry.KindPing
		if i%a.factor == 0 {
			kind = telemetry.KindProperties
		}
		if a.announce(ctx, kind) == relay.Closed {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *announcer) announce(ctx context.Context, kind telemetry.ItemKind) relay.Outcome {
	properties := hostinfo.Probe(ctx)
	if a.language != "" {
		properties[telemetry.PropertyLanguage] = a.language
	}

	outcome := a.queue.TryEnqueue(telemetry.Item{
		Kind: kind,
		Announcement: &telemetry.Announcement{
			Service:    a.service,
			Instance:   a.instance,
			Language:   a.language,
			Properties: properties,
		},
	})
	if outcome == relay.Dropped {
		a.logger.Warn("queue full, dropping announcement",
			"kind", kind,
			"dropped_total", a.queue.Dropped(),
		)
	}
	return outcome
}
