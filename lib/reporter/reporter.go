// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package reporter drives the daemon's upstream pipeline: it drains
// the relay queue and hands each item to an exporter. An export
// failure ends the daemon rather than buffering unbounded or silently
// discarding, so an operator sees a dead daemon instead of a quietly
// lossy one.
package reporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spool-works/spool/lib/relay"
	"github.com/spool-works/spool/lib/telemetry"
)

// Exporter sends telemetry items upstream. The reporter uses this
// interface so tests can substitute a fake implementation without a
// collector.
type Exporter interface {
	// Export sends one item. A returned error is treated as
	// pipeline-fatal by the reporter.
	Export(ctx context.Context, item telemetry.Item) error

	// Close releases the exporter's resources.
	Close() error
}

// flushTimeout bounds the final drain after shutdown begins. Items
// still queued after the budget are abandoned.
const flushTimeout = 5 * time.Second

// Run consumes the source until it ends, exporting every item. It
// blocks for the life of the pipeline:
//
//   - An export error in steady state is returned immediately; the
//     daemon treats it as fatal.
//   - When the source reports done (context cancelled, or queue closed
//     and drained), Run makes one best-effort flush pass over whatever
//     is still queued and returns nil. Flush failures are logged, not
//     returned: shutdown was already decided and its exit status
//     should not flap on a last-moment export.
func Run(ctx context.Context, source relay.Source, exporter Exporter, logger *slog.Logger) error {
	for {
		item, ok := source.Next(ctx)
		if !ok {
			flush(source, exporter, logger)
			return nil
		}

		if err := exporter.Export(ctx, item); err != nil {
			if ctx.Err() != nil {
				// Shutdown raced the failure; drain what we can and
				// call it a clean exit.
				flush(source, exporter, logger)
				return nil
			}
			return fmt.Errorf("export %s: %w", item.Kind, err)
		}
	}
}

// flush makes one best-effort pass over the remaining queued items
// with a short overall timeout. This gives data accepted during
// graceful shutdown a chance to leave the process.
func flush(source relay.Source, exporter Exporter, logger *slog.Logger) {
	flushContext, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	flushed := 0
	for {
		item, ok := source.TryNext()
		if !ok {
			break
		}
		if err := exporter.Export(flushContext, item); err != nil {
			logger.Warn("flush: export failed, abandoning remaining",
				"error", err,
				"flushed", flushed,
			)
			return
		}
		flushed++
	}
	if flushed > 0 {
		logger.Info("flushed remaining items", "count", flushed)
	}
}
