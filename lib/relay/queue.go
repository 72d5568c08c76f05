// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay provides the bounded queue between the daemon's socket
// listener and its exporter. Producers enqueue without blocking and
// the exporter drains at its own pace; when the exporter falls behind
// the queue sheds new items rather than stalling the listener.
package relay

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/spool-works/spool/lib/telemetry"
)

// DefaultCapacity is the default queue capacity in items. 255 items
// absorbs a burst from a busy producer while keeping worst-case memory
// bounded; a full queue means the collector is unreachable or slow,
// and dropping beats stalling every connected producer.
const DefaultCapacity = 255

// Outcome reports what happened to an item offered to the queue.
type Outcome int

const (
	// Enqueued means the item was accepted.
	Enqueued Outcome = iota
	// Dropped means the queue was full and the item was discarded.
	Dropped
	// Closed means the queue no longer accepts items.
	Closed
)

// String returns the outcome name for log fields.
func (outcome Outcome) String() string {
	switch outcome {
	case Enqueued:
		return "enqueued"
	case Dropped:
		return "dropped"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Source is the consumer's view of a queue: a blocking receive and a
// non-blocking drain. The exporter takes a Source so tests can feed it
// directly.
type Source interface {
	// Next blocks until an item is available, the queue is closed and
	// empty, or the context is done. The boolean is false when no item
	// was received.
	Next(ctx context.Context) (telemetry.Item, bool)

	// TryNext returns an item if one is immediately available.
	TryNext() (telemetry.Item, bool)
}

// Queue is a fixed-capacity FIFO of telemetry items. Enqueueing never
// blocks: a full queue drops the offered item and counts it. Closing
// the queue stops intake while letting the consumer drain what was
// already accepted.
//
// All methods are safe for concurrent use.
type Queue struct {
	items   chan telemetry.Item
	dropped atomic.Uint64

	// mutex guards closed so TryEnqueue never sends on a closed
	// channel.
	mutex  sync.RWMutex
	closed bool
}

var _ Source = (*Queue)(nil)

// NewQueue creates a queue holding up to capacity items. Use
// DefaultCapacity for the standard size. Panics if capacity is not
// positive.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		panic("relay: queue capacity must be positive")
	}
	return &Queue{items: make(chan telemetry.Item, capacity)}
}

// TryEnqueue offers an item to the queue without blocking and reports
// the outcome. Dropped items are counted; see Dropped.
func (queue *Queue) TryEnqueue(item telemetry.Item) Outcome {
	queue.mutex.RLock()
	defer queue.mutex.RUnlock()

	if queue.closed {
		return Closed
	}
	select {
	case queue.items <- item:
		return Enqueued
	default:
		queue.dropped.Add(1)
		return Dropped
	}
}

// Next blocks until an item is available or the wait ends. The boolean
// is false when the context is done or the queue is closed and empty.
// Items accepted before Close are still delivered.
//
// Cancellation is checked before the receive: a consumer whose context
// is already done never takes another item, even when items are
// waiting. Draining after shutdown goes through TryNext.
func (queue *Queue) Next(ctx context.Context) (telemetry.Item, bool) {
	select {
	case <-ctx.Done():
		return telemetry.Item{}, false
	default:
	}
	select {
	case item, ok := <-queue.items:
		return item, ok
	case <-ctx.Done():
		return telemetry.Item{}, false
	}
}

// TryNext returns an item if one is immediately available. The boolean
// is false when the queue is empty.
func (queue *Queue) TryNext() (telemetry.Item, bool) {
	select {
	case item, ok := <-queue.items:
		return item, ok
	default:
		return telemetry.Item{}, false
	}
}

// Close stops intake. Items already accepted remain readable; once
// they are drained Next and TryNext report no item. Close is
// idempotent.
func (queue *Queue) Close() {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	if queue.closed {
		return
	}
	queue.closed = true
	close(queue.items)
}

// Dropped returns the number of items discarded because the queue was
// full.
func (queue *Queue) Dropped() uint64 {
	return queue.dropped.Load()
}

// Len returns the number of items currently queued.
func (queue *Queue) Len() int {
	return len(queue.items)
}

// Cap returns the queue capacity.
func (queue *Queue) Cap() int {
	return cap(queue.items)
}
