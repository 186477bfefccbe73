// Package sched contains the pipeline's scheduler boundary: the bounded
// intent queue the scheduler collaborator drains, and the bridge that
// publishes resolved hypotheses into it. Nothing here ever invokes an
// action; the scheduler owns interpretation and execution.
package sched

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/NoodleSploder/RayOS-sub005/internal/attention"
)

// IntentEnvelope wraps a resolved hypothesis for the scheduler's intent
// queue, with enough context to resolve deictic references later.
type IntentEnvelope struct {
	ID            string                    `json:"id"`
	Hypothesis    attention.FocusHypothesis `json:"hypothesis"`
	EnqueuedNanos int64                     `json:"enqueued_nanos"`
}

// IntentQueue is the bounded queue the scheduler drains. Enqueue is
// non-blocking: a full queue refuses the envelope rather than stalling
// the producer.
type IntentQueue struct {
	ch       chan IntentEnvelope
	accepted atomic.Uint64
	refused  atomic.Uint64
	closed   atomic.Bool
}

// NewIntentQueue creates a queue with the given capacity.
func NewIntentQueue(size int) *IntentQueue {
	if size < 1 {
		size = 1
	}
	return &IntentQueue{ch: make(chan IntentEnvelope, size)}
}

// TryEnqueue offers an envelope without blocking. Returns false when the
// queue is full or closed.
func (q *IntentQueue) TryEnqueue(env IntentEnvelope) bool {
	if q.closed.Load() {
		q.refused.Add(1)
		return false
	}
	select {
	case q.ch <- env:
		q.accepted.Add(1)
		return true
	default:
		q.refused.Add(1)
		return false
	}
}

// Dequeue blocks until an envelope is available or ctx is done.
func (q *IntentQueue) Dequeue(ctx context.Context) (IntentEnvelope, error) {
	select {
	case env := <-q.ch:
		return env, nil
	case <-ctx.Done():
		return IntentEnvelope{}, ctx.Err()
	}
}

// Len returns the number of queued envelopes.
func (q *IntentQueue) Len() int { return len(q.ch) }

// Close marks the queue as unavailable; later enqueues are refused.
// Envelopes already queued remain drainable.
func (q *IntentQueue) Close() { q.closed.Store(true) }

// QueueStats is the queue's counter snapshot.
type QueueStats struct {
	Accepted uint64 `json:"accepted"`
	Refused  uint64 `json:"refused"`
	Depth    int    `json:"depth"`
}

// Stats returns current queue counters.
func (q *IntentQueue) Stats() QueueStats {
	return QueueStats{
		Accepted: q.accepted.Load(),
		Refused:  q.refused.Load(),
		Depth:    len(q.ch),
	}
}

// Bridge publishes resolved hypotheses into an IntentQueue. Publishing
// is best-effort: a refused publish is counted and forgotten, because a
// superseding generation will naturally follow.
type Bridge struct {
	queue     *IntentQueue
	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBridge creates a Bridge targeting q.
func NewBridge(q *IntentQueue) *Bridge {
	return &Bridge{queue: q}
}

// Publish offers one hypothesis to the intent queue. Never blocks, never
// retries; returns whether the queue accepted it.
func (b *Bridge) Publish(h attention.FocusHypothesis) bool {
	ok := b.queue.TryEnqueue(IntentEnvelope{
		ID:            uuid.NewString(),
		Hypothesis:    h,
		EnqueuedNanos: time.Now().UnixNano(),
	})
	if ok {
		b.published.Add(1)
	} else {
		b.dropped.Add(1)
	}
	return ok
}

// BridgeStats is the bridge's counter snapshot.
type BridgeStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// Stats returns current bridge counters.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{Published: b.published.Load(), Dropped: b.dropped.Load()}
}
