// Package bulk accumulates index/update/delete operations and submits them
// to the search backend in batches. A batch is flushed automatically when
// it reaches the configured threshold, or explicitly via Flush. Flush
// outcomes are reported to registered notifiers; the queue itself never
// retries a failed batch.
package bulk

import (
	"context"
	"log"
	"sync"

	"github.com/BRO3886/searchsync/internal/search"
)

const DefaultThreshold = 50

// Notifier receives flush outcomes. Callbacks run outside the queue lock,
// after the flush has settled, and may push further operations.
type Notifier interface {
	BatchSent(count int)
	BatchError(err error)
}

// Queue buffers operations until a flush. Safe for concurrent use; at most
// one flush is in flight at a time, and operations pushed while a flush is
// in progress accumulate into the next batch.
type Queue struct {
	backend   search.Backend
	threshold int

	mu        sync.Mutex
	done      *sync.Cond
	ops       []search.BulkOp
	inFlight  bool
	notifiers []Notifier
}

func New(backend search.Backend, threshold int, notifiers ...Notifier) *Queue {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	q := &Queue{
		backend:   backend,
		threshold: threshold,
		ops:       make([]search.BulkOp, 0, threshold),
		notifiers: notifiers,
	}
	q.done = sync.NewCond(&q.mu)
	return q
}

// Notify registers an additional notifier.
func (q *Queue) Notify(n Notifier) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notifiers = append(q.notifiers, n)
}

// Push appends op to the current batch and reports whether it triggered an
// automatic flush. The flush itself runs asynchronously; its outcome
// arrives via the notifiers.
func (q *Queue) Push(ctx context.Context, op search.BulkOp) bool {
	q.mu.Lock()

	q.ops = append(q.ops, op)
	if len(q.ops) < q.threshold || q.inFlight {
		q.mu.Unlock()
		return false
	}

	batch := q.take()
	q.inFlight = true
	q.mu.Unlock()

	go q.send(ctx, batch)
	return true
}

// Filled reports whether the current batch holds any unflushed operations.
func (q *Queue) Filled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops) > 0
}

// Flush drains the current batch in one request, waiting out any flush
// already in flight first. Calling Flush on an empty queue is a no-op.
func (q *Queue) Flush(ctx context.Context) {
	q.mu.Lock()
	for q.inFlight {
		q.done.Wait()
	}
	if len(q.ops) == 0 {
		q.mu.Unlock()
		return
	}

	batch := q.take()
	q.inFlight = true
	q.mu.Unlock()

	q.send(ctx, batch)
}

// take swaps out the current batch. Caller must hold q.mu.
func (q *Queue) take() []search.BulkOp {
	batch := q.ops
	q.ops = make([]search.BulkOp, 0, q.threshold)
	return batch
}

func (q *Queue) send(ctx context.Context, batch []search.BulkOp) {
	err := q.backend.Bulk(ctx, batch)

	q.mu.Lock()
	q.inFlight = false
	// operations that piled up during the flight may already form a full
	// batch with nobody left to push
	var next []search.BulkOp
	if len(q.ops) >= q.threshold {
		next = q.take()
		q.inFlight = true
	}
	notifiers := make([]Notifier, len(q.notifiers))
	copy(notifiers, q.notifiers)
	q.done.Broadcast()
	q.mu.Unlock()

	if err != nil {
		log.Printf("[bulk] flush of %d operations failed: %v", len(batch), err)
		for _, n := range notifiers {
			n.BatchError(err)
		}
	} else {
		log.Printf("[bulk] flushed %d operations", len(batch))
		for _, n := range notifiers {
			n.BatchSent(len(batch))
		}
	}

	if next != nil {
		q.send(ctx, next)
	}
}
