// Package stream drives full re-synchronization of a record store against
// the search index. Records flow from a store cursor through the bulk
// queue; the cursor is held back while an enqueue-triggered flush is in
// flight so the backlog never outgrows one batch.
package stream

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/BRO3886/searchsync/internal/bulk"
	"github.com/BRO3886/searchsync/internal/docsync"
	"github.com/BRO3886/searchsync/internal/search"
	"github.com/BRO3886/searchsync/internal/store"
	"github.com/BRO3886/searchsync/internal/types"
)

// Observer receives progress notifications during a sync run. Data and
// Filtered fire from the sync goroutine; Sent and Error fire from the
// flush side once a batch settles.
type Observer interface {
	Data(rec types.Record)
	Filtered(rec types.Record)
	Sent(count int)
	Error(err error)
}

// Summary is the outcome of one sync run.
type Summary struct {
	Sent     int // records enqueued for indexing
	Filtered int // records rejected by the filter
	Flushes  int // batches that reached the backend
	Errors   int // batches the backend rejected
}

type Synchronizer struct {
	store   store.Store
	backend search.Backend
	index   string
	mapping docsync.Mapping

	batch        int
	filter       types.Filter
	refreshDelay time.Duration
	observers    []Observer
}

type Option func(*Synchronizer)

// WithBatchSize sets both the cursor page size and the bulk queue
// threshold.
func WithBatchSize(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.batch = n
		}
	}
}

func WithFilter(f types.Filter) Option {
	return func(s *Synchronizer) {
		s.filter = f
	}
}

// WithRefreshDelay adds a settle delay after the final index refresh, for
// backends with near-real-time visibility latency.
func WithRefreshDelay(d time.Duration) Option {
	return func(s *Synchronizer) {
		s.refreshDelay = d
	}
}

func WithObserver(o Observer) Option {
	return func(s *Synchronizer) {
		s.observers = append(s.observers, o)
	}
}

func New(st store.Store, backend search.Backend, index string, mapping docsync.Mapping, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:   st,
		backend: backend,
		index:   index,
		mapping: mapping,
		batch:   bulk.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// session is the per-run state. It doubles as the queue notifier: flush
// outcomes update the counters and release the gate the sync loop blocks
// on after an enqueue triggered a flush.
type session struct {
	observers []Observer

	mu      sync.Mutex
	summary Summary

	gate chan struct{}
}

var _ bulk.Notifier = (*session)(nil)

func (ss *session) BatchSent(count int) {
	ss.mu.Lock()
	ss.summary.Flushes++
	ss.mu.Unlock()

	for _, o := range ss.observers {
		o.Sent(count)
	}
	ss.release()
}

func (ss *session) BatchError(err error) {
	ss.mu.Lock()
	ss.summary.Errors++
	ss.mu.Unlock()

	for _, o := range ss.observers {
		o.Error(err)
	}
	// an open session keeps streaming past a failed batch; the error has
	// already been reported through the observers
	ss.release()
}

func (ss *session) release() {
	select {
	case ss.gate <- struct{}{}:
	default:
	}
}

// wait blocks until the in-flight flush settles, success or error.
func (ss *session) wait(ctx context.Context) error {
	select {
	case <-ss.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync streams every record matching conditions through the bulk queue and
// finishes with exactly one index refresh. A failed batch does not abort
// the run; it is counted and reported via observers. A refresh failure is
// the run's error.
func (s *Synchronizer) Sync(ctx context.Context, conditions store.Conditions, projection []string) (Summary, error) {
	sess := &session{
		observers: s.observers,
		gate:      make(chan struct{}, 1),
	}
	queue := bulk.New(s.backend, s.batch, sess)

	cur, err := s.store.Find(ctx, conditions, projection, s.batch)
	if err != nil {
		return Summary{}, err
	}
	defer cur.Close()

	for {
		rec, err := cur.Next(ctx)
		if errors.Is(err, store.ErrCursorDone) {
			break
		}
		if err != nil {
			return sess.snapshot(), err
		}

		if s.filter != nil && !s.filter(rec) {
			sess.mu.Lock()
			sess.summary.Filtered++
			sess.mu.Unlock()
			for _, o := range s.observers {
				o.Filtered(rec)
			}
			continue
		}

		triggered := queue.Push(ctx, search.BulkOp{
			Action: search.ActionIndex,
			Index:  s.index,
			Id:     rec.Id,
			Body:   docsync.Serialize(rec.Fields, s.mapping),
		})
		sess.mu.Lock()
		sess.summary.Sent++
		sess.mu.Unlock()
		for _, o := range s.observers {
			o.Data(rec)
		}

		if triggered {
			if err := sess.wait(ctx); err != nil {
				return sess.snapshot(), err
			}
		}
	}

	// cursor closed; whatever is left in the queue goes out as one final
	// batch before the refresh
	if queue.Filled() {
		queue.Flush(ctx)
	}

	return s.finalize(ctx, sess)
}

// finalize runs once per session, after the cursor closed and the queue
// drained.
func (s *Synchronizer) finalize(ctx context.Context, sess *session) (Summary, error) {
	if err := s.backend.Refresh(ctx, s.index); err != nil {
		return sess.snapshot(), err
	}

	if s.refreshDelay > 0 {
		t := time.NewTimer(s.refreshDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return sess.snapshot(), ctx.Err()
		}
	}

	summary := sess.snapshot()
	log.Printf("[stream] sync of %s done: %d sent, %d filtered, %d flushes, %d errors",
		s.index, summary.Sent, summary.Filtered, summary.Flushes, summary.Errors)
	return summary, nil
}

func (ss *session) snapshot() Summary {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.summary
}
