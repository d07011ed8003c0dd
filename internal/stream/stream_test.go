package stream_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/BRO3886/searchsync/internal/docsync"
	"github.com/BRO3886/searchsync/internal/search"
	"github.com/BRO3886/searchsync/internal/searchtest"
	"github.com/BRO3886/searchsync/internal/store"
	"github.com/BRO3886/searchsync/internal/stream"
	"github.com/BRO3886/searchsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const index = "records"

var mapping = docsync.Mapping{
	"name": "text",
	"n":    "integer",
}

func seedStore(n int) *store.MemStore {
	st := store.NewMemStore()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("r-%03d", i)
		st.Put(types.Record{
			Id: id,
			Fields: map[string]any{
				"id":   id,
				"name": fmt.Sprintf("record %d", i),
				"n":    i,
			},
		})
	}
	return st
}

// countingObserver tallies notifications; Sent/Error arrive from the flush
// side, so it locks.
type countingObserver struct {
	mu       sync.Mutex
	data     []string
	filtered []string
	sent     []int
	errors   []error
}

func (o *countingObserver) Data(rec types.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data = append(o.data, rec.Id)
}

func (o *countingObserver) Filtered(rec types.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.filtered = append(o.filtered, rec.Id)
}

func (o *countingObserver) Sent(count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, count)
}

func (o *countingObserver) Error(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, err)
}

func TestSyncBatchesAndSingleRefresh(t *testing.T) {
	// 120 matching records with batch size 50 must produce exactly three
	// flushes of 50, 50 and 20 followed by one refresh
	backend := searchtest.New()
	obs := &countingObserver{}
	s := stream.New(seedStore(120), backend, index, mapping,
		stream.WithBatchSize(50),
		stream.WithObserver(obs),
	)

	summary, err := s.Sync(context.Background(), nil, nil)
	require.NoError(t, err)

	require.Len(t, backend.Batches, 3)
	assert.Len(t, backend.Batches[0], 50)
	assert.Len(t, backend.Batches[1], 50)
	assert.Len(t, backend.Batches[2], 20)
	assert.Equal(t, 1, backend.Refreshes[index], "finalize runs exactly once")

	assert.Equal(t, 120, summary.Sent)
	assert.Equal(t, 0, summary.Filtered)
	assert.Equal(t, 3, summary.Flushes)
	assert.Equal(t, 0, summary.Errors)

	assert.Equal(t, []int{50, 50, 20}, obs.sent)
	assert.Len(t, obs.data, 120)
}

func TestSyncPreservesPushOrder(t *testing.T) {
	backend := searchtest.New()
	s := stream.New(seedStore(7), backend, index, mapping, stream.WithBatchSize(50))

	_, err := s.Sync(context.Background(), nil, nil)
	require.NoError(t, err)

	require.Len(t, backend.Batches, 1)
	for i, op := range backend.Batches[0] {
		assert.Equal(t, fmt.Sprintf("r-%03d", i), op.Id)
		assert.Equal(t, search.ActionIndex, op.Action)
	}
}

func TestSyncSerializesAgainstMapping(t *testing.T) {
	st := store.NewMemStore()
	st.Put(types.Record{Id: "1", Fields: map[string]any{
		"id": "1", "name": "Ada", "password": "hunter2",
	}})
	backend := searchtest.New()
	s := stream.New(st, backend, index, mapping)

	_, err := s.Sync(context.Background(), nil, nil)
	require.NoError(t, err)

	require.Len(t, backend.Batches, 1)
	body := backend.Batches[0][0].Body
	assert.Equal(t, "Ada", body["name"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "id", "unmapped fields never reach the index")
}

func TestFilteredRecordsNeverEnqueued(t *testing.T) {
	backend := searchtest.New()
	obs := &countingObserver{}
	s := stream.New(seedStore(100), backend, index, mapping,
		stream.WithBatchSize(30),
		stream.WithFilter(func(rec types.Record) bool {
			n, _ := rec.Fields["n"].(int)
			return n%2 == 0
		}),
		stream.WithObserver(obs),
	)

	summary, err := s.Sync(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 50, summary.Sent)
	assert.Equal(t, 50, summary.Filtered)
	assert.Len(t, obs.filtered, 50)

	for _, batch := range backend.Batches {
		for _, op := range batch {
			n := -1
			fmt.Sscanf(op.Id, "r-%03d", &n)
			assert.Zero(t, n%2, "filtered record %s must not appear in any batch", op.Id)
		}
	}
}

func TestFlushErrorDoesNotAbortSession(t *testing.T) {
	backend := searchtest.New()
	backend.FailNextBulk = fmt.Errorf("bulk rejected")
	obs := &countingObserver{}
	s := stream.New(seedStore(120), backend, index, mapping,
		stream.WithBatchSize(50),
		stream.WithObserver(obs),
	)

	summary, err := s.Sync(context.Background(), nil, nil)
	require.NoError(t, err, "a failed batch is reported, not fatal")

	require.Len(t, backend.Batches, 3, "streaming continues past the failed batch")
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 2, summary.Flushes)
	assert.Equal(t, 1, backend.Refreshes[index])

	require.Len(t, obs.errors, 1)
	assert.ErrorContains(t, obs.errors[0], "bulk rejected")
}

// refreshFailBackend fails every Refresh call.
type refreshFailBackend struct {
	*searchtest.Backend
}

func (b *refreshFailBackend) Refresh(ctx context.Context, index string) error {
	return fmt.Errorf("refresh timed out")
}

func TestRefreshErrorIsSessionOutcome(t *testing.T) {
	backend := &refreshFailBackend{Backend: searchtest.New()}
	s := stream.New(seedStore(10), backend, index, mapping, stream.WithBatchSize(50))

	summary, err := s.Sync(context.Background(), nil, nil)
	assert.ErrorContains(t, err, "refresh timed out")
	assert.Equal(t, 10, summary.Sent, "counts survive a failed finalize")
}

func TestSyncHonorsConditions(t *testing.T) {
	st := store.NewMemStore()
	st.Put(types.Record{Id: "1", Fields: map[string]any{"id": "1", "name": "Ada", "n": 1}})
	st.Put(types.Record{Id: "2", Fields: map[string]any{"id": "2", "name": "Alan", "n": 2}})
	backend := searchtest.New()
	s := stream.New(st, backend, index, mapping)

	summary, err := s.Sync(context.Background(), store.Conditions{"name": "Ada"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Sent)
	require.Len(t, backend.Batches, 1)
	assert.Equal(t, "1", backend.Batches[0][0].Id)
}

func TestSyncEmptyStoreStillRefreshes(t *testing.T) {
	backend := searchtest.New()
	s := stream.New(store.NewMemStore(), backend, index, mapping)

	summary, err := s.Sync(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Empty(t, backend.Batches)
	assert.Zero(t, summary.Sent)
	assert.Equal(t, 1, backend.Refreshes[index])
}
