package store

import (
	"context"
	"reflect"
	"sync"

	"github.com/BRO3886/searchsync/internal/types"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store. It backs the sync demo mode and tests.
type MemStore struct {
	mu      sync.RWMutex
	records []types.Record
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

// Put appends or replaces the record with the same id.
func (m *MemStore) Put(rec types.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].Id == rec.Id {
			m.records[i] = rec
			return
		}
	}
	m.records = append(m.records, rec)
}

// Delete drops the record with the given id, if present.
func (m *MemStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].Id == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return
		}
	}
}

func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemStore) Find(ctx context.Context, conditions Conditions, projection []string, batchSize int) (Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if batchSize <= 0 {
		batchSize = 50
	}

	var matched []types.Record
	for _, rec := range m.records {
		if !matches(rec, conditions) {
			continue
		}
		matched = append(matched, project(rec, projection))
	}

	return &memCursor{records: matched, batchSize: batchSize}, nil
}

func matches(rec types.Record, conditions Conditions) bool {
	for field, want := range conditions {
		got, ok := rec.Fields[field]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func project(rec types.Record, projection []string) types.Record {
	if len(projection) == 0 {
		return rec
	}
	fields := make(map[string]any, len(projection)+1)
	// id always survives projection, the pipeline needs it for addressing
	if v, ok := rec.Fields["id"]; ok {
		fields["id"] = v
	}
	for _, f := range projection {
		if v, ok := rec.Fields[f]; ok {
			fields[f] = v
		}
	}
	return types.Record{Id: rec.Id, Fields: fields}
}

// memCursor pages through its snapshot batchSize records at a time,
// mirroring how a server-side cursor refills its buffer.
type memCursor struct {
	records   []types.Record
	batchSize int

	buf    []types.Record
	offset int
	closed bool
}

func (c *memCursor) Next(ctx context.Context) (types.Record, error) {
	if err := ctx.Err(); err != nil {
		return types.Record{}, err
	}
	if c.closed {
		return types.Record{}, ErrCursorDone
	}

	if len(c.buf) == 0 {
		if c.offset >= len(c.records) {
			c.closed = true
			return types.Record{}, ErrCursorDone
		}
		end := c.offset + c.batchSize
		if end > len(c.records) {
			end = len(c.records)
		}
		c.buf = c.records[c.offset:end]
		c.offset = end
	}

	rec := c.buf[0]
	c.buf = c.buf[1:]
	return rec, nil
}

func (c *memCursor) Close() error {
	c.closed = true
	return nil
}
