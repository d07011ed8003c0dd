// Package store defines the primary record store boundary consumed by the
// sync pipeline.
package store

import (
	"context"
	"errors"

	"github.com/BRO3886/searchsync/internal/types"
)

// ErrCursorDone signals a cursor has produced its last record.
var ErrCursorDone = errors.New("cursor exhausted")

// Cursor streams records matching a query. Iteration is pull-based: the
// consumer pauses the stream simply by not calling Next, which is how the
// sync pipeline applies backpressure while a flush is in flight.
type Cursor interface {
	// Next returns the next record, or ErrCursorDone once the cursor is
	// exhausted.
	Next(ctx context.Context) (types.Record, error)
	Close() error
}

// Conditions is an equality match on field values. Empty matches all.
type Conditions map[string]any

// Store is the record source for full re-synchronization.
type Store interface {
	// Find opens a cursor over records matching conditions. projection
	// restricts the returned fields when non-empty; batchSize is the
	// server-side page size hint.
	Find(ctx context.Context, conditions Conditions, projection []string, batchSize int) (Cursor, error)
}
