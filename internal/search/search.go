package search

import "context"

type Document map[string]any

// BulkAction is the kind of a bulk operation.
type BulkAction string

const (
	ActionIndex  BulkAction = "index"
	ActionUpdate BulkAction = "update"
	ActionDelete BulkAction = "delete"
)

// BulkOp is a single operation awaiting a bulk flush. It is immutable once
// handed to a queue.
type BulkOp struct {
	Action BulkAction
	Index  string
	Id     string
	Body   map[string]any
}

// Backend is the search-engine boundary. Every call is synchronous from the
// caller's point of view and returns the backend result or an error; backend
// status codes are preserved via StatusError so callers can tell a missing
// document apart from a genuine failure.
type Backend interface {
	EnsureIndex(ctx context.Context, index string) error
	PutMapping(ctx context.Context, index string, properties map[string]any) error
	Index(ctx context.Context, index, id string, body map[string]any) error
	Update(ctx context.Context, index, id string, body map[string]any) error
	Delete(ctx context.Context, index, id string) error
	Bulk(ctx context.Context, ops []BulkOp) error
	Count(ctx context.Context, index string) (int64, error)
	Search(ctx context.Context, index, query string) ([]Document, error)
	Refresh(ctx context.Context, index string) error
}
