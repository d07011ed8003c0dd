// Package searchtest provides a thread-safe in-memory search.Backend for
// tests. It mimics the parts of OpenSearch behavior the pipeline depends
// on: partial updates merge into the stored document, null-valued fields in
// a partial update remove the field, and missing documents come back as
// 404 StatusErrors.
package searchtest

import (
	"context"
	"net/http"
	"sync"

	"github.com/BRO3886/searchsync/internal/search"
)

var _ search.Backend = (*Backend)(nil)

type Backend struct {
	mu    sync.Mutex
	store map[string]map[string]map[string]any // index -> id -> document

	// Batches records every Bulk call in arrival order.
	Batches [][]search.BulkOp
	// Refreshes counts Refresh calls per index.
	Refreshes map[string]int
	// Updates records every Update call body in arrival order.
	Updates []UpdateCall

	IndexCalls  int
	UpdateCalls int
	DeleteCalls int

	// FailNextBulk makes the next Bulk call fail with the given error.
	FailNextBulk error
	// NotFoundOnUpdate forces the next Update call to report 404 even if
	// the document exists.
	NotFoundOnUpdate bool
}

func New() *Backend {
	return &Backend{
		store:     make(map[string]map[string]map[string]any),
		Refreshes: make(map[string]int),
	}
}

// UpdateCall is one recorded Update invocation.
type UpdateCall struct {
	Id   string
	Body map[string]any
}

func notFound() error {
	return &search.StatusError{Status: http.StatusNotFound, Body: "not found"}
}

func (b *Backend) EnsureIndex(ctx context.Context, index string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.store[index] == nil {
		b.store[index] = make(map[string]map[string]any)
	}
	return nil
}

func (b *Backend) PutMapping(ctx context.Context, index string, properties map[string]any) error {
	return nil
}

func (b *Backend) Index(ctx context.Context, index, id string, body map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.IndexCalls++
	b.index(index, id, body)
	return nil
}

func (b *Backend) index(index, id string, body map[string]any) {
	if b.store[index] == nil {
		b.store[index] = make(map[string]map[string]any)
	}
	doc := make(map[string]any, len(body))
	for k, v := range body {
		doc[k] = v
	}
	b.store[index][id] = doc
}

func (b *Backend) Update(ctx context.Context, index, id string, body map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.UpdateCalls++
	b.Updates = append(b.Updates, UpdateCall{Id: id, Body: body})

	if b.NotFoundOnUpdate {
		b.NotFoundOnUpdate = false
		return notFound()
	}

	doc, ok := b.store[index][id]
	if !ok {
		return notFound()
	}

	partial, ok := body["doc"].(map[string]any)
	if !ok {
		// scripted update, applied opaquely; nothing to merge
		return nil
	}
	for k, v := range partial {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, index, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.DeleteCalls++
	if _, ok := b.store[index][id]; !ok {
		return notFound()
	}
	delete(b.store[index], id)
	return nil
}

func (b *Backend) Bulk(ctx context.Context, ops []search.BulkOp) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := make([]search.BulkOp, len(ops))
	copy(batch, ops)
	b.Batches = append(b.Batches, batch)

	if err := b.FailNextBulk; err != nil {
		b.FailNextBulk = nil
		return err
	}

	for _, op := range ops {
		switch op.Action {
		case search.ActionIndex:
			b.index(op.Index, op.Id, op.Body)
		case search.ActionUpdate:
			if doc, ok := b.store[op.Index][op.Id]; ok {
				for k, v := range op.Body {
					doc[k] = v
				}
			}
		case search.ActionDelete:
			delete(b.store[op.Index], op.Id)
		}
	}
	return nil
}

func (b *Backend) Count(ctx context.Context, index string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.store[index])), nil
}

func (b *Backend) Search(ctx context.Context, index, query string) ([]search.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	docs := make([]search.Document, 0, len(b.store[index]))
	for _, doc := range b.store[index] {
		docs = append(docs, search.Document(doc))
	}
	return docs, nil
}

func (b *Backend) Refresh(ctx context.Context, index string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Refreshes[index]++
	return nil
}

// Get lets tests inspect the stored document for an id.
func (b *Backend) Get(index, id string) (map[string]any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.store[index][id]
	return doc, ok
}
