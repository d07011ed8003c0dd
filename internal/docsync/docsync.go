// Package docsync implements the per-document indexing protocol: mapping
// aware serialization, index-or-partial-update with a single not-found
// fallback, field removal in either scripted or doc-null encoding, and
// delete with idempotent not-found handling.
package docsync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/BRO3886/searchsync/internal/search"
)

// Mapping declares the indexed fields: field name to type declaration, as
// put into the index mapping. Serialization drops anything not declared
// here.
type Mapping map[string]any

// Fields returns the declared field names in stable order.
func (m Mapping) Fields() []string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Properties renders the mapping as index mapping properties, expanding
// shorthand string types into {"type": ...} objects.
func (m Mapping) Properties() map[string]any {
	props := make(map[string]any, len(m))
	for f, decl := range m {
		if t, ok := decl.(string); ok {
			props[f] = map[string]any{"type": t}
			continue
		}
		props[f] = decl
	}
	return props
}

// Serialize converts record fields into an index-ready body, keeping only
// fields the mapping declares.
func Serialize(fields map[string]any, mapping Mapping) map[string]any {
	body := make(map[string]any, len(mapping))
	for f := range mapping {
		if v, ok := fields[f]; ok {
			body[f] = v
		}
	}
	return body
}

// Protocol performs single-document writes against one index.
type Protocol struct {
	backend search.Backend
	index   string
	script  bool
}

// New returns a Protocol for index. script selects the scripted unset
// encoding over doc-null partial updates.
func New(backend search.Backend, index string, script bool) *Protocol {
	return &Protocol{backend: backend, index: index, script: script}
}

func (p *Protocol) Script() bool { return p.script }
func (p *Protocol) Index() string { return p.index }

// IndexOrUpdate writes body for id. When update is false this is a full
// index (replace). When update is true it is a partial update; if the
// backend reports the document missing, the write is retried exactly once
// as a full index. The retry is always a full index regardless of the
// update flag, and there is never a second retry.
func (p *Protocol) IndexOrUpdate(ctx context.Context, id string, body map[string]any, update bool) error {
	if !update {
		return p.backend.Index(ctx, p.index, id, body)
	}

	err := p.backend.Update(ctx, p.index, id, map[string]any{"doc": body})
	if search.IsNotFound(err) {
		return p.backend.Index(ctx, p.index, id, body)
	}
	return err
}

// UnsetFields removes the named fields from the indexed document. In
// script mode the removals are concatenated into a single update script;
// otherwise a partial update maps each field to null, which the backend
// interprets as removal.
func (p *Protocol) UnsetFields(ctx context.Context, id string, fields []string) error {
	if len(fields) == 0 {
		return nil
	}

	if p.script {
		var script strings.Builder
		for _, f := range fields {
			script.WriteString(fmt.Sprintf("ctx._source.remove('%s');", f))
		}
		body := map[string]any{
			"script": map[string]any{
				"source": script.String(),
				"lang":   "painless",
			},
		}
		return p.backend.Update(ctx, p.index, id, body)
	}

	doc := make(map[string]any, len(fields))
	for _, f := range fields {
		doc[f] = nil
	}
	return p.backend.Update(ctx, p.index, id, map[string]any{"doc": doc})
}

// Remove deletes the indexed document for id. A not-found response
// resolves successfully: already absent is an acceptable end state for a
// delete. Every other error class surfaces.
func (p *Protocol) Remove(ctx context.Context, id string) error {
	err := p.backend.Delete(ctx, p.index, id)
	if search.IsNotFound(err) {
		return nil
	}
	return err
}
