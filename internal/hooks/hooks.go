// Package hooks binds primary-store mutation events to the indexing
// protocol. PreSave captures what the persistence is about to change,
// PostSave and PostRemove push the result into the index and report the
// outcome to instance- and collection-scoped observers.
package hooks

import (
	"context"
	"sync"

	"github.com/BRO3886/searchsync/internal/docsync"
	"github.com/BRO3886/searchsync/internal/types"
)

// MutationContext carries per-save state from PreSave into PostSave. It is
// an explicit value rather than state on a shared instance, so concurrent
// saves of different records cannot race on it.
type MutationContext struct {
	IsNew       bool
	UnsetFields []string
}

// Observer receives indexing outcomes for records passing through the
// binder.
type Observer interface {
	Indexed(rec types.Record, err error)
	Removed(rec types.Record, err error)
	Filtered(rec types.Record)
}

// Binder wires mutation hooks for one collection to one index.
type Binder struct {
	proto   *docsync.Protocol
	mapping docsync.Mapping
	filter  types.Filter

	mu         sync.RWMutex
	collection []Observer
	instances  map[string][]Observer
}

func NewBinder(proto *docsync.Protocol, mapping docsync.Mapping, filter types.Filter) *Binder {
	return &Binder{
		proto:     proto,
		mapping:   mapping,
		filter:    filter,
		instances: make(map[string][]Observer),
	}
}

// Observe registers a collection-scoped observer, notified for every
// record.
func (b *Binder) Observe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collection = append(b.collection, o)
}

// ObserveRecord registers an instance-scoped observer, notified only for
// the record with the given id.
func (b *Binder) ObserveRecord(id string, o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.instances[id] = append(b.instances[id], o)
}

// observers returns every observer interested in rec: instance scope
// first, then collection scope.
func (b *Binder) observers(rec types.Record) []Observer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Observer, 0, len(b.instances[rec.Id])+len(b.collection))
	out = append(out, b.instances[rec.Id]...)
	out = append(out, b.collection...)
	return out
}

// PreSave captures the pending mutation before the store persists rec.
// For an existing record it diffs the in-memory fields against the mapping
// to find fields that became unset since last persistence.
func (b *Binder) PreSave(rec types.Record, isNew bool) MutationContext {
	mc := MutationContext{IsNew: isNew}
	if isNew {
		return mc
	}
	for _, f := range b.mapping.Fields() {
		if v, ok := rec.Fields[f]; !ok || v == nil {
			mc.UnsetFields = append(mc.UnsetFields, f)
		}
	}
	return mc
}

// PostSave indexes the saved record. New records get a full index write,
// existing ones a partial update carrying the unset fields; under the
// scripted encoding the unsets go out as a separate call. A record the
// filter rejects is evicted from the index, unless it is brand new and so
// was never indexed.
func (b *Binder) PostSave(ctx context.Context, rec types.Record, mc MutationContext) error {
	if b.filter != nil && !b.filter(rec) {
		for _, o := range b.observers(rec) {
			o.Filtered(rec)
		}
		if mc.IsNew {
			return nil
		}
		err := b.proto.Remove(ctx, rec.Id)
		for _, o := range b.observers(rec) {
			o.Removed(rec, err)
		}
		return err
	}

	body := docsync.Serialize(rec.Fields, b.mapping)
	if !mc.IsNew && !b.proto.Script() {
		// doc-null encoding folds the removals into the same partial
		// update
		for _, f := range mc.UnsetFields {
			body[f] = nil
		}
	}

	err := b.proto.IndexOrUpdate(ctx, rec.Id, body, !mc.IsNew)
	if err == nil && !mc.IsNew && b.proto.Script() && len(mc.UnsetFields) > 0 {
		err = b.proto.UnsetFields(ctx, rec.Id, mc.UnsetFields)
	}

	for _, o := range b.observers(rec) {
		o.Indexed(rec, err)
	}
	return err
}

// PostRemove evicts the removed record from the index, whether or not the
// filter would have admitted it.
func (b *Binder) PostRemove(ctx context.Context, rec types.Record) error {
	err := b.proto.Remove(ctx, rec.Id)
	for _, o := range b.observers(rec) {
		o.Removed(rec, err)
	}
	return err
}
