package hooks_test

import (
	"context"
	"testing"

	"github.com/BRO3886/searchsync/internal/docsync"
	"github.com/BRO3886/searchsync/internal/hooks"
	"github.com/BRO3886/searchsync/internal/searchtest"
	"github.com/BRO3886/searchsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const index = "records"

var mapping = docsync.Mapping{
	"name":  "text",
	"email": "keyword",
	"city":  "keyword",
}

func record(id string, fields map[string]any) types.Record {
	return types.Record{Id: id, Fields: fields}
}

// recordingObserver keeps the outcomes it saw.
type recordingObserver struct {
	indexed  []string
	removed  []string
	filtered []string
	lastErr  error
}

func (o *recordingObserver) Indexed(rec types.Record, err error) {
	o.indexed = append(o.indexed, rec.Id)
	o.lastErr = err
}

func (o *recordingObserver) Removed(rec types.Record, err error) {
	o.removed = append(o.removed, rec.Id)
	o.lastErr = err
}

func (o *recordingObserver) Filtered(rec types.Record) {
	o.filtered = append(o.filtered, rec.Id)
}

func TestPostSaveNewRecordFullIndex(t *testing.T) {
	backend := searchtest.New()
	binder := hooks.NewBinder(docsync.New(backend, index, false), mapping, nil)
	obs := &recordingObserver{}
	binder.Observe(obs)

	rec := record("1", map[string]any{"name": "Ada", "email": "ada@example.com", "secret": "x"})
	mc := binder.PreSave(rec, true)
	assert.True(t, mc.IsNew)
	assert.Empty(t, mc.UnsetFields, "new records have nothing to unset")

	require.NoError(t, binder.PostSave(context.Background(), rec, mc))

	assert.Equal(t, 1, backend.IndexCalls)
	assert.Zero(t, backend.UpdateCalls, "new records take the full index path")
	doc, ok := backend.Get(index, "1")
	require.True(t, ok)
	assert.Equal(t, "Ada", doc["name"])
	assert.NotContains(t, doc, "secret")
	assert.Equal(t, []string{"1"}, obs.indexed)
	assert.NoError(t, obs.lastErr)
}

func TestPreSaveDiffsUnsetFields(t *testing.T) {
	binder := hooks.NewBinder(docsync.New(searchtest.New(), index, false), mapping, nil)

	// city dropped entirely, email explicitly nilled
	rec := record("1", map[string]any{"name": "Ada", "email": nil})
	mc := binder.PreSave(rec, false)

	assert.False(t, mc.IsNew)
	assert.ElementsMatch(t, []string{"city", "email"}, mc.UnsetFields)
}

func TestPostSaveDirtyRecordPartialUpdateWithDocNulls(t *testing.T) {
	backend := searchtest.New()
	require.NoError(t, backend.Index(context.Background(), index, "1",
		map[string]any{"name": "Ada", "email": "ada@example.com", "city": "London"}))
	binder := hooks.NewBinder(docsync.New(backend, index, false), mapping, nil)

	rec := record("1", map[string]any{"name": "Ada Lovelace", "email": "ada@example.org"})
	mc := binder.PreSave(rec, false)
	require.NoError(t, binder.PostSave(context.Background(), rec, mc))

	require.Equal(t, 1, backend.UpdateCalls, "doc mode folds unsets into the one partial update")
	doc, _ := backend.Get(index, "1")
	assert.Equal(t, "Ada Lovelace", doc["name"])
	assert.Equal(t, "ada@example.org", doc["email"])
	assert.NotContains(t, doc, "city", "unset field removed via null-valued doc entry")
}

func TestPostSaveDirtyRecordScriptModeFollowUp(t *testing.T) {
	backend := searchtest.New()
	require.NoError(t, backend.Index(context.Background(), index, "1",
		map[string]any{"name": "Ada", "city": "London"}))
	binder := hooks.NewBinder(docsync.New(backend, index, true), mapping, nil)

	rec := record("1", map[string]any{"name": "Ada", "email": "ada@example.com"})
	mc := binder.PreSave(rec, false)
	require.NoError(t, binder.PostSave(context.Background(), rec, mc))

	require.Equal(t, 2, backend.UpdateCalls, "partial update then one scripted unset")
	script, ok := backend.Updates[1].Body["script"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ctx._source.remove('city');", script["source"])
}

func TestPostSaveUpdateNotFoundFallsBackToIndex(t *testing.T) {
	backend := searchtest.New()
	binder := hooks.NewBinder(docsync.New(backend, index, false), mapping, nil)

	// record claims to be an update but was never indexed
	rec := record("1", map[string]any{"name": "Ada", "email": "a@b.c", "city": "London"})
	mc := binder.PreSave(rec, false)
	require.NoError(t, binder.PostSave(context.Background(), rec, mc))

	assert.Equal(t, 1, backend.UpdateCalls)
	assert.Equal(t, 1, backend.IndexCalls)
	_, ok := backend.Get(index, "1")
	assert.True(t, ok)
}

func TestPostSaveFilteredNewRecordNeverRemoves(t *testing.T) {
	backend := searchtest.New()
	filter := func(rec types.Record) bool { return false }
	binder := hooks.NewBinder(docsync.New(backend, index, false), mapping, filter)
	obs := &recordingObserver{}
	binder.Observe(obs)

	rec := record("1", map[string]any{"name": "Ada"})
	mc := binder.PreSave(rec, true)
	require.NoError(t, binder.PostSave(context.Background(), rec, mc))

	assert.Zero(t, backend.DeleteCalls, "a brand-new filtered record was never indexed")
	assert.Zero(t, backend.IndexCalls)
	assert.Equal(t, []string{"1"}, obs.filtered)
	assert.Empty(t, obs.removed)
}

func TestPostSaveFilteredExistingRecordEvicted(t *testing.T) {
	backend := searchtest.New()
	require.NoError(t, backend.Index(context.Background(), index, "1", map[string]any{"name": "Ada"}))
	filter := func(rec types.Record) bool {
		archived, _ := rec.Fields["archived"].(bool)
		return !archived
	}
	binder := hooks.NewBinder(docsync.New(backend, index, false), mapping, filter)
	obs := &recordingObserver{}
	binder.Observe(obs)

	rec := record("1", map[string]any{"name": "Ada", "archived": true})
	mc := binder.PreSave(rec, false)
	require.NoError(t, binder.PostSave(context.Background(), rec, mc))

	_, ok := backend.Get(index, "1")
	assert.False(t, ok, "previously indexed record is evicted once filtered")
	assert.Equal(t, []string{"1"}, obs.filtered)
	assert.Equal(t, []string{"1"}, obs.removed)
	assert.NoError(t, obs.lastErr)
}

func TestPostRemoveAlwaysDeletes(t *testing.T) {
	backend := searchtest.New()
	require.NoError(t, backend.Index(context.Background(), index, "1", map[string]any{"name": "Ada"}))
	binder := hooks.NewBinder(docsync.New(backend, index, false), mapping, nil)
	obs := &recordingObserver{}
	binder.Observe(obs)

	rec := record("1", map[string]any{"name": "Ada"})
	require.NoError(t, binder.PostRemove(context.Background(), rec))

	_, ok := backend.Get(index, "1")
	assert.False(t, ok)
	assert.Equal(t, []string{"1"}, obs.removed)
}

func TestPostRemoveOfAbsentRecordResolves(t *testing.T) {
	backend := searchtest.New()
	binder := hooks.NewBinder(docsync.New(backend, index, false), mapping, nil)

	err := binder.PostRemove(context.Background(), record("ghost", map[string]any{"name": "x"}))
	assert.NoError(t, err)
}

func TestObserverScopes(t *testing.T) {
	backend := searchtest.New()
	binder := hooks.NewBinder(docsync.New(backend, index, false), mapping, nil)

	collection := &recordingObserver{}
	instance := &recordingObserver{}
	binder.Observe(collection)
	binder.ObserveRecord("1", instance)

	for _, id := range []string{"1", "2"} {
		rec := record(id, map[string]any{"name": "x"})
		mc := binder.PreSave(rec, true)
		require.NoError(t, binder.PostSave(context.Background(), rec, mc))
	}

	assert.Equal(t, []string{"1", "2"}, collection.indexed, "collection scope sees every record")
	assert.Equal(t, []string{"1"}, instance.indexed, "instance scope sees only its record")
}
