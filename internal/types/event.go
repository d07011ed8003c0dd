package types

// Mutation ops as they appear on the wire, CDC style.
const (
	OpCreate = "c"
	OpUpdate = "u"
	OpDelete = "d"
)

// MutationEvent is one primary-store mutation as published on the event
// stream. For deletes Before carries the last known state and After is nil.
type MutationEvent struct {
	Before    map[string]any `json:"before"`
	After     map[string]any `json:"after"`
	Op        string         `json:"op"`
	TimeStamp int64          `json:"ts_ms"`
}

// Object returns the side of the event that identifies the record: After
// for creates and updates, Before for deletes.
func (e MutationEvent) Object() map[string]any {
	if e.Op == OpDelete {
		return e.Before
	}
	return e.After
}
