package types

import (
	"fmt"
	"net/url"
	"strings"
)

// Record is a single primary-store record, keyed by its store id.
type Record struct {
	Id     string
	Fields map[string]any
}

// Filter decides whether a record belongs in the index at all.
type Filter func(Record) bool

// RecordFromObject builds a Record from a raw store object, pulling the id
// out of the "id" field. Ids containing slashes are path-escaped so they
// stay usable as document ids in URLs.
func RecordFromObject(object map[string]any) (Record, error) {
	if object == nil {
		return Record{}, fmt.Errorf("object is nil")
	}

	id := fmt.Sprintf("%v", object["id"])
	if id == "" || id == "<nil>" {
		return Record{}, fmt.Errorf("object id is empty for %+v", object)
	}

	if strings.Contains(id, "/") {
		id = url.PathEscape(id)
	}

	return Record{Id: id, Fields: object}, nil
}
