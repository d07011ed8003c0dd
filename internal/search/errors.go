package search

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError carries the backend HTTP status alongside the response body.
//
// The status matters: 404 drives the update→index fallback and the
// delete-of-absent contract, so it must survive wrapping.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// IsNotFound reports whether err is a backend not-found response.
func IsNotFound(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusNotFound
	}
	return false
}
