package backend

import "fmt"

// StatusError reports a non-2xx upstream response. Body carries the raw
// response text, which is usually a JSON error envelope but is kept
// best-effort verbatim when it is not.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream request failed (%d)", e.Status)
	}
	return fmt.Sprintf("upstream request failed (%d): %s", e.Status, e.Body)
}
