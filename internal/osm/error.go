package osm

import "fmt"

// StatusCodeError is returned when a service answers with a non-200 status.
type StatusCodeError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusCodeError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.StatusCode, e.Body)
}
