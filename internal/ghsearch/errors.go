package ghsearch

import (
	"errors"
	"fmt"
)

// APIError represents a non-retryable GitHub search API error response.
// It carries the HTTP status and the response body message so failures can
// be diagnosed without re-running discovery.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: search failed (%d): %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// IsFatal checks if the error aborts discovery (any non-retryable API error).
func IsFatal(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
