package diva

import (
	"errors"
	"fmt"
)

// ErrorKind classifies remote call failures.
type ErrorKind string

const (
	// KindValidation covers locally detected bad filter fields.
	KindValidation ErrorKind = "validation"
	// KindTransport covers network-level failures before an HTTP status
	// was received.
	KindTransport ErrorKind = "transport"
	// KindHTTP covers non-2xx responses from the DiVA API.
	KindHTTP ErrorKind = "http"
)

// APIError is the typed error for every remote failure. The client never
// retries; errors propagate to the caller as-is.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Code       string // embedded error_code from the response body, if any
	Message    string
	Response   map[string]any
}

func (e *APIError) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("DiVA API transport error: %s", e.Message)
	}
	return fmt.Sprintf("DiVA API error %d: %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps err into an *APIError when possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsRateLimited reports whether err is the DiVA 429 response.
func IsRateLimited(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.StatusCode == 429
}
