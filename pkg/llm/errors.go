package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-success answer from a model endpoint.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: status %d, body: %s", e.Provider, e.StatusCode, e.Body)
}

// StatusCode extracts the upstream status from err, 0 if err carries none.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// IsRateLimited reports an upstream 429.
func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

// IsQuotaExhausted reports an upstream 402.
func IsQuotaExhausted(err error) bool {
	return StatusCode(err) == http.StatusPaymentRequired
}

// ErrEmptyResponse is returned when the model produced no candidates at all.
var ErrEmptyResponse = errors.New("empty response from model")
