package llm

import (
	"fmt"
	"net/http"
)

// ErrRateLimit indicates the provider answered 429.
type ErrRateLimit struct {
	Err error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("llm rate limited: %v", e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down, unreachable or
// refused the request.
type ErrProviderUnavailable struct {
	Status int
	Err    error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm provider unavailable (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("llm provider unavailable: %v", e.Err)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrEmptyResponse indicates the provider returned no usable text.
type ErrEmptyResponse struct {
	Reason string
}

func (e *ErrEmptyResponse) Error() string {
	return "llm returned no content: " + e.Reason
}

// FromStatus classifies an HTTP status reported by a provider SDK.
func FromStatus(status int, err error) error {
	if status == http.StatusTooManyRequests {
		return &ErrRateLimit{Err: err}
	}
	return &ErrProviderUnavailable{Status: status, Err: err}
}
