package quota

import (
	"errors"
	"net/http"

	"rodeoai/internal/config"
)

var (
	// ErrModelNotAllowed is returned when the caller's tier does not include the requested model
	ErrModelNotAllowed = errors.New("model not allowed")

	// ErrPersonaNotAllowed is returned when the caller's tier does not include the requested persona
	ErrPersonaNotAllowed = errors.New("persona not allowed")

	// ErrQuotaExceeded is returned when the caller has used up today's token budget
	ErrQuotaExceeded = errors.New("daily quota exceeded")
)

// AdmissionError is a client-correctable rejection from the admission check.
// Kind is one of the sentinels above and is reachable through errors.Is.
type AdmissionError struct {
	Kind    error
	Tier    config.Tier
	Subject string
	Message string
}

func (e *AdmissionError) Error() string {
	return e.Message
}

func (e *AdmissionError) Unwrap() error {
	return e.Kind
}

// StatusCode maps the rejection onto an HTTP status
func (e *AdmissionError) StatusCode() int {
	if errors.Is(e.Kind, ErrQuotaExceeded) {
		return http.StatusTooManyRequests
	}
	return http.StatusForbidden
}
