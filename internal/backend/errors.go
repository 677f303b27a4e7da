package backend

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAPI is the sentinel wrapped by every APIError.
var ErrAPI = errors.New("backend api error")

// ErrUnauthenticated marks a response the backend rejected with 401. By the
// time a caller observes it the credential store has already been cleared.
var ErrUnauthenticated = errors.New("backend rejected credential")

// APIError describes a non-2xx backend response.
type APIError struct {
	StatusCode int
	Status     string
	Summary    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	status := strings.TrimSpace(e.Status)
	summary := strings.TrimSpace(e.Summary)
	if status != "" && summary != "" {
		return fmt.Sprintf("backend api error: %s: %s", status, summary)
	}
	if status != "" {
		return fmt.Sprintf("backend api error: %s", status)
	}
	if summary != "" {
		return fmt.Sprintf("backend api error: %s", summary)
	}
	return "backend api error"
}

func (e *APIError) Unwrap() error {
	return ErrAPI
}
