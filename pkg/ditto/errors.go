// pkg/ditto/errors.go
package ditto

import (
	"errors"
	"fmt"
	"net/http"
)

// --- Result variants of the twin service API ---

var (
	// ErrNotFound means the thing, feature or policy does not exist (404).
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized means the credentials were rejected (401). Never retried.
	ErrUnauthorized = errors.New("authentication failed")
	// ErrForbidden means the credentials lack permission (403). Never retried.
	ErrForbidden = errors.New("access forbidden")
)

// TransportError wraps a network-level failure: connection refused, DNS,
// timeout, truncated body. It is the only error class that is always retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: transport: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is any response status outside the fixed mapping.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Code, e.Body)
}

// Outcome is the successful result of a write.
type Outcome int

const (
	Updated       Outcome = iota // 200 or 204
	Created                      // 201
	AlreadyExists                // 409, or 412 for a conditional create
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already-exists"
	default:
		return "updated"
	}
}

// IsRetryable reports whether repeating the call could change its result.
// Transport failures and 5xx responses qualify; auth decisions, 404s and
// other client errors do not.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}
	return false
}

// IsAuthFailure reports an authentication or authorization rejection.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

func statusErr(op string, code int, body []byte) error {
	switch code {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return &StatusError{Op: op, Code: code, Body: string(body)}
}

// resultLabel names an error class for metrics.
func resultLabel(err error) string {
	var te *TransportError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return "transport"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "status"
	}
}
