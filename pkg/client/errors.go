package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures surfaced by a VisionClient
type Kind int

const (
	KindNetwork Kind = iota
	KindAuth
	KindRateLimit
	KindMalformedResponse
)

// Sentinels matched by errors.Is against an *APIError of the same kind
var (
	ErrNetwork           = errors.New("network failure")
	ErrAuth              = errors.New("authentication failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "network"
	}
}

// Message is the user facing text for the kind
func (k Kind) Message() string {
	switch k {
	case KindAuth:
		return "Could not authenticate with the vision service. Check your credentials."
	case KindRateLimit:
		return "Too many requests to the vision service. Please try again later."
	case KindMalformedResponse:
		return "The vision service returned something we couldn't understand."
	default:
		return "Network issue while contacting the vision service. Please retry."
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindAuth:
		return ErrAuth
	case KindRateLimit:
		return ErrRateLimited
	case KindMalformedResponse:
		return ErrMalformedResponse
	default:
		return ErrNetwork
	}
}

// APIError is returned by every backend for transport, auth and decoding
// failures.
type APIError struct {
	Kind       Kind
	Backend    string
	StatusCode int
	Err        error
}

// NewError wraps err with a kind
func NewError(backend string, kind Kind, err error) *APIError {
	return &APIError{Kind: kind, Backend: backend, Err: err}
}

// FromStatus classifies a non-2xx HTTP status
func FromStatus(backend string, status int, err error) *APIError {
	if err == nil {
		err = fmt.Errorf("status %d %s", status, http.StatusText(status))
	}
	return &APIError{Kind: ClassifyStatus(status), Backend: backend, StatusCode: status, Err: err}
}

func (e *APIError) Error() string {
	msg := e.Kind.Message()
	if e.Backend != "" {
		msg = e.Backend + ": " + msg
	}
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *APIError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// ClassifyStatus maps an HTTP status code onto a Kind
func ClassifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	default:
		return KindNetwork
	}
}

// Transport wraps an error from the HTTP layer, leaving context cancellation
// untouched so callers can still match it.
func Transport(backend string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return NewError(backend, KindNetwork, err)
}

// UserMessage renders an analysis failure for display
func UserMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Kind.Message()
	case errors.Is(err, context.Canceled):
		return "Analysis was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The vision service took too long to answer. Please retry."
	default:
		return err.Error()
	}
}
