// ABOUTME: Tagged error type for upstream API failures
// ABOUTME: Classifies upstream responses before they cross the package boundary

package bsky

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind partitions upstream failures into the categories the HTTP layer
// maps onto status codes. Anything the upstream does that doesn't fit a
// category is KindUnexpected and must not leak its cause to clients.
type Kind int

const (
	// KindUnexpected covers network failures and unrecognized upstream errors
	KindUnexpected Kind = iota

	// KindValidation is a malformed or rejected request (upstream 400)
	KindValidation

	// KindAuth means the upstream no longer accepts our credentials
	KindAuth

	// KindNotFound means the requested entity does not exist upstream
	KindNotFound

	// KindRateLimited is an upstream 429, relayed so the caller can back off
	KindRateLimited
)

// String returns a short name for the kind, used in logs.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unexpected"
	}
}

// Error is the only error type this package returns for upstream failures.
type Error struct {
	Kind    Kind
	Message string

	// StatusCode is the upstream HTTP status, 0 for transport failures
	StatusCode int
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

// xrpcError is the wire shape of upstream error bodies.
type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify builds a tagged Error from an upstream status code and body.
func classify(status int, body []byte) *Error {
	var payload xrpcError
	_ = json.Unmarshal(body, &payload)

	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	kind := KindUnexpected
	switch {
	case status == http.StatusBadRequest:
		kind = KindValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	}

	// The appview reports missing records as InvalidRequest with a NotFound
	// error name rather than a 404.
	if kind == KindValidation && payload.Error == "NotFound" {
		kind = KindNotFound
	}

	return &Error{Kind: kind, Message: msg, StatusCode: status}
}

// transportError wraps a network-level failure as KindUnexpected.
func transportError(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: err.Error()}
}

// KindOf extracts the Kind from an error chain, KindUnexpected for
// anything that is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// IsAuth reports whether err is an upstream auth failure.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsNotFound reports whether err is an upstream not-found.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsRateLimited reports whether err is an upstream rate limit.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }
