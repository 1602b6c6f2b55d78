package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure. Each network retrieval maps to exactly one
// kind so the caller can decide what is retryable without string matching.
type Kind string

const (
	KindTimeout    Kind = "timeout"     // deadline exceeded (request or context)
	KindConnection Kind = "connection"  // dial/TLS/reset — no usable response
	KindHTTPStatus Kind = "http_status" // response arrived with a non-2xx status
	KindDecode     Kind = "decode"      // body arrived but could not be decoded
)

// Error is the typed failure returned by Fetch and Document.JSON.
type Error struct {
	Kind   Kind
	URL    string
	Status int // set for KindHTTPStatus
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a fetch *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == k
}

// KindOf returns the kind of a fetch error, or "" for other errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not a
// KindHTTPStatus fetch error.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindHTTPStatus {
		return fe.Status
	}
	return 0
}
