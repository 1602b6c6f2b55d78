package resolve

import (
	"errors"
	"fmt"
)

// Kind classifies why a resolution failed.
type Kind string

const (
	// KindNotFound means every strategy ran and none produced a stream.
	KindNotFound Kind = "not_found"
	// KindUnsupported means the page points at a provider we will not
	// serve (denied host or rejected media type).
	KindUnsupported Kind = "unsupported"
	// KindTransient means a network-level failure that may succeed on
	// retry. This is the only retryable kind.
	KindTransient Kind = "transient"
)

// ErrUnsupportedProvider is returned by strategies that positively
// identify a provider we refuse to resolve.
var ErrUnsupportedProvider = errors.New("unsupported stream provider")

// Error is a classified resolution failure for one page.
type Error struct {
	Kind    Kind
	PageURL string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s (%s): %v", e.PageURL, e.Kind, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", e.PageURL, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a resolution error of kind k.
func IsKind(err error, k Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == k
}

// KindOf returns the kind of a resolution error, or "" for other errors.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// Retryable reports whether err may succeed if retried.
func Retryable(err error) bool { return IsKind(err, KindTransient) }
