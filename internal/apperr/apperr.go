// Package apperr classifies failures so callers can decide between
// surfacing, degrading and retrying without string-matching error text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind buckets an error by how the pipeline must react to it.
type Kind int

const (
	// Input: missing required file/field or malformed request. Surfaced
	// immediately, never retried.
	Input Kind = iota
	// Render: unreadable or corrupt document; the comparison cannot
	// proceed for that document.
	Render
	// Service: external OCR/grammar/vision call failure. Recovered locally
	// with a degraded result.
	Service
	// RateLimit: external service throttling. Retried with bounded backoff
	// on the document-level OCR path only.
	RateLimit
	// Storage: blob read/write/list/delete failure.
	Storage
	// Consistency: promotion of a reference that no longer exists, or a
	// version mismatch. Blocks promotion.
	Consistency
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case Render:
		return "render"
	case Service:
		return "service"
	case RateLimit:
		return "rate-limit"
	case Storage:
		return "storage"
	case Consistency:
		return "consistency"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside a wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error without a cause.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. A nil cause yields nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err (or anything it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
