// Package apperr defines the error kinds returned by the scheduling services.
package apperr

import (
	"context"
	"errors"
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/store"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	// KindInfrastructure errors are transient and may be retried by the caller.
	KindInfrastructure
	// KindPartial means the primary write committed but a follow-up step failed.
	KindPartial
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindInfrastructure:
		return "infrastructure"
	case KindPartial:
		return "partial"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(code, format string, args ...any) *Error {
	return newf(KindNotFound, code, format, args...)
}

func Validation(code, format string, args ...any) *Error {
	return newf(KindValidation, code, format, args...)
}

func Conflict(code, format string, args ...any) *Error {
	return newf(KindConflict, code, format, args...)
}

func Infrastructure(code string, err error) *Error {
	return &Error{Kind: KindInfrastructure, Code: code, Msg: "temporarily unavailable", Err: err}
}

func Internal(code string, err error) *Error {
	return &Error{Kind: KindInternal, Code: code, Err: err}
}

// PartialError reports that the operation's main write succeeded and Result
// holds it, but the follow-up Op failed. Callers should reconcile.
type PartialError struct {
	Op     string
	Result any
	Err    error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("committed, but %s failed: %v", e.Op, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

func Partial(op string, result any, err error) *PartialError {
	return &PartialError{Op: op, Result: result, Err: err}
}

// KindOf classifies err. A PartialError wins over whatever it wraps.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var p *PartialError
	if errors.As(err, &p) {
		return KindPartial
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, store.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return KindInfrastructure
	}
	return KindInternal
}

func CodeOf(err error) string {
	var p *PartialError
	if errors.As(err, &p) {
		return "partial_failure"
	}
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return KindOf(err).String()
}

func IsRetryable(err error) bool {
	return KindOf(err) == KindInfrastructure
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromStore maps a store error about subject (e.g. "appointment") onto the
// taxonomy. Errors that already carry a kind pass through.
func FromStore(err error, subject string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var p *PartialError
	if errors.As(err, &p) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Code: subject + "_not_found", Msg: subject + " not found", Err: err}
	case errors.Is(err, store.ErrConflict):
		return &Error{Kind: KindConflict, Code: "duplicate_" + subject, Msg: subject + " violates a uniqueness rule", Err: err}
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return Infrastructure("store_unavailable", err)
	}
	return Internal("store_failure", fmt.Errorf("%s: %w", subject, err))
}
