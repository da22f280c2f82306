package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Kind names the failure cause: a small closed set, not a type
// hierarchy. Callers switch on Kind, never on concrete error types.
type Kind string

const (
	KindInvalidArgument    Kind = "InvalidArgument"
	KindNotFound           Kind = "NotFound"
	KindConflict           Kind = "Conflict"
	KindTimeout            Kind = "Timeout"
	KindBackendUnavailable Kind = "BackendUnavailable"
	KindCorruption         Kind = "Corruption"
	KindInternal           Kind = "Internal"
)

// Sentinel errors, one per Kind; backends wrap these to attach operation
// context while keeping errors.Is matching intact.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrTimeout            = errors.New("timeout")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrCorruption         = errors.New("corruption")
	ErrInternal           = errors.New("internal error")
)

var sentinelByKind = map[Kind]error{
	KindInvalidArgument:    ErrInvalidArgument,
	KindNotFound:           ErrNotFound,
	KindConflict:           ErrConflict,
	KindTimeout:            ErrTimeout,
	KindBackendUnavailable: ErrBackendUnavailable,
	KindCorruption:         ErrCorruption,
	KindInternal:           ErrInternal,
}

// Error wraps an operation name, a Kind, and an underlying cause. The
// Kind doubles as the short stable code; Error() is the human message.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	sentinel := sentinelByKind[e.Kind]
	if e.Err == nil {
		return sentinel
	}
	return e.Err
}

// Is lets errors.Is(err, storage.ErrConflict) succeed for a *Error whose
// Kind matches, independent of the wrapped cause.
func (e *Error) Is(target error) bool {
	return sentinelByKind[e.Kind] == target
}

// Wrap constructs a tagged *Error for op/kind/cause. A cause carrying an
// expired deadline is re-tagged Timeout so backends don't each need their
// own translation.
func Wrap(op string, kind Kind, cause error) error {
	if cause == nil {
		return nil
	}
	if kind == KindBackendUnavailable && errors.Is(cause, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Op: op, Kind: kind, Err: cause}
}

// New constructs a tagged *Error with a plain message, no wrapped cause.
func New(op string, kind Kind, msg string) error {
	return &Error{Op: op, Kind: kind, Err: errors.New(msg)}
}

// ErrorKind extracts the Kind from err, defaulting to KindInternal for
// errors this package did not tag.
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// WrapDBError converts sql.ErrNoRows into KindNotFound and tags other
// driver errors BackendUnavailable. Backends refine this further for
// driver-specific conflict and timeout codes before falling through here.
func WrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Wrap(op, KindNotFound, err)
	}
	return Wrap(op, KindBackendUnavailable, err)
}
