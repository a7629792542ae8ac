package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindVersionConflict
	KindBufferExceeded
	KindJoinFailed
	KindTransientStorage
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindVersionConflict:
		return "version_conflict"
	case KindBufferExceeded:
		return "buffer_exceeded"
	case KindJoinFailed:
		return "join_failed"
	case KindTransientStorage:
		return "transient_storage"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is the error taxonomy shared by every layer. Msg is safe to show to
// a caller for the kinds Public lets through; Err is for server-side logs.
type Error struct {
	Kind ErrorKind
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

// Is matches any *Error of the same kind, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation       = &Error{Kind: KindValidation, Msg: "invalid request"}
	ErrNotFound         = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized, Msg: "not a member of this session"}
	ErrVersionConflict  = &Error{Kind: KindVersionConflict, Msg: "queue changed, refetch and retry"}
	ErrBufferExceeded   = &Error{Kind: KindBufferExceeded, Msg: "replay buffer exceeded, full sync required"}
	ErrJoinFailed       = &Error{Kind: KindJoinFailed, Msg: "join failed"}
	ErrTransientStorage = &Error{Kind: KindTransientStorage, Msg: "storage temporarily failed"}
	ErrUnavailable      = &Error{Kind: KindUnavailable, Msg: "service temporarily unavailable, try again"}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

func VersionConflict(sessionID SessionID, expected, actual uint64) error {
	return &Error{
		Kind: KindVersionConflict,
		Msg:  fmt.Sprintf("version conflict for session %s: expected sequence %d, current is %d", sessionID, expected, actual),
	}
}

func JoinFailed(format string, args ...any) error {
	return &Error{Kind: KindJoinFailed, Msg: fmt.Sprintf(format, args...)}
}

// TransientStorage marks err as retryable storage trouble.
func TransientStorage(err error) error {
	return &Error{Kind: KindTransientStorage, Msg: "storage temporarily failed", Err: err}
}

func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public collapses err into a code and a message that can cross the
// transport boundary without leaking internals.
func Public(err error) (code string, message string) {
	var e *Error
	if !errors.As(err, &e) {
		return KindInternal.String(), "internal error"
	}
	switch e.Kind {
	case KindValidation, KindNotFound, KindUnauthorized, KindVersionConflict,
		KindBufferExceeded, KindJoinFailed:
		return e.Kind.String(), e.Msg
	case KindTransientStorage, KindUnavailable:
		return KindUnavailable.String(), ErrUnavailable.Msg
	default:
		return KindInternal.String(), "internal error"
	}
}
