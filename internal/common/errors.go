// Package common defines shared constants, error kinds and small helpers used
// across the ledgermail client. Callers should use errors.Is to match the
// sentinel values.
package common

import (
	"errors"
	"strings"
)

// Kind tags an error with the category the user sees it under.
type Kind string

const (
	KindHostUnavailable           Kind = "HostUnavailable"
	KindHostUnsupported           Kind = "HostUnsupported"
	KindEmptyPayload              Kind = "EmptyPayload"
	KindUnsupportedAttachmentKind Kind = "UnsupportedAttachmentKind"
	KindSchemaMismatch            Kind = "SchemaMismatch"
	KindRemoteCallFailed          Kind = "RemoteCallFailed"
	KindPreconditionUnmet         Kind = "PreconditionUnmet"
)

// Error carries a Kind, a human readable message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind when the target is a bare
// sentinel (no message, no cause).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrHostUnavailable           = &Error{Kind: KindHostUnavailable}
	ErrHostUnsupported           = &Error{Kind: KindHostUnsupported}
	ErrEmptyPayload              = &Error{Kind: KindEmptyPayload}
	ErrUnsupportedAttachmentKind = &Error{Kind: KindUnsupportedAttachmentKind}
	ErrSchemaMismatch            = &Error{Kind: KindSchemaMismatch}
	ErrRemoteCallFailed          = &Error{Kind: KindRemoteCallFailed}
	ErrPreconditionUnmet         = &Error{Kind: KindPreconditionUnmet}

	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
)

// NewError builds a kind-tagged error.
func NewError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in the chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusText renders err the way it is shown in the status line.
func StatusText(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "unknown error"
	}
	return "Error: " + msg
}
