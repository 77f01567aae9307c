// Package apperr defines the failure taxonomy shared by the HTTP client,
// the push channel and the match controller.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how callers are expected to react to it.
type Kind int

const (
	// KindUnknown is reported for errors that did not originate here.
	KindUnknown Kind = iota
	// KindUnauthenticated means no usable credential; nothing was sent.
	KindUnauthenticated
	// KindRejected means the server (or a local precondition) declined the operation.
	KindRejected
	// KindTransport means the network failed; retry is left to the user.
	KindTransport
	// KindMalformed means a payload was unusable and was dropped.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindRejected:
		return "rejected"
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks against a Kind.
var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrRejected        = &Error{Kind: KindRejected}
	ErrTransport       = &Error{Kind: KindTransport}
	ErrMalformed       = &Error{Kind: KindMalformed}
)

// Error is a classified failure. Status is the HTTP status when one exists.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Unauthenticated(op string) *Error {
	return &Error{Kind: KindUnauthenticated, Op: op, Message: "not authenticated"}
}

func Rejected(op string, status int, message string) *Error {
	return &Error{Kind: KindRejected, Op: op, Status: status, Message: message}
}

// RejectedBy wraps a local precondition failure as a rejection.
func RejectedBy(op string, err error) *Error {
	return &Error{Kind: KindRejected, Op: op, Err: err}
}

func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func Malformed(op, message string) *Error {
	return &Error{Kind: KindMalformed, Op: op, Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
