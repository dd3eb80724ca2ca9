// Package errs defines the structured error kinds used throughout the
// me56ps2 modem emulator: UsageError, DeviceError, SocketError and
// ProtocolError (spec.md §7).
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes an Error per spec.md §7.
type Kind string

const (
	KindUsage    Kind = "usage error"
	KindDevice   Kind = "device error"
	KindSocket   Kind = "socket error"
	KindProtocol Kind = "protocol error"
)

// Error is a structured error with an operation, a kind and an optional
// wrapped cause.
type Error struct {
	Kind  Kind
	Op    string
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Inner != nil {
		msg = e.Inner.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison by Kind, matching any *Error with the
// same Kind regardless of Msg/Inner; when target has a non-empty Op, the
// Op must match too.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	if te.Op != "" && te.Op != e.Op {
		return false
	}
	return te.Kind == e.Kind
}

func newErr(kind Kind, op, msg string, inner error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Inner: inner}
}

// Usage wraps a CLI argument-parsing failure.
func Usage(op, msg string) *Error {
	return newErr(KindUsage, op, msg, nil)
}

// Device wraps a fatal raw-gadget ioctl failure.
func Device(op string, inner error) *Error {
	return newErr(KindDevice, op, "", inner)
}

// Socket wraps a listen/bind/accept/connect/send/recv failure.
func Socket(op string, inner error) *Error {
	return newErr(KindSocket, op, "", inner)
}

// Protocol wraps a bulk-OUT payload-length mismatch or an unrecognised
// control/descriptor request. Protocol errors are logged and the affected
// transfer truncated or stalled; they are never fatal.
func Protocol(op, msg string) *Error {
	return newErr(KindProtocol, op, msg, nil)
}

// IsKind reports whether err (or any error it wraps) is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
