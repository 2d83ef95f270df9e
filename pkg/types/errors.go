package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a structural or protocol failure. Cryptographic
// mismatches are never reported as an ErrorKind; verification returns false.
type ErrorKind string

const (
	KindInvalidAddress          ErrorKind = "InvalidAddress"
	KindUnsupportedAddress      ErrorKind = "UnsupportedAddress"
	KindMalformedWitness        ErrorKind = "MalformedWitness"
	KindInvalidSighash          ErrorKind = "InvalidSighash"
	KindInvalidSchnorrSignature ErrorKind = "InvalidSchnorrSignature"
	KindInvalidSignature        ErrorKind = "InvalidSignature"
	KindRecoveryFailed          ErrorKind = "RecoveryFailed"
	KindInvalidPublicKey        ErrorKind = "InvalidPublicKey"
	KindKeyMismatch             ErrorKind = "KeyMismatch"
)

// Sentinels for errors.Is; *Error matches any sentinel of the same kind.
var (
	ErrInvalidAddress          = &Error{Kind: KindInvalidAddress}
	ErrUnsupportedAddress      = &Error{Kind: KindUnsupportedAddress}
	ErrMalformedWitness        = &Error{Kind: KindMalformedWitness}
	ErrInvalidSighash          = &Error{Kind: KindInvalidSighash}
	ErrInvalidSchnorrSignature = &Error{Kind: KindInvalidSchnorrSignature}
	ErrInvalidSignature        = &Error{Kind: KindInvalidSignature}
	ErrRecoveryFailed          = &Error{Kind: KindRecoveryFailed}
	ErrInvalidPublicKey        = &Error{Kind: KindInvalidPublicKey}
	ErrKeyMismatch             = &Error{Kind: KindKeyMismatch}
)

// Error is the typed failure raised by address handling, verification and signing
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Msg == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so wrapped errors match the package sentinels
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// NewError builds an *Error of the given kind
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error of the given kind around a cause
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind carried by err, or "" when err is not an *Error
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
