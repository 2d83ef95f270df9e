package types

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	err := NewError(KindMalformedWitness, "%d trailing bytes", 3)
	assert.True(t, errors.Is(err, ErrMalformedWitness))
	assert.False(t, errors.Is(err, ErrInvalidAddress))

	wrapped := fmt.Errorf("verify: %w", err)
	assert.True(t, errors.Is(wrapped, ErrMalformedWitness))
	assert.Equal(t, KindMalformedWitness, KindOf(wrapped))
}

func TestError_Unwrap(t *testing.T) {
	err := WrapError(KindInvalidSignature, io.ErrUnexpectedEOF, "bad DER")
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindKeyMismatch}, "KeyMismatch"},
		{NewError(KindInvalidSighash, "byte 0x%02x", 0x03), "InvalidSighash: byte 0x03"},
		{&Error{Kind: KindRecoveryFailed, Err: io.EOF}, "RecoveryFailed: EOF"},
		{WrapError(KindInvalidAddress, io.EOF, "decode"), "InvalidAddress: decode: EOF"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestKindOf_Untyped(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(io.EOF))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}
