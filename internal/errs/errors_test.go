package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	plain := New(ErrKindValidation, "bad input")
	assert.Equal(t, "[validation_failed] bad input", plain.Error())

	cause := errors.New("socket closed")
	wrapped := Wrap(ErrKindConnectionFailed, "connect failed", cause)
	assert.Equal(t, "[connection_failed] connect failed: socket closed", wrapped.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(ErrKindExecution, "wrapped", cause)

	assert.ErrorIs(t, err, cause)
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"not found", New(ErrKindNotFound, "x"), IsNotFound},
		{"timeout", New(ErrKindTimeout, "x"), IsTimeout},
		{"connection failed", New(ErrKindConnectionFailed, "x"), IsConnectionFailed},
		{"execution", New(ErrKindExecution, "x"), IsExecution},
		{"validation", New(ErrKindValidation, "x"), IsValidation},
		{"unsupported", New(ErrKindUnsupported, "x"), IsUnsupported},
		{"invalid action", New(ErrKindInvalidAction, "x"), IsInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.pred(tt.err))
			assert.False(t, tt.pred(errors.New("plain")))
		})
	}
}

func TestPredicates_WrappedChain(t *testing.T) {
	inner := New(ErrKindTimeout, "deadline exceeded")
	outer := fmt.Errorf("running report: %w", inner)

	assert.True(t, IsTimeout(outer))
	assert.False(t, IsValidation(outer))
}

func TestPredicates_NilAndForeign(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsExecution(errors.New("boom")))
}
