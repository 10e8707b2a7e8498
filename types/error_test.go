package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrTransport, "stream broke").
		WithCause(root).
		WithRetryable(true).
		WithProvider("openai")

	assert.Equal(t, ErrTransport, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, root)
	assert.Equal(t, "[TRANSPORT] stream broke: root", err.Error())
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := NewValidationError(errors.New("field a missing"))
	wrapped := fmt.Errorf("attempt 2: %w", inner)

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrValidation, e.Code)
	assert.True(t, IsErrorCode(wrapped, ErrValidation))
	assert.False(t, IsErrorCode(wrapped, ErrTransport))
	assert.True(t, IsRetryable(wrapped))
}

func TestError_PlainErrors(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain")
	assert.False(t, IsRetryable(plain))
	assert.Equal(t, ErrorCode(""), GetErrorCode(plain))
	assert.Equal(t, "[MAX_ATTEMPTS] gave up", NewError(ErrMaxAttempts, "gave up").Error())
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	cause := errors.New("x")
	cases := map[ErrorCode]*Error{
		ErrTransport:       NewTransportError(cause),
		ErrDeserialization: NewDeserializationError(cause),
		ErrValidation:      NewValidationError(cause),
		ErrTransform:       NewTransformError(cause),
	}
	for code, err := range cases {
		assert.Equal(t, code, err.Code)
		assert.True(t, err.Retryable)
		assert.ErrorIs(t, err, cause)
	}
}
