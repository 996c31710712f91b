package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_WrappedChain(t *testing.T) {
	base := Wrap(KindNotFound, "record missing", errors.New("no such key"))
	wrapped := fmt.Errorf("remove example: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindUnavailable))
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestMessage_HidesCause(t *testing.T) {
	err := Wrap(KindUnavailable, "blob storage unavailable", errors.New("dial tcp 10.0.0.1:443: i/o timeout"))

	assert.Equal(t, "blob storage unavailable", Message(err))
	assert.Contains(t, err.Error(), "i/o timeout")
	assert.Equal(t, "internal error", Message(errors.New("secret detail")))
}

func TestAs_ReturnsOutermost(t *testing.T) {
	inner := New(KindValidation, "title is required")
	outer := Wrap(KindSubmission, "provider rejected job", inner)

	got, ok := As(fmt.Errorf("ctx: %w", outer))
	require.True(t, ok)
	assert.Equal(t, KindSubmission, got.Kind)
	assert.ErrorIs(t, outer, inner)
}

func TestNewf(t *testing.T) {
	err := Newf(KindNotFound, "job %s not found", "abc")
	assert.Equal(t, "not_found: job abc not found", err.Error())
}
