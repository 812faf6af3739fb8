package blockfserr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap("bcache.read", IoError, cause)

	assert.True(t, Is(err, IoError))
	assert.False(t, Is(err, TooLarge))
	assert.ErrorIs(t, err, cause)
}

func TestNewHasNoCause(t *testing.T) {
	err := New("inode.read_at", NotFound)

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Nil(t, e.Err)
	assert.Equal(t, NotFound, e.Kind)
}

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, Wrap("op", IoError, nil))
}
