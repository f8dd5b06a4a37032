package panicerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeContextRecoversPanic(t *testing.T) {
	fn := SafeContext(func(ctx context.Context) error {
		panic("worker blew up")
	})
	err := fn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker blew up")
}

func TestSafeContextPassesThroughError(t *testing.T) {
	sentinel := errors.New("plain failure")
	fn := SafeContext(func(ctx context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, fn(context.Background()), sentinel)
}

func TestSafeContextNilOnSuccess(t *testing.T) {
	fn := SafeContext(func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, fn(context.Background()))
}
