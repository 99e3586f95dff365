package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ydb-platform/ydb-go-sdk/v3/retry"
	"github.com/ydb-platform/ydb-go-sdk/v3/table"
)

// retryingRunner repeats op while the SDK would classify its error as
// retryable, like table.Client.Do.
type retryingRunner struct {
	maxAttempts int
}

func (r retryingRunner) Do(ctx context.Context, op table.Operation, opts ...table.Option) error {
	var err error
	for i := 0; i < r.maxAttempts; i++ {
		if err = op(ctx, nil); err == nil || !retry.Check(err).MustRetry(true) {
			return err
		}
	}
	return err
}

func TestDoOnce_DoesNotRetry(t *testing.T) {
	overloaded := retry.RetryableError(errors.New("overloaded"))
	require.True(t, retry.Check(overloaded).MustRetry(true))

	attempts := 0
	err := doOnce(context.Background(), retryingRunner{maxAttempts: 5}, func(ctx context.Context, sess table.Session) error {
		attempts++
		return overloaded
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, overloaded, err)
}

func TestDoOnce_Success(t *testing.T) {
	attempts := 0
	err := doOnce(context.Background(), retryingRunner{maxAttempts: 5}, func(ctx context.Context, sess table.Session) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoOnce_RunnerError(t *testing.T) {
	unavailable := errors.New("no session")
	err := doOnce(context.Background(), failingRunner{err: unavailable}, func(ctx context.Context, sess table.Session) error {
		t.Fatal("operation must not run without a session")
		return nil
	})

	assert.ErrorIs(t, err, unavailable)
}

type failingRunner struct {
	err error
}

func (r failingRunner) Do(ctx context.Context, op table.Operation, opts ...table.Option) error {
	return r.err
}
