// internal/drivers/retry_test.go
package drivers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FairForge/pollstore/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryPolicy(t *testing.T) {
	t.Run("retries transient failures", func(t *testing.T) {
		attempts := 0
		failingFunc := func() error {
			attempts++
			if attempts < 3 {
				return errors.New("transient error")
			}
			return nil
		}

		policy := NewRetryPolicy(
			WithMaxAttempts(5),
			WithInitialDelay(10*time.Millisecond),
			WithMaxDelay(100*time.Millisecond),
			WithJitter(true),
		)

		err := policy.Execute(context.Background(), failingFunc)

		require.NoError(t, err)
		assert.Equal(t, 3, attempts, "Should succeed on third attempt")
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		attempts := 0
		policy := NewRetryPolicy(WithMaxAttempts(3), WithInitialDelay(time.Millisecond))

		err := policy.Execute(context.Background(), func() error {
			attempts++
			return errors.New("down")
		})

		assert.EqualError(t, err, "down")
		assert.Equal(t, 3, attempts)
	})

	t.Run("does not retry not found", func(t *testing.T) {
		attempts := 0
		policy := NewRetryPolicy(WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

		err := policy.Execute(context.Background(), func() error {
			attempts++
			return engine.ErrNotFound("x")
		})

		assert.True(t, engine.IsNotFound(err))
		assert.Equal(t, 1, attempts)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		slowFunc := func() error {
			time.Sleep(100 * time.Millisecond)
			return errors.New("still failing")
		}

		policy := NewRetryPolicy(WithMaxAttempts(10))

		err := policy.Execute(ctx, slowFunc)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("caps delay", func(t *testing.T) {
		policy := NewRetryPolicy(
			WithInitialDelay(10*time.Millisecond),
			WithMaxDelay(40*time.Millisecond),
			WithJitter(false),
		)
		assert.Equal(t, 10*time.Millisecond, policy.calculateDelay(0))
		assert.Equal(t, 20*time.Millisecond, policy.calculateDelay(1))
		assert.Equal(t, 40*time.Millisecond, policy.calculateDelay(5))
	})
}

// flakyDriver fails the first n calls of every operation.
type flakyDriver struct {
	engine.Driver
	failures atomic.Int64
}

func (f *flakyDriver) fail() error {
	if f.failures.Add(-1) >= 0 {
		return errors.New("connection reset")
	}
	return nil
}

func (f *flakyDriver) Get(ctx context.Context, path string) (engine.Blob, error) {
	if err := f.fail(); err != nil {
		return engine.Blob{}, err
	}
	return f.Driver.Get(ctx, path)
}

func (f *flakyDriver) Put(ctx context.Context, blob engine.Blob) (bool, error) {
	if err := f.fail(); err != nil {
		return false, err
	}
	return f.Driver.Put(ctx, blob)
}

func TestRetryableDriver(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyDriver{Driver: NewMemoryDriver(zap.NewNop())}
	d := NewRetryableDriver(flaky, NewRetryPolicy(WithMaxAttempts(3), WithInitialDelay(time.Millisecond)))
	assert.Equal(t, "memory", d.Name())

	flaky.failures.Store(2)
	existed, err := d.Put(ctx, engine.Blob{Path: "a", Data: []byte("x")})
	require.NoError(t, err)
	assert.False(t, existed)

	flaky.failures.Store(2)
	blob, err := d.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), blob.Data)

	flaky.failures.Store(3)
	_, err = d.Get(ctx, "a")
	assert.EqualError(t, err, "connection reset")

	flaky.failures.Store(0)
	_, err = d.Get(ctx, "missing")
	assert.True(t, engine.IsNotFound(err))

	assert.NoError(t, d.Close())
}
