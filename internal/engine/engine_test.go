package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapDriver struct {
	mu    sync.RWMutex
	blobs map[string]Blob
	err   error
}

func newMapDriver() *mapDriver {
	return &mapDriver{blobs: make(map[string]Blob)}
}

func (d *mapDriver) Name() string { return "map" }

func (d *mapDriver) Get(_ context.Context, path string) (Blob, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return Blob{}, d.err
	}
	b, ok := d.blobs[path]
	if !ok {
		return Blob{}, ErrNotFound(path)
	}
	return b, nil
}

func (d *mapDriver) Put(_ context.Context, blob Blob) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	_, existed := d.blobs[blob.Path]
	d.blobs[blob.Path] = blob
	return existed, nil
}

func (d *mapDriver) Stat(context.Context) (DriverStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st := DriverStats{Blobs: len(d.blobs)}
	for _, b := range d.blobs {
		st.Bytes += b.Size()
	}
	return st, nil
}

func (d *mapDriver) HealthCheck(context.Context) error { return d.err }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(newMapDriver(), zap.NewNop(), WithStripes(8))
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	existed, err := s.Put(ctx, "upload/a.ts", []byte("hello"))
	require.NoError(t, err)
	assert.False(t, existed)

	blob, err := s.Get(ctx, "upload/a.ts")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), blob.Data)
	assert.False(t, blob.Modified.IsZero())

	existed, err = s.Put(ctx, "upload/a.ts", []byte("bye"))
	require.NoError(t, err)
	assert.True(t, existed)

	blob, err = s.Get(ctx, "upload/a.ts")
	require.NoError(t, err)
	assert.Equal(t, []byte("bye"), blob.Data)
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
}

func TestStore_InvalidPath(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Put(ctx, "../etc/passwd", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, _, err = s.AwaitOrTimeout(ctx, "", time.Second)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestStore_AwaitImmediateHit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Put(ctx, "exists", []byte("data"))
	require.NoError(t, err)

	start := time.Now()
	blob, outcome, err := s.AwaitOrTimeout(ctx, "exists", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHit, outcome)
	assert.Equal(t, []byte("data"), blob.Data)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestStore_AwaitTimesOut(t *testing.T) {
	s := newTestStore(t)
	timeout := 150 * time.Millisecond

	start := time.Now()
	_, outcome, err := s.AwaitOrTimeout(context.Background(), "missing", timeout)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+time.Second)
	assert.Equal(t, int64(0), s.Waiting())
}

func TestStore_AwaitZeroTimeout(t *testing.T) {
	s := newTestStore(t)
	_, outcome, err := s.AwaitOrTimeout(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Equal(t, int64(0), s.Waiting())
}

func TestStore_AwaitWokenByPut(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	delay := 100 * time.Millisecond

	go func() {
		time.Sleep(delay)
		_, _ = s.Put(ctx, "later", []byte("arrived"))
	}()

	start := time.Now()
	blob, outcome, err := s.AwaitOrTimeout(ctx, "later", 5*time.Second)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, OutcomeWoken, outcome)
	assert.Equal(t, []byte("arrived"), blob.Data)
	assert.GreaterOrEqual(t, elapsed, delay)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, int64(0), s.Waiting())
}

func TestStore_FanOut(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	const readers = 10

	var wg sync.WaitGroup
	results := make([][]byte, readers)
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			blob, _, err := s.AwaitOrTimeout(ctx, "shared", 5*time.Second)
			results[i], errs[i] = blob.Data, err
		}(i)
	}

	require.Eventually(t, func() bool { return s.Waiting() == readers },
		2*time.Second, 5*time.Millisecond)

	_, err := s.Put(ctx, "shared", []byte("payload"))
	require.NoError(t, err)
	wg.Wait()

	for i := 0; i < readers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte("payload"), results[i])
	}
	assert.Equal(t, int64(0), s.Waiting())
}

func TestStore_CancelRemovesWaiter(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, outcome, err := s.AwaitOrTimeout(ctx, "gone", 5*time.Second)
		assert.Equal(t, OutcomeCancelled, outcome)
		done <- err
	}()
	require.Eventually(t, func() bool { return s.Waiting() == 1 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, int64(0), s.Waiting())

	// A later write finds nobody to wake.
	_, err := s.Put(context.Background(), "gone", []byte("x"))
	assert.NoError(t, err)
}

func TestStore_TimeoutRacingPut(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 200; i++ {
		path := fmt.Sprintf("race/%d", i)
		done := make(chan error, 1)
		var got []byte
		go func() {
			blob, _, err := s.AwaitOrTimeout(ctx, path, time.Millisecond)
			got = blob.Data
			done <- err
		}()
		time.Sleep(time.Millisecond)
		_, err := s.Put(ctx, path, []byte("v"))
		require.NoError(t, err)

		err = <-done
		if err != nil {
			assert.ErrorIs(t, err, ErrTimedOut)
		} else {
			assert.Equal(t, []byte("v"), got)
		}
	}
	assert.Equal(t, int64(0), s.Waiting())
}

func TestStore_ConcurrentPutsNeverMix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := bytes.Repeat([]byte("a"), 4096)
	b := bytes.Repeat([]byte("b"), 4096)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _, _ = s.Put(ctx, "k", a) }()
		go func() { defer wg.Done(); _, _ = s.Put(ctx, "k", b) }()
	}
	wg.Wait()

	blob, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(blob.Data, a) || bytes.Equal(blob.Data, b))
}

func TestStore_DriverFailure(t *testing.T) {
	ctx := context.Background()
	d := newMapDriver()
	s := NewStore(d, zap.NewNop())
	d.err = errors.New("backend down")

	_, err := s.Put(ctx, "x", []byte("y"))
	assert.ErrorContains(t, err, "backend down")

	_, outcome, err := s.AwaitOrTimeout(ctx, "x", time.Second)
	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, int64(0), s.Waiting())
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, _ = s.Put(ctx, "a", []byte("12"))
	_, _ = s.Put(ctx, "b", []byte("345"))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Blobs)
	assert.Equal(t, int64(5), st.Bytes)
	assert.Equal(t, int64(0), st.Waiters)
	assert.NoError(t, s.HealthCheck(ctx))
}
