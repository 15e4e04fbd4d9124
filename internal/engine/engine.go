package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// DefaultStripes is the number of lock stripes used when none is configured.
const DefaultStripes = 256

// stripe is the critical section shared by every path hashed onto it. The
// driver write for a path and the wakeup of that path's waiters both happen
// while mu is held, and so does the existence check of a registering waiter.
type stripe struct {
	mu      sync.Mutex
	waiters map[string][]*waiter
}

// Store is the blob store and wait registry for one server.
type Store struct {
	driver  Driver
	logger  *zap.Logger
	stripes []stripe
	waiting atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithStripes sets the number of lock stripes.
func WithStripes(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.stripes = make([]stripe, n)
		}
	}
}

// NewStore creates a store backed by driver.
func NewStore(driver Driver, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		driver:  driver,
		logger:  logger,
		stripes: make([]stripe, DefaultStripes),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.stripes {
		s.stripes[i].waiters = make(map[string][]*waiter)
	}
	return s
}

func (s *Store) stripeFor(path string) *stripe {
	return &s.stripes[xxhash.Sum64String(path)%uint64(len(s.stripes))]
}

// Driver returns the backing driver.
func (s *Store) Driver() Driver {
	return s.driver
}

// Put replaces the content of path and wakes every waiter registered for it.
// It reports whether the path held content before.
func (s *Store) Put(ctx context.Context, path string, data []byte) (bool, error) {
	if err := ValidatePath(path); err != nil {
		return false, err
	}

	blob := Blob{Path: path, Data: data, Modified: time.Now().UTC()}

	st := s.stripeFor(path)
	st.mu.Lock()
	defer st.mu.Unlock()

	existed, err := s.driver.Put(ctx, blob)
	if err != nil {
		return false, WrapError(err, "store "+path)
	}

	if woken := s.notifyLocked(st, blob); woken > 0 {
		s.logger.Debug("woke waiters",
			zap.String("path", path),
			zap.Int("waiters", woken))
	}

	return existed, nil
}

// Get returns the current content of path, or a NotFoundError.
func (s *Store) Get(ctx context.Context, path string) (Blob, error) {
	if err := ValidatePath(path); err != nil {
		return Blob{}, err
	}
	return s.driver.Get(ctx, path)
}

// AwaitOrTimeout returns the content of path, waiting up to timeout for it to
// be written if it does not exist yet. It returns ErrTimedOut when the window
// elapses and ctx.Err() when ctx ends first.
func (s *Store) AwaitOrTimeout(ctx context.Context, path string, timeout time.Duration) (Blob, Outcome, error) {
	if err := ValidatePath(path); err != nil {
		return Blob{}, OutcomeFailed, err
	}

	st := s.stripeFor(path)
	st.mu.Lock()
	blob, err := s.driver.Get(ctx, path)
	if err == nil {
		st.mu.Unlock()
		return blob, OutcomeHit, nil
	}
	if !IsNotFound(err) {
		st.mu.Unlock()
		return Blob{}, OutcomeFailed, err
	}
	if timeout <= 0 {
		st.mu.Unlock()
		return Blob{}, OutcomeTimedOut, ErrTimedOut
	}
	w := s.registerLocked(st, path, time.Now().Add(timeout))
	st.mu.Unlock()

	return s.await(ctx, st, w)
}

func (s *Store) await(ctx context.Context, st *stripe, w *waiter) (Blob, Outcome, error) {
	timer := time.NewTimer(time.Until(w.deadline))
	defer timer.Stop()

	select {
	case blob := <-w.ready:
		return blob, OutcomeWoken, nil

	case <-timer.C:
		if s.withdraw(st, w) {
			return Blob{}, OutcomeTimedOut, ErrTimedOut
		}
		// A Put removed the waiter first; its blob is already buffered.
		return <-w.ready, OutcomeWoken, nil

	case <-ctx.Done():
		if s.withdraw(st, w) {
			return Blob{}, OutcomeCancelled, ctx.Err()
		}
		return <-w.ready, OutcomeWoken, nil
	}
}

// Waiting returns the number of reads currently blocked on a missing path.
func (s *Store) Waiting() int64 {
	return s.waiting.Load()
}

// Stats reports driver contents and the number of blocked reads.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ds, err := s.driver.Stat(ctx)
	if err != nil {
		return Stats{}, WrapError(err, "driver stats")
	}
	return Stats{
		Blobs:   ds.Blobs,
		Bytes:   ds.Bytes,
		Waiters: s.Waiting(),
	}, nil
}

// HealthCheck verifies the backing driver.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.driver.HealthCheck(ctx)
}
