package session

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/types"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBase     = 100 * time.Millisecond
)

// RetryingStore decorates a Store with bounded-backoff retries on writes.
// Session writes are small idempotent-by-overwrite document writes, so
// replays are safe. Reads are not retried; a failed load surfaces directly.
type RetryingStore struct {
	inner    Store
	attempts uint64
	base     time.Duration
}

// WithRetry wraps a store with bounded write retries. attempts counts
// retries after the first try; base is the initial backoff.
func WithRetry(inner Store, attempts int, base time.Duration) *RetryingStore {
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	if base <= 0 {
		base = defaultRetryBase
	}
	return &RetryingStore{inner: inner, attempts: uint64(attempts), base: base}
}

func (s *RetryingStore) backoff() retry.Backoff {
	return retry.WithMaxRetries(s.attempts, retry.NewFibonacci(s.base))
}

func (s *RetryingStore) retryWrite(ctx context.Context, op func(context.Context) error) error {
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		// A not-found outcome will not change on replay.
		if core.IsType(err, core.ErrNotFound) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err == nil || core.IsType(err, core.ErrNotFound) || core.IsType(err, core.ErrStorage) {
		return err
	}
	return core.NewStorageError(err)
}

// Create implements Store.
func (s *RetryingStore) Create(ctx context.Context, sess *types.Session) error {
	return s.retryWrite(ctx, func(ctx context.Context) error {
		return s.inner.Create(ctx, sess)
	})
}

// Get implements Store.
func (s *RetryingStore) Get(ctx context.Context, id string) (*types.Session, error) {
	return s.inner.Get(ctx, id)
}

// Put implements Store.
func (s *RetryingStore) Put(ctx context.Context, sess *types.Session) error {
	return s.retryWrite(ctx, func(ctx context.Context) error {
		return s.inner.Put(ctx, sess)
	})
}

// AppendTurn implements Store.
func (s *RetryingStore) AppendTurn(ctx context.Context, id string, turn types.Turn, delta types.AnalyticsDelta) error {
	return s.retryWrite(ctx, func(ctx context.Context) error {
		return s.inner.AppendTurn(ctx, id, turn, delta)
	})
}

// ListIdle implements Store.
func (s *RetryingStore) ListIdle(ctx context.Context, state types.SessionState, startedBefore time.Time) ([]string, error) {
	return s.inner.ListIdle(ctx, state, startedBefore)
}

// Close implements Store.
func (s *RetryingStore) Close() error {
	return s.inner.Close()
}
