// Package session defines the durable session store contract and its
// drivers. The store is the single source of truth for session state,
// history, and analytics; callers serialize access per session id, so
// drivers only need per-call atomicity.
package session

import (
	"context"
	"time"

	"github.com/voxcart/voxcart/pkg/core/types"
)

// Store is the narrow session persistence contract. One record per session,
// keyed by session id.
type Store interface {
	// Create persists a new session. Fails if the id already exists.
	Create(ctx context.Context, s *types.Session) error

	// Get loads a session by id. Returns a not_found_error if absent.
	Get(ctx context.Context, id string) (*types.Session, error)

	// Put overwrites the full session record. Writes are
	// idempotent-by-overwrite, which is what makes the retry decorator safe.
	Put(ctx context.Context, s *types.Session) error

	// AppendTurn appends one turn to the session's history, keeping the
	// stored turn count equal to the history length, and applies the
	// analytics delta in the same write.
	AppendTurn(ctx context.Context, id string, turn types.Turn, delta types.AnalyticsDelta) error

	// ListIdle returns ids of sessions in the given state whose start time
	// is older than startedBefore. Used by the abandonment sweep.
	ListIdle(ctx context.Context, state types.SessionState, startedBefore time.Time) ([]string, error)

	// Close releases driver resources.
	Close() error
}
