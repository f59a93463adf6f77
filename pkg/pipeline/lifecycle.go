package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/notify"
	"github.com/voxcart/voxcart/pkg/core/session"
	"github.com/voxcart/voxcart/pkg/core/types"
)

// defaultLanguage is assumed when the client does not declare one.
const defaultLanguage = "en-US"

// CreateParams are the inputs for a new session. UserID is optional: guest
// sessions are allowed.
type CreateParams struct {
	UserID      string
	Language    string
	DeviceClass string
	ClientMeta  map[string]string
}

// Manager owns session lifecycle: creation, pause/resume, end, and the
// abandonment sweep. Lifecycle operations share the per-session locks with
// the turn orchestrator, so a turn in flight and an end call never
// interleave.
type Manager struct {
	store    session.Store
	locks    *sessionLocks
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a lifecycle manager sharing locks with orch. notifier
// may be nil.
func NewManager(store session.Store, orch *Orchestrator, notifier notify.Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Manager{
		store:    store,
		locks:    orch.locks,
		notifier: notifier,
		logger:   logger,
		now:      orch.now,
	}
}

// NewStandaloneManager builds a manager with its own lock set, for
// processes that run lifecycle operations without a turn orchestrator
// (the abandonment sweeper).
func NewStandaloneManager(store session.Store, notifier notify.Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Manager{
		store:    store,
		locks:    newSessionLocks(),
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Create allocates a fresh session and persists it. It only fails on
// storage unavailability.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*types.Session, error) {
	language := params.Language
	if language == "" {
		language = defaultLanguage
	}
	now := m.now().UTC()
	sess := &types.Session{
		ID:          "sess_" + uuid.NewString(),
		UserID:      params.UserID,
		Language:    language,
		DeviceClass: params.DeviceClass,
		ClientMeta:  params.ClientMeta,
		State:       types.StateActive,
		StartedAt:   now,
		History:     []types.Turn{},
		Analytics: types.Analytics{
			IntentCounts:      map[string]int{},
			ProductsDiscussed: []string{},
		},
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	m.logger.Info("session created",
		"session_id", sess.ID, "language", sess.Language, "device_class", sess.DeviceClass)
	m.notifyAsync("session.started", map[string]any{
		"session_id": sess.ID,
		"language":   sess.Language,
	})
	return sess, nil
}

// Get loads a session. Terminal sessions stay readable.
func (m *Manager) Get(ctx context.Context, id string) (*types.Session, error) {
	return m.store.Get(ctx, id)
}

// Pause transitions active -> paused and returns the session's resulting
// state. A wrong-state session is a logged no-op that reports its unchanged
// state; an absent session reports the empty state.
func (m *Manager) Pause(ctx context.Context, id string) (types.SessionState, error) {
	release := m.locks.acquire(id)
	defer release()

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if core.IsType(err, core.ErrNotFound) {
			m.logger.Warn("pause ignored: session not found", "session_id", id)
			return "", nil
		}
		return "", err
	}
	if sess.State != types.StateActive {
		m.logger.Warn("pause ignored: session not active",
			"session_id", id, "state", string(sess.State))
		return sess.State, nil
	}
	sess.State = types.StatePaused
	if err := m.store.Put(ctx, sess); err != nil {
		return "", err
	}
	return sess.State, nil
}

// Resume transitions paused -> active, mirroring Pause's no-op policy.
func (m *Manager) Resume(ctx context.Context, id string) (types.SessionState, error) {
	release := m.locks.acquire(id)
	defer release()

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if core.IsType(err, core.ErrNotFound) {
			m.logger.Warn("resume ignored: session not found", "session_id", id)
			return "", nil
		}
		return "", err
	}
	if sess.State != types.StatePaused {
		m.logger.Warn("resume ignored: session not paused",
			"session_id", id, "state", string(sess.State))
		return sess.State, nil
	}
	sess.State = types.StateActive
	if err := m.store.Put(ctx, sess); err != nil {
		return "", err
	}
	return sess.State, nil
}

// End completes a session and returns the final analytics snapshot. Ending
// an already-terminal session is idempotent: the stored record is untouched
// and the same summary comes back. A session that never existed is a
// not_found_error.
func (m *Manager) End(ctx context.Context, id string, satisfactionScore *int) (*types.Summary, error) {
	release := m.locks.acquire(id)
	defer release()

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State.Terminal() {
		return summarize(sess), nil
	}

	ended := m.now().UTC()
	sess.State = types.StateCompleted
	sess.EndedAt = &ended
	if satisfactionScore != nil {
		score := clampScore(*satisfactionScore)
		sess.Analytics.SatisfactionScore = &score
	}
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, err
	}

	summary := summarize(sess)
	m.logger.Info("session ended",
		"session_id", id, "turns", sess.TotalTurns, "duration_ms", summary.Duration.Milliseconds())
	m.notifyAsync("session.ended", map[string]any{
		"session_id":  id,
		"total_turns": sess.TotalTurns,
		"duration_ms": summary.Duration.Milliseconds(),
	})
	return summary, nil
}

// SweepAbandoned transitions active sessions started before the idle
// threshold to abandoned and returns how many it moved. The threshold check
// is conservative: it only needs the start time. Scheduling is the caller's
// job; the manager performs no ambient scheduling.
func (m *Manager) SweepAbandoned(ctx context.Context, idleThreshold time.Duration) (int, error) {
	cutoff := m.now().UTC().Add(-idleThreshold)
	ids, err := m.store.ListIdle(ctx, types.StateActive, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range ids {
		if err := m.sweepOne(ctx, id, cutoff); err != nil {
			m.logger.Warn("sweep failed for session", "session_id", id, "error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		m.logger.Info("abandonment sweep finished", "swept", swept)
	}
	return swept, nil
}

// sweepOne re-checks state under the session lock; a session may have ended
// or taken a turn between the list and the lock.
func (m *Manager) sweepOne(ctx context.Context, id string, cutoff time.Time) error {
	release := m.locks.acquire(id)
	defer release()

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.State != types.StateActive || !sess.StartedAt.Before(cutoff) {
		return nil
	}
	ended := m.now().UTC()
	sess.State = types.StateAbandoned
	sess.EndedAt = &ended
	if err := m.store.Put(ctx, sess); err != nil {
		return err
	}
	m.notifyAsync("session.swept", map[string]any{
		"session_id":  id,
		"total_turns": sess.TotalTurns,
	})
	return nil
}

func (m *Manager) notifyAsync(event string, payload map[string]any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := m.notifier.Notify(ctx, event, payload); err != nil {
			m.logger.Warn("notification failed", "event", event, "error", err)
		}
	}()
}

func summarize(sess *types.Session) *types.Summary {
	ended := sess.StartedAt
	if sess.EndedAt != nil {
		ended = *sess.EndedAt
	}
	return &types.Summary{
		SessionID:  sess.ID,
		State:      sess.State,
		StartedAt:  sess.StartedAt,
		EndedAt:    ended,
		Duration:   ended.Sub(sess.StartedAt),
		TotalTurns: sess.TotalTurns,
		Analytics:  sess.Analytics,
	}
}

func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 5 {
		return 5
	}
	return score
}
