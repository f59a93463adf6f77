package session

import (
	"context"
	"sync"
	"time"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/types"
)

// MemoryStore is an in-process Store for tests and single-node deployments.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]*types.Session
}

// NewMemory creates an in-memory session store.
func NewMemory() *MemoryStore {
	return &MemoryStore{m: make(map[string]*types.Session)}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[sess.ID]; exists {
		return core.NewStorageError(errDuplicateID(sess.ID))
	}
	s.m[sess.ID] = sess.Clone()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[id]
	if !ok {
		return nil, core.NewNotFoundError("session not found")
	}
	return sess.Clone(), nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.ID] = sess.Clone()
	return nil
}

// AppendTurn implements Store.
func (s *MemoryStore) AppendTurn(_ context.Context, id string, turn types.Turn, delta types.AnalyticsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[id]
	if !ok {
		return core.NewNotFoundError("session not found")
	}
	sess.AppendTurn(turn)
	sess.Analytics.Apply(delta)
	return nil
}

// ListIdle implements Store.
func (s *MemoryStore) ListIdle(_ context.Context, state types.SessionState, startedBefore time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, sess := range s.m {
		if sess.State == state && sess.StartedAt.Before(startedBefore) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

type errDuplicateID string

func (e errDuplicateID) Error() string {
	return "session id already exists: " + string(e)
}
