package pipeline

import "sync"

// sessionLocks serializes all session-mutating operations per session id.
// The store record for one session is a single-writer resource: concurrent
// turns on one session must not interleave history appends or analytics
// increments, while cross-session calls run fully independently.
type sessionLocks struct {
	mu sync.Mutex
	m  map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{m: make(map[string]*lockEntry)}
}

// acquire blocks until the per-session lock is held and returns the release
// func. Entries are reference-counted so the map does not grow with dead
// session ids.
func (l *sessionLocks) acquire(id string) (release func()) {
	l.mu.Lock()
	entry, ok := l.m[id]
	if !ok {
		entry = &lockEntry{}
		l.m[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.m, id)
			}
			l.mu.Unlock()
		})
	}
}
