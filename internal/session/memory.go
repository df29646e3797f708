package session

import (
	"context"
	"sync"
	"time"

	"github.com/it-era/chat-gateway/internal/chat"
)

const defaultMemoryTTL = time.Hour

type memoryEntry struct {
	sess      *chat.Session
	expiresAt time.Time
}

// MemoryStore is an in-memory Store for tests and single-process
// deployments. Expired sessions are dropped lazily on access.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a memory store. A non-positive ttl uses the
// one-hour default matching the session duration of the hosted store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().After(e.expiresAt) {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}
	// Refresh TTL on read, like the redis driver.
	e.expiresAt = s.now().Add(s.ttl)
	return e.sess, nil
}

func (s *MemoryStore) Put(ctx context.Context, sess *chat.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = &memoryEntry{
		sess:      sess,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
