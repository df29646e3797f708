package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/it-era/chat-gateway/internal/chat"
)

const (
	defaultRateWindow    = time.Hour
	defaultRateThreshold = 60
)

// ManagerConfig tunes the per-session rate limit.
type ManagerConfig struct {
	RateWindow    time.Duration
	RateThreshold int
}

// Manager owns session lifecycle and bookkeeping on top of a Store.
type Manager struct {
	store Store
	cfg   ManagerConfig
	now   func() time.Time

	// locks serializes handling per session, guarding against a client
	// double-submitting the same conversation.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewManager builds a Manager over store.
func NewManager(store Store, cfg ManagerConfig) *Manager {
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindow
	}
	if cfg.RateThreshold <= 0 {
		cfg.RateThreshold = defaultRateThreshold
	}
	return &Manager{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// RateThreshold exposes the per-window message quota for response headers.
func (m *Manager) RateThreshold() int {
	return m.cfg.RateThreshold
}

// RateWindow exposes the configured window length, so callers can compute
// when a rejected client's counter resets.
func (m *Manager) RateWindow() time.Duration {
	return m.cfg.RateWindow
}

// Start returns the session for requestedID if it still exists, otherwise
// creates a fresh session with new identifiers.
func (m *Manager) Start(ctx context.Context, requestedID string) (*chat.Session, error) {
	if requestedID != "" {
		sess, err := m.store.Get(ctx, requestedID)
		if err == nil {
			return sess, nil
		}
		if err != ErrNotFound {
			return nil, err
		}
	}

	now := m.now()
	sess := &chat.Session{
		ID:              uuid.NewString(),
		ConversationID:  NewConversationID(now),
		CreatedAt:       now,
		Context:         make(map[string]string),
		RateWindowStart: now,
	}
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load fetches an existing session.
func (m *Manager) Load(ctx context.Context, id string) (*chat.Session, error) {
	return m.store.Get(ctx, id)
}

// Save persists the session after mutation.
func (m *Manager) Save(ctx context.Context, sess *chat.Session) error {
	return m.store.Put(ctx, sess)
}

// Lock serializes message handling for one session and returns the
// unlock func.
func (m *Manager) Lock(sessionID string) func() {
	m.locksMu.Lock()
	mu, ok := m.locks[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		m.locks[sessionID] = mu
	}
	m.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// RecordMessage appends one transcript entry and updates the context
// slots. The transcript is append-only.
func (m *Manager) RecordMessage(sess *chat.Session, role chat.Role, text string, intent chat.Intent) {
	sess.Messages = append(sess.Messages, chat.Message{
		Role:      role,
		Text:      text,
		Intent:    intent,
		Timestamp: m.now(),
	})
	sess.Set("message_count", strconv.Itoa(len(sess.Messages)))
	if role == chat.RoleUser && intent != "" {
		sess.Set("last_intent", string(intent))
	}
}

// CheckRateLimit applies the fixed-window counter. It returns false once
// the threshold is exceeded within the window; the counter resets when
// the window elapses. Callers must reject before reaching the resolver.
func (m *Manager) CheckRateLimit(sess *chat.Session) bool {
	now := m.now()
	if now.Sub(sess.RateWindowStart) > m.cfg.RateWindow {
		sess.RateCount = 0
		sess.RateWindowStart = now
	}
	sess.RateCount++
	return sess.RateCount <= m.cfg.RateThreshold
}

// NewConversationID builds the log-friendly correlation id used on
// escalation tickets: a date stamp, a time stamp, and a random suffix.
func NewConversationID(t time.Time) string {
	suffix := uuid.NewString()[:4]
	return fmt.Sprintf("conv-%s-%s-%s", t.Format("20060102"), t.Format("150405"), suffix)
}
