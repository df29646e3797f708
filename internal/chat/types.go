// Package chat defines the domain types shared across the chat gateway:
// intents, response envelopes, sessions, and the inbound action payloads.
package chat

import (
	"strings"
	"time"
)

// BrandPrefix is prepended to every user-facing reply.
const BrandPrefix = "[IT-ERA] "

// Intent is a coarse classification of a user message, used to select the
// reply template and caching policy.
type Intent string

const (
	IntentGreeting  Intent = "greeting"
	IntentPricing   Intent = "pricing"
	IntentSecurity  Intent = "security"
	IntentBackup    Intent = "backup"
	IntentRepair    Intent = "repair"
	IntentSupport   Intent = "support"
	IntentEmergency Intent = "emergency"
	IntentContact   Intent = "contact"
	IntentGeneric   Intent = "generic"
)

// Intents lists every defined intent.
func Intents() []Intent {
	return []Intent{
		IntentGreeting, IntentPricing, IntentSecurity, IntentBackup,
		IntentRepair, IntentSupport, IntentEmergency, IntentContact,
		IntentGeneric,
	}
}

// Source tags which strategy produced a reply.
type Source string

const (
	SourceCache             Source = "cache"
	SourceOrchestration     Source = "orchestration"
	SourceAI                Source = "ai"
	SourceFallback          Source = "fallback"
	SourceEmergencyFallback Source = "emergency_fallback"
)

// Priority is the routing priority attached to a reply.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Envelope is the uniform reply structure returned by the resolution
// pipeline regardless of which strategy produced it.
type Envelope struct {
	// Message is the user-facing reply text, always brand-prefixed.
	Message string

	// Options are ordered quick-reply suggestions.
	Options []string

	// Source records which strategy produced the reply.
	Source Source

	// Fallback is true when the reply did not come from the richest
	// available generation path.
	Fallback bool

	// Escalate marks the conversation for human follow-up.
	Escalate bool

	// Priority routes escalations.
	Priority Priority

	// ProcessingTime is the wall-clock duration of resolution.
	ProcessingTime time.Duration

	// Cached and CacheAge are set only on cache hits.
	Cached   bool
	CacheAge time.Duration
}

// Clone returns a shallow copy with its own Options slice, so annotating a
// cached envelope never mutates the stored one.
func (e *Envelope) Clone() *Envelope {
	c := *e
	c.Options = append([]string(nil), e.Options...)
	return &c
}

// Branded prefixes msg with the brand marker unless it already carries it.
func Branded(msg string) string {
	if strings.HasPrefix(msg, BrandPrefix) {
		return msg
	}
	return BrandPrefix + msg
}

// Role identifies who authored a transcript message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one entry in a session transcript. Transcripts are
// append-only; insertion order is the conversation order.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Intent    Intent    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the per-conversation state. It is created on a start action
// and mutated by each message action. Expiry is the session store's
// concern.
type Session struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	CreatedAt      time.Time         `json:"created_at"`
	Messages       []Message         `json:"messages"`
	Context        map[string]string `json:"context"`

	// Fixed-window rate limiting state.
	RateCount       int       `json:"rate_count"`
	RateWindowStart time.Time `json:"rate_window_start"`

	// Escalated records which escalation reasons already fired, so one
	// conversation does not notify twice for the same reason.
	Escalated map[string]bool `json:"escalated,omitempty"`
}

// Set stores a context slot, overwriting any previous value.
func (s *Session) Set(key, value string) {
	if s.Context == nil {
		s.Context = make(map[string]string)
	}
	s.Context[key] = value
}

// Get reads a context slot.
func (s *Session) Get(key string) string {
	return s.Context[key]
}
