// Package cache provides the bounded, TTL-based response cache consulted
// before any generation attempt. Entries are keyed by intent, normalized
// message text, and a context discriminator; eviction is insertion-order
// when the cache is full and lazy on expired lookups.
package cache

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/it-era/chat-gateway/internal/chat"
)

const (
	defaultMaxEntries = 500
	defaultTTL        = time.Hour

	// maxKeyMessageLen bounds key cardinality for long messages.
	maxKeyMessageLen = 120
)

// Config tunes a ResponseCache. Zero values fall back to defaults.
type Config struct {
	MaxEntries int
	DefaultTTL time.Duration

	// NonCacheable lists intents that must never be stored, e.g. quote
	// requests and emergencies where personalization matters.
	NonCacheable []chat.Intent

	// TTLOverride sets per-intent TTLs, e.g. long for static contact info.
	TTLOverride map[chat.Intent]time.Duration
}

// DefaultConfig is the production policy table.
func DefaultConfig() Config {
	return Config{
		MaxEntries:   defaultMaxEntries,
		DefaultTTL:   defaultTTL,
		NonCacheable: []chat.Intent{chat.IntentPricing, chat.IntentEmergency},
		TTLOverride: map[chat.Intent]time.Duration{
			chat.IntentContact:  24 * time.Hour,
			chat.IntentGreeting: 12 * time.Hour,
		},
	}
}

type entry struct {
	envelope *chat.Envelope
	storedAt time.Time
	ttl      time.Duration
}

// Stats is a point-in-time read of cache effectiveness.
type Stats struct {
	Size    int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// ResponseCache is safe for concurrent use. It never errors: absence is a
// miss, and Set on a non-cacheable intent is a no-op.
type ResponseCache struct {
	mu           sync.Mutex
	entries      map[string]*entry
	order        []string
	maxEntries   int
	defaultTTL   time.Duration
	nonCacheable map[chat.Intent]bool
	ttlOverride  map[chat.Intent]time.Duration
	hits         uint64
	misses       uint64

	now func() time.Time
}

// New builds a ResponseCache from cfg.
func New(cfg Config) *ResponseCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaultTTL
	}
	nc := make(map[chat.Intent]bool, len(cfg.NonCacheable))
	for _, in := range cfg.NonCacheable {
		nc[in] = true
	}
	return &ResponseCache{
		entries:      make(map[string]*entry),
		maxEntries:   cfg.MaxEntries,
		defaultTTL:   cfg.DefaultTTL,
		nonCacheable: nc,
		ttlOverride:  cfg.TTLOverride,
		now:          time.Now,
	}
}

// Cacheable reports whether replies for intent may be stored.
func (c *ResponseCache) Cacheable(intent chat.Intent) bool {
	return !c.nonCacheable[intent]
}

// Get returns a copy of the cached envelope for (message, intent,
// contextKey), annotated with Cached and CacheAge, or (nil, false) on miss.
// Expired entries are evicted as a side effect of the lookup.
func (c *ResponseCache) Get(message string, intent chat.Intent, contextKey string) (*chat.Envelope, bool) {
	key := cacheKey(message, intent, contextKey)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	age := c.now().Sub(e.storedAt)
	if age > e.ttl {
		c.remove(key)
		c.misses++
		return nil, false
	}

	c.hits++
	env := e.envelope.Clone()
	env.Cached = true
	env.CacheAge = age
	env.Source = chat.SourceCache
	return env, true
}

// Set stores a copy of env unless the intent is non-cacheable. When at
// capacity the oldest entry (by insertion) is evicted first. A ttl of zero
// uses the per-intent or default TTL.
func (c *ResponseCache) Set(message string, intent chat.Intent, env *chat.Envelope, contextKey string, ttl time.Duration) {
	if c.nonCacheable[intent] {
		return
	}
	if ttl <= 0 {
		if o, ok := c.ttlOverride[intent]; ok {
			ttl = o
		} else {
			ttl = c.defaultTTL
		}
	}

	key := cacheKey(message, intent, contextKey)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.remove(key)
	}
	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		c.remove(c.order[0])
	}

	c.entries[key] = &entry{
		envelope: env.Clone(),
		storedAt: c.now(),
		ttl:      ttl,
	}
	c.order = append(c.order, key)
}

// Clear drops every entry. Counters are kept.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order = nil
}

// Stats returns current size and hit/miss counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:   len(c.entries),
		Hits:   c.hits,
		Misses: c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// remove must be called with c.mu held.
func (c *ResponseCache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// cacheKey normalizes the message (lowercase, letters/digits/spaces only,
// truncated) and joins it with the intent and context discriminator.
func cacheKey(message string, intent chat.Intent, contextKey string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(message) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	norm := strings.Join(strings.Fields(b.String()), " ")
	if len(norm) > maxKeyMessageLen {
		norm = norm[:maxKeyMessageLen]
	}
	if contextKey == "" {
		contextKey = "default"
	}
	return string(intent) + "|" + norm + "|" + contextKey
}
