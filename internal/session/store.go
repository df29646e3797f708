// Package session provides session persistence (memory and redis drivers)
// and the per-conversation bookkeeping: transcript recording, identifiers,
// and the fixed-window rate limit.
package session

import (
	"context"
	"errors"

	"github.com/it-era/chat-gateway/internal/chat"
)

// ErrNotFound is returned when a session id is unknown to the store.
var ErrNotFound = errors.New("session not found")

// Store persists sessions. Drivers own expiry: a session past its TTL is
// simply not found.
type Store interface {
	// Get retrieves a session by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*chat.Session, error)

	// Put creates or replaces a session.
	Put(ctx context.Context, sess *chat.Session) error

	// Delete removes a session by id. Deleting an unknown id is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Close releases driver resources.
	Close() error
}
