// Package transcript records resolved chat exchanges for analytics:
// which intent, which strategy answered, and how long resolution took.
// Recording is best-effort; failures are logged by callers, never
// propagated to the user.
package transcript

import (
	"context"
	"time"
)

// Interaction is one resolved exchange.
type Interaction struct {
	ID             string
	SessionID      string
	ConversationID string
	Intent         string
	Source         string
	Fallback       bool
	DurationMs     int64
	Message        string
	Reply          string
	CreatedAt      time.Time
}

// SourceCount aggregates interactions per resolution source.
type SourceCount struct {
	Source string
	Count  int64
}

// Recorder persists interactions.
type Recorder interface {
	Record(ctx context.Context, in *Interaction) error
	Recent(ctx context.Context, limit int) ([]*Interaction, error)
	CountBySource(ctx context.Context) ([]SourceCount, error)
	Close() error
}

// Noop discards everything; used when no transcript path is configured
// and in tests that don't assert on recording.
type Noop struct{}

func (Noop) Record(ctx context.Context, in *Interaction) error { return nil }

func (Noop) Recent(ctx context.Context, limit int) ([]*Interaction, error) { return nil, nil }

func (Noop) CountBySource(ctx context.Context) ([]SourceCount, error) { return nil, nil }

func (Noop) Close() error { return nil }
