package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"
)

// SQLiteRecorder persists interactions to a local SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
}

var _ Recorder = (*SQLiteRecorder)(nil)

// NewSQLite opens (or creates) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open transcript database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize transcript schema: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) initSchema() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		intent TEXT NOT NULL,
		source TEXT NOT NULL,
		fallback INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL,
		message TEXT,
		reply TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at)`)
	return err
}

func (r *SQLiteRecorder) Record(ctx context.Context, in *Interaction) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO interactions (id, session_id, conversation_id, intent, source, fallback, duration_ms, message, reply, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.SessionID, in.ConversationID, in.Intent, in.Source,
		boolToInt(in.Fallback), in.DurationMs, in.Message, in.Reply, in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]*Interaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, conversation_id, intent, source, fallback, duration_ms, message, reply, created_at
		 FROM interactions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []*Interaction
	for rows.Next() {
		var in Interaction
		var fb int
		if err := rows.Scan(&in.ID, &in.SessionID, &in.ConversationID, &in.Intent, &in.Source,
			&fb, &in.DurationMs, &in.Message, &in.Reply, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Fallback = fb != 0
		out = append(out, &in)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) CountBySource(ctx context.Context) ([]SourceCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM interactions GROUP BY source ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("count interactions: %w", err)
	}
	defer rows.Close()

	var out []SourceCount
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan source count: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error { return r.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
