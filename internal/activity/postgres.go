package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/p-n-ai/arandu-gateway/internal/platform/database"
)

const dbTimeout = 5 * time.Second

var schema = []string{
	`CREATE TABLE IF NOT EXISTS activity_events (
		id         BIGSERIAL PRIMARY KEY,
		user_id    TEXT NOT NULL DEFAULT '',
		kind       TEXT NOT NULL,
		data       JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS activity_events_user_created_idx
		ON activity_events (user_id, created_at DESC)`,
}

// PostgresLogger inserts events into the activity_events table.
type PostgresLogger struct {
	db *database.DB
}

func NewPostgresLogger(db *database.DB) *PostgresLogger {
	return &PostgresLogger{db: db}
}

// EnsureSchema creates the activity_events table and its index.
func (l *PostgresLogger) EnsureSchema(ctx context.Context) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("activity logger database is nil")
	}
	return l.db.InTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure activity schema: %w", err)
			}
		}
		return nil
	})
}

func (l *PostgresLogger) Log(ctx context.Context, event Event) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("activity logger database is nil")
	}
	if event.Kind == "" {
		return fmt.Errorf("event kind is required")
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := l.db.Pool.Exec(ctx,
		`INSERT INTO activity_events (user_id, kind, data, created_at)
		 VALUES ($1, $2, $3::jsonb, $4)`,
		event.UserID,
		event.Kind,
		string(data),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}

	slog.Debug("activity logged", "kind", event.Kind, "user_id", event.UserID)
	return nil
}

// ByUser returns the most recent events of a user, newest first.
func (l *PostgresLogger) ByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.db.Pool.Query(ctx,
		`SELECT user_id, kind, data, created_at
		 FROM activity_events
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query activity events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e   Event
			raw []byte
		)
		if err := rows.Scan(&e.UserID, &e.Kind, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Data); err != nil {
			return nil, fmt.Errorf("decode activity data: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
