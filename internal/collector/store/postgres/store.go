// Package postgres stores collector events in an insert-only table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"pdftrack/internal/collector/models"
	"pdftrack/pkg/platform/sentinel"
	"pdftrack/pkg/platform/tx"
)

// schemaLockKey serializes schema creation across collectors starting together.
const schemaLockKey = 7421003

const schema = `
CREATE TABLE IF NOT EXISTS pdf_access_events (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL,
	event       TEXT NOT NULL,
	email       TEXT NOT NULL,
	tracking_id TEXT NOT NULL DEFAULT '',
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS pdf_access_events_email_idx ON pdf_access_events (email);
`

// Store implements the collector store on PostgreSQL. Rows are never updated;
// ordering follows the serial column.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the events table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.Exec(ctx, s.db)
		if _, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
			return fmt.Errorf("lock schema: %w", err)
		}
		if _, err := exec.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	})
}

func (s *Store) Append(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	query := `
		INSERT INTO pdf_access_events (id, event, email, tracking_id, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = tx.Exec(ctx, s.db).ExecContext(ctx, query,
		event.ID,
		event.Event,
		event.User.Email,
		event.TrackingID,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

// List returns every event ordered by insertion.
func (s *Store) List(ctx context.Context) ([]models.Event, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `SELECT seq, payload FROM pdf_access_events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w: %v", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			seq     int64
			payload []byte
		)
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev models.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", sentinel.ErrCorrupt, seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
