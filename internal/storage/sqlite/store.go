// Package sqlite persists redacted delivery records. It is one
// implementation of the instrumentation sink contract; the engine only
// ever sees the Sink interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"github.com/relayforge/destinations/internal/instrument"
)

// Store is a SQLite implementation of instrument.Sink.
type Store struct {
	db *sql.DB
}

var _ instrument.Sink = (*Store)(nil)

// New opens (or creates) the delivery database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS deliveries (
		id TEXT PRIMARY KEY,
		destination TEXT NOT NULL,
		action TEXT NOT NULL,
		duration_ns INTEGER NOT NULL,
		input TEXT,
		output TEXT,
		error TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_destination
		ON deliveries(destination, created_at)`)
	return err
}

// Record stores one row per subscription attempt. Inputs are already
// redacted by the engine before they reach any sink.
func (s *Store) Record(ctx context.Context, records []instrument.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delivery insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO deliveries
		(id, destination, action, duration_ns, input, output, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare delivery insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range records {
		input, err := json.Marshal(rec.Input)
		if err != nil {
			return fmt.Errorf("encode delivery input: %w", err)
		}
		output, err := json.Marshal(rec.Output)
		if err != nil {
			return fmt.Errorf("encode delivery output: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), rec.Destination, rec.Action, rec.Duration.Nanoseconds(),
			string(input), string(output), rec.Error, now,
		); err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
	}
	return tx.Commit()
}

// Delivery is one persisted subscription attempt.
type Delivery struct {
	ID          string
	Destination string
	Action      string
	Duration    time.Duration
	Input       map[string]any
	Output      []map[string]any
	Error       string
	CreatedAt   time.Time
}

// RecentDeliveries returns up to limit deliveries for a destination,
// newest first.
func (s *Store) RecentDeliveries(ctx context.Context, destination string, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, destination, action, duration_ns, input, output, error, created_at
		FROM deliveries WHERE destination = ?
		ORDER BY created_at DESC LIMIT ?`, destination, limit)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		var durationNS int64
		var input, output string
		if err := rows.Scan(&d.ID, &d.Destination, &d.Action, &durationNS,
			&input, &output, &d.Error, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.Duration = time.Duration(durationNS)
		if input != "" {
			if err := json.Unmarshal([]byte(input), &d.Input); err != nil {
				return nil, fmt.Errorf("decode delivery input: %w", err)
			}
		}
		if output != "" {
			if err := json.Unmarshal([]byte(output), &d.Output); err != nil {
				return nil, fmt.Errorf("decode delivery output: %w", err)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
