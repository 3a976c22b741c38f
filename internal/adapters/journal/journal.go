// Package journal persists applied actions to SQLite so the ledger can be
// rebuilt on restart.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/okian/ecoledger/pkg/logger"
	"github.com/okian/ecoledger/pkg/metrics"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const driverName = "sqlite"

// Record is one applied action with the outcome it produced.
type Record struct {
	Seq       int64
	UserID    string
	ActionID  string
	Action    string
	Magnitude float64
	Points    int64
	Location  string
	Timestamp time.Time
	Badges    []string
}

// Migrations returns the schema statements, one per entry.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS actions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			seq        INTEGER NOT NULL,
			user_id    TEXT NOT NULL,
			action_id  TEXT NOT NULL DEFAULT '',
			action     TEXT NOT NULL,
			magnitude  REAL NOT NULL,
			points     INTEGER NOT NULL,
			location   TEXT NOT NULL DEFAULT '',
			ts         INTEGER NOT NULL,
			badges     TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_seq ON actions(seq)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_user ON actions(user_id)`,
	}
}

// Journal is an append-only action log.
type Journal struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
	logger logger.Logger
}

// Open opens (creating if needed) the journal at path and applies the schema.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// One writer keeps appends ordered and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure journal: %w", err)
	}
	for _, stmt := range Migrations() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate journal: %w", err)
		}
	}
	return &Journal{db: db, logger: logger.Get().Named("journal")}, nil
}

// Append writes r.
func (j *Journal) Append(ctx context.Context, r Record) error { //nolint:gocritic // records are small value types
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}
	if r.UserID == "" || r.Action == "" {
		return fmt.Errorf("%w: seq %d", ErrInvalidRecord, r.Seq)
	}

	badges := r.Badges
	if badges == nil {
		badges = []string{}
	}
	encoded, err := json.Marshal(badges)
	if err != nil {
		return fmt.Errorf("encode badges: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO actions (seq, user_id, action_id, action, magnitude, points, location, ts, badges)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Seq, r.UserID, r.ActionID, r.Action, r.Magnitude, r.Points, r.Location, r.Timestamp.UnixNano(), string(encoded))
	if err != nil {
		metrics.RecordJournalError()
		return fmt.Errorf("append journal seq %d: %w", r.Seq, err)
	}
	metrics.RecordJournalWrite()
	return nil
}

// Replay calls fn for every record in write order and returns how many were
// replayed and the highest sequence seen. It stops at the first error.
func (j *Journal) Replay(ctx context.Context, fn func(Record) error) (count int, maxSeq int64, err error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return 0, 0, ErrClosed
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, user_id, action_id, action, magnitude, points, location, ts, badges
		FROM actions ORDER BY seq, id
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r      Record
			ts     int64
			badges string
		)
		if err := rows.Scan(&r.Seq, &r.UserID, &r.ActionID, &r.Action, &r.Magnitude, &r.Points, &r.Location, &ts, &badges); err != nil {
			return count, maxSeq, fmt.Errorf("scan journal: %w", err)
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		if err := json.Unmarshal([]byte(badges), &r.Badges); err != nil {
			return count, maxSeq, fmt.Errorf("%w: seq %d badges: %w", ErrInvalidRecord, r.Seq, err)
		}
		if err := fn(r); err != nil {
			return count, maxSeq, err
		}
		count++
		if r.Seq > maxSeq {
			maxSeq = r.Seq
		}
	}
	if err := rows.Err(); err != nil {
		return count, maxSeq, fmt.Errorf("iterate journal: %w", err)
	}
	metrics.UpdateJournalReplayed(count)
	j.logger.Info(ctx, "journal replayed", logger.Int("records", count), logger.Int64("max_seq", maxSeq))
	return count, maxSeq, nil
}

// Close closes the database. Further calls return ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
