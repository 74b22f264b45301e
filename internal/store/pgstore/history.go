package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/csvload/internal/core"
)

// Run statuses stored in load_runs.status.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultHistoryLimit caps Recent when no limit is given.
const DefaultHistoryLimit = 50

// Run is one row of the load_runs table.
type Run struct {
	ID        string        `json:"id"`
	Key       string        `json:"key"`
	File      string        `json:"file"`
	Status    string        `json:"status"`
	Lines     int           `json:"lines"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Bytes     int64         `json:"bytes"`
	ErrorCode string        `json:"errorCode,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

const historySchema = `
CREATE TABLE IF NOT EXISTS load_runs (
	id          UUID PRIMARY KEY,
	loader_key  TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	status      TEXT NOT NULL,
	lines       INTEGER NOT NULL DEFAULT 0,
	created     INTEGER NOT NULL DEFAULT 0,
	updated     INTEGER NOT NULL DEFAULT 0,
	bytes       BIGINT NOT NULL DEFAULT 0,
	error_code  TEXT,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS load_runs_key_started_idx ON load_runs (loader_key, started_at DESC)`

// History records file runs in the load_runs table.
type History struct {
	db DBTX
}

// NewHistory returns a History writing through db.
func NewHistory(db DBTX) *History {
	return &History{db: db}
}

// EnsureSchema creates the load_runs table if it does not exist.
func (h *History) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, historySchema); err != nil {
		return fmt.Errorf("create load_runs: %w", err)
	}
	return nil
}

// Record stores the outcome of a run. runErr is the error Run returned, if any.
func (h *History) Record(ctx context.Context, res core.Result, runErr error) error {
	id, err := uuid.Parse(res.RunID)
	if err != nil {
		return fmt.Errorf("record run: invalid run id %q: %w", res.RunID, err)
	}

	status := StatusCompleted
	var code, msg pgtype.Text
	if runErr != nil {
		status = StatusFailed
		code = pgtype.Text{String: core.MapError(runErr).Code, Valid: true}
		msg = pgtype.Text{String: runErr.Error(), Valid: true}
	}

	_, err = h.db.Exec(ctx, `
		INSERT INTO load_runs (
			id, loader_key, file_name, status, lines, created, updated,
			bytes, error_code, error, started_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		pgtype.UUID{Bytes: id, Valid: true},
		res.Key,
		res.File,
		status,
		res.Lines,
		res.Created,
		res.Updated,
		res.Bytes,
		code,
		msg,
		res.StartedAt,
		res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns the latest runs for key, newest first. An empty key lists
// runs of every loader.
func (h *History) Recent(ctx context.Context, key string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := h.db.Query(ctx, `
		SELECT id, loader_key, file_name, status, lines, created, updated,
		       bytes, error_code, error, started_at, duration_ms
		FROM load_runs
		WHERE $1 = '' OR loader_key = $1
		ORDER BY started_at DESC
		LIMIT $2`,
		key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			id         pgtype.UUID
			code, msg  pgtype.Text
			durationMs int64
		)
		if err := rows.Scan(
			&id, &r.Key, &r.File, &r.Status, &r.Lines, &r.Created, &r.Updated,
			&r.Bytes, &code, &msg, &r.StartedAt, &durationMs,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ID = uuid.UUID(id.Bytes).String()
		r.ErrorCode = code.String
		r.Error = msg.String
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
