// Package registry records index builds in PostgreSQL so operators can see
// which book was indexed when, by whom, and with what result.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

const schema = `
CREATE TABLE IF NOT EXISTS index_builds (
    id           UUID PRIMARY KEY,
    title        TEXT NOT NULL,
    source_dir   TEXT NOT NULL,
    output_dir   TEXT NOT NULL,
    requested_by TEXT NOT NULL DEFAULT '',
    fingerprint  TEXT NOT NULL DEFAULT '',
    docs         INTEGER NOT NULL DEFAULT 0,
    terms        INTEGER NOT NULL DEFAULT 0,
    status       TEXT NOT NULL,
    error        TEXT NOT NULL DEFAULT '',
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS index_builds_started_at ON index_builds (started_at DESC);
`

type Build struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	SourceDir   string     `json:"source_dir"`
	OutputDir   string     `json:"output_dir"`
	RequestedBy string     `json:"requested_by"`
	Fingerprint string     `json:"fingerprint"`
	Docs        int        `json:"docs"`
	Terms       int        `json:"terms"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Outcome is what Finish records. A non-nil Err marks the build failed.
type Outcome struct {
	Fingerprint string
	Docs        int
	Terms       int
	Err         error
}

// Registry writes build records. All methods on a nil *Registry are no-ops,
// so services run without a database.
type Registry struct {
	db     *sql.DB
	logger *slog.Logger
}

// New returns nil for a nil db.
func New(db *sql.DB) *Registry {
	if db == nil {
		return nil
	}
	return &Registry{
		db:     db,
		logger: slog.Default().With("component", "build-registry"),
	}
}

func (r *Registry) EnsureSchema(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating registry schema: %w", err)
	}
	return nil
}

// Start inserts a RUNNING build and returns its id. A nil registry still
// hands out ids so callers can correlate logs and events.
func (r *Registry) Start(ctx context.Context, b Build) (uuid.UUID, error) {
	id := uuid.New()
	if r == nil {
		return id, nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO index_builds (id, title, source_dir, output_dir, requested_by, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, b.Title, b.SourceDir, b.OutputDir, b.RequestedBy, StatusRunning, time.Now().UTC(),
	)
	if err != nil {
		return id, fmt.Errorf("recording build start: %w", err)
	}
	r.logger.Debug("build started", "build_id", id)
	return id, nil
}

func (r *Registry) Finish(ctx context.Context, id uuid.UUID, out Outcome) error {
	if r == nil {
		return nil
	}
	status, message := StatusSucceeded, ""
	if out.Err != nil {
		status, message = StatusFailed, out.Err.Error()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE index_builds
		 SET status = $2, error = $3, fingerprint = $4, docs = $5, terms = $6, finished_at = $7
		 WHERE id = $1`,
		id, status, message, out.Fingerprint, out.Docs, out.Terms, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording build finish: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("build %s not found", id)
	}
	r.logger.Debug("build finished", "build_id", id, "status", status)
	return nil
}

const selectBuilds = `SELECT id, title, source_dir, output_dir, requested_by, fingerprint, docs, terms,
        status, error, started_at, finished_at
 FROM index_builds ORDER BY started_at DESC LIMIT $1`

// Latest returns the most recently started build, or nil when there is
// none.
func (r *Registry) Latest(ctx context.Context) (*Build, error) {
	builds, err := r.Recent(ctx, 1)
	if err != nil || len(builds) == 0 {
		return nil, err
	}
	return &builds[0], nil
}

// Recent returns up to limit builds, newest first.
func (r *Registry) Recent(ctx context.Context, limit int) ([]Build, error) {
	if r == nil {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, selectBuilds, limit)
	if err != nil {
		return nil, fmt.Errorf("querying builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var (
			b          Build
			finishedAt sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.Title, &b.SourceDir, &b.OutputDir, &b.RequestedBy, &b.Fingerprint,
			&b.Docs, &b.Terms, &b.Status, &b.Error, &b.StartedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning build: %w", err)
		}
		if finishedAt.Valid {
			b.FinishedAt = &finishedAt.Time
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}
