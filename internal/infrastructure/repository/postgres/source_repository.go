package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mvolkov/firmscope/internal/core/domain"
)

type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SourceRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	root_url TEXT NOT NULL,
	extra_paths JSONB NOT NULL DEFAULT '[]'::jsonb,
	status TEXT NOT NULL,
	error_message TEXT,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	last_ingested_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sources_status ON sources(status);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id TEXT PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	succeeded INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	pages_fetched INTEGER NOT NULL,
	pages_failed INTEGER NOT NULL,
	chunks_upserted INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON ingest_runs(started_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SyncSources reconciles the registry with the manifest. Manifest fields
// win; ingest state columns are left untouched for known sources.
func (r *SourceRepository) SyncSources(ctx context.Context, sources []domain.Source) error {
	const query = `
INSERT INTO sources (id, name, root_url, extra_paths, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	root_url = EXCLUDED.root_url,
	extra_paths = EXCLUDED.extra_paths,
	updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	for _, source := range sources {
		paths, err := json.Marshal(pathsOrEmpty(source.ExtraPaths))
		if err != nil {
			return fmt.Errorf("marshal extra paths for %s: %w", source.ID, err)
		}
		if _, err := r.db.ExecContext(ctx, query,
			source.ID, source.Name, source.RootURL, paths, string(domain.StatusPending), now,
		); err != nil {
			return fmt.Errorf("sync source %s: %w", source.ID, err)
		}
	}
	return nil
}

func (r *SourceRepository) List(ctx context.Context) ([]domain.Source, error) {
	const query = `
SELECT id, name, root_url, extra_paths, status, COALESCE(error_message, ''), chunk_count, last_ingested_at, created_at, updated_at
FROM sources
ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	const query = `
SELECT id, name, root_url, extra_paths, status, COALESCE(error_message, ''), chunk_count, last_ingested_at, created_at, updated_at
FROM sources
WHERE id = $1`

	source, err := scanSource(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrSourceNotFound, "get source", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return nil, err
	}
	return source, nil
}

func (r *SourceRepository) UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, errMessage string) error {
	const query = `
UPDATE sources
SET status = $2, error_message = NULLIF($3, ''), updated_at = $4
WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update source status: %w", err)
	}
	return requireRow(result, id)
}

func (r *SourceRepository) MarkIngested(ctx context.Context, id string, at time.Time, chunkCount int) error {
	const query = `
UPDATE sources
SET status = $2, error_message = NULL, chunk_count = $3, last_ingested_at = $4, updated_at = $4
WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, string(domain.StatusUpserted), chunkCount, at.UTC())
	if err != nil {
		return fmt.Errorf("mark source ingested: %w", err)
	}
	return requireRow(result, id)
}

func (r *SourceRepository) RecordRun(ctx context.Context, summary domain.IngestSummary) error {
	const query = `
INSERT INTO ingest_runs (id, started_at, finished_at, succeeded, failed, skipped, pages_fetched, pages_failed, chunks_upserted)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if _, err := r.db.ExecContext(ctx, query,
		summary.RunID, summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
		summary.Succeeded, summary.Failed, summary.Skipped,
		summary.PagesFetched, summary.PagesFailed, summary.ChunksUpserted,
	); err != nil {
		return fmt.Errorf("record ingest run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*domain.Source, error) {
	var (
		source       domain.Source
		pathsRaw     []byte
		status       string
		lastIngested sql.NullTime
	)
	if err := row.Scan(
		&source.ID, &source.Name, &source.RootURL, &pathsRaw, &status,
		&source.Error, &source.ChunkCount, &lastIngested, &source.CreatedAt, &source.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan source: %w", err)
	}

	source.Status = domain.SourceStatus(status)
	if lastIngested.Valid {
		t := lastIngested.Time
		source.LastIngestedAt = &t
	}
	if len(pathsRaw) > 0 {
		if err := json.Unmarshal(pathsRaw, &source.ExtraPaths); err != nil {
			return nil, fmt.Errorf("decode extra paths: %w", err)
		}
	}
	return &source, nil
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrSourceNotFound, "update source", fmt.Errorf("id=%s", id))
	}
	return nil
}

func pathsOrEmpty(paths []string) []string {
	if paths == nil {
		return []string{}
	}
	return paths
}
