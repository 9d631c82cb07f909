package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mohitkumar/dagforge/logger"
	"github.com/mohitkumar/dagforge/persistence"
	"go.uber.org/zap"
)

const SCHEMA = `
CREATE TABLE IF NOT EXISTS workflows (
    id          TEXT PRIMARY KEY,
    name        VARCHAR(255) NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    schedule    VARCHAR(255) NOT NULL DEFAULT '',
    is_active   BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
    id          TEXT PRIMARY KEY,
    workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
    name        VARCHAR(255) NOT NULL,
    definition  JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    UNIQUE (workflow_id, name)
);

CREATE TABLE IF NOT EXISTS job_runs (
    id            TEXT PRIMARY KEY,
    workflow_id   TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
    engine_run_id TEXT UNIQUE,
    status        VARCHAR(20) NOT NULL DEFAULT 'queued',
    triggered_by  VARCHAR(100) NOT NULL DEFAULT 'manual',
    started_at    TIMESTAMPTZ,
    ended_at      TIMESTAMPTZ,
    logs          JSONB,
    created_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_workflow_id ON tasks(workflow_id);
CREATE INDEX IF NOT EXISTS idx_job_runs_workflow_id ON job_runs(workflow_id);
CREATE INDEX IF NOT EXISTS idx_job_runs_created_at ON job_runs(created_at);
`

const UNIQUE_VIOLATION = "23505"
const FOREIGN_KEY_VIOLATION = "23503"

type Config struct {
	URL string
}

var _ persistence.Storage = new(postgresStorage)

type postgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, conf Config) (*postgresStorage, error) {
	pool, err := pgxpool.New(ctx, conf.URL)
	if err != nil {
		return nil, err
	}
	s := &postgresStorage{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables when they do not exist yet.
func (s *postgresStorage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, SCHEMA); err != nil {
		logger.Error("error in applying schema", zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *postgresStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *postgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func storageError(msg string, err error, notFound error, fields ...zap.Field) error {
	if notFound != nil && errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	logger.Error(msg, append(fields, zap.Error(err))...)
	return persistence.StorageLayerError{Message: err.Error()}
}
