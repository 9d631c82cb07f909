package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"go.uber.org/zap"
)

const jobRunColumns = "id, workflow_id, engine_run_id, status, triggered_by, started_at, ended_at, logs, created_at"

func scanJobRun(row pgx.Row) (*model.JobRun, error) {
	var run model.JobRun
	var engineRunId *string
	var status string
	if err := row.Scan(&run.Id, &run.WorkflowId, &engineRunId, &status, &run.TriggeredBy, &run.StartedAt, &run.EndedAt, &run.Logs, &run.CreatedAt); err != nil {
		return nil, err
	}
	if engineRunId != nil {
		run.EngineRunId = *engineRunId
	}
	run.Status = model.RunStatus(status)
	return &run, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *postgresStorage) CreateJobRun(ctx context.Context, run *model.JobRun) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO job_runs ("+jobRunColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		run.Id, run.WorkflowId, nullable(run.EngineRunId), string(run.Status), run.TriggeredBy, run.StartedAt, run.EndedAt, run.Logs, run.CreatedAt)
	switch pgCode(err) {
	case UNIQUE_VIOLATION:
		return persistence.AlreadyExistsError{Kind: persistence.KIND_JOB_RUN, Name: run.EngineRunId}
	case FOREIGN_KEY_VIOLATION:
		return persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: run.WorkflowId}
	}
	if err != nil {
		return storageError("error in saving job run", err, nil, zap.String("id", run.Id))
	}
	return nil
}

func (s *postgresStorage) GetJobRun(ctx context.Context, id string) (*model.JobRun, error) {
	run, err := scanJobRun(s.pool.QueryRow(ctx, "SELECT "+jobRunColumns+" FROM job_runs WHERE id = $1", id))
	if err != nil {
		return nil, storageError("error in getting job run", err, persistence.NotFoundError{Kind: persistence.KIND_JOB_RUN, Id: id}, zap.String("id", id))
	}
	return run, nil
}

func (s *postgresStorage) ListJobRuns(ctx context.Context, filter persistence.JobRunFilter) ([]*model.JobRun, int, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.WorkflowId != "" {
		args = append(args, filter.WorkflowId)
		conditions = append(conditions, fmt.Sprintf("workflow_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM job_runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, storageError("error in counting job runs", err, nil)
	}

	args = append(args, max(filter.Offset, 0))
	sql := "SELECT " + jobRunColumns + " FROM job_runs" + where + fmt.Sprintf(" ORDER BY created_at DESC, id DESC OFFSET $%d", len(args))
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, storageError("error in listing job runs", err, nil)
	}
	defer rows.Close()
	runs := make([]*model.JobRun, 0)
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, 0, storageError("error in reading job run", err, nil)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageError("error in listing job runs", err, nil)
	}
	return runs, total, nil
}

func (s *postgresStorage) UpdateJobRun(ctx context.Context, run *model.JobRun) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE job_runs SET engine_run_id = $2, status = $3, started_at = $4, ended_at = $5, logs = $6 WHERE id = $1",
		run.Id, nullable(run.EngineRunId), string(run.Status), run.StartedAt, run.EndedAt, run.Logs)
	if pgCode(err) == UNIQUE_VIOLATION {
		return persistence.AlreadyExistsError{Kind: persistence.KIND_JOB_RUN, Name: run.EngineRunId}
	}
	if err != nil {
		return storageError("error in updating job run", err, nil, zap.String("id", run.Id))
	}
	if tag.RowsAffected() == 0 {
		return persistence.NotFoundError{Kind: persistence.KIND_JOB_RUN, Id: run.Id}
	}
	return nil
}

func (s *postgresStorage) CountJobRuns(ctx context.Context, since time.Time) (map[model.RunStatus]int, int, error) {
	rows, err := s.pool.Query(ctx, "SELECT status, count(*) FROM job_runs GROUP BY status")
	if err != nil {
		return nil, 0, storageError("error in counting job runs", err, nil)
	}
	defer rows.Close()
	byStatus := make(map[model.RunStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, 0, storageError("error in counting job runs", err, nil)
		}
		byStatus[model.RunStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageError("error in counting job runs", err, nil)
	}
	var recent int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM job_runs WHERE created_at >= $1", since).Scan(&recent); err != nil {
		return nil, 0, storageError("error in counting recent job runs", err, nil)
	}
	return byStatus, recent, nil
}
