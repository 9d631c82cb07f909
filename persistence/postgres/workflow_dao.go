package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"go.uber.org/zap"
)

const workflowColumns = "id, name, description, schedule, is_active, created_at, updated_at"

func scanWorkflow(row pgx.Row) (*model.Workflow, error) {
	var wf model.Workflow
	if err := row.Scan(&wf.Id, &wf.Name, &wf.Description, &wf.Schedule, &wf.IsActive, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (s *postgresStorage) CreateWorkflow(ctx context.Context, wf *model.Workflow) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO workflows ("+workflowColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		wf.Id, wf.Name, wf.Description, wf.Schedule, wf.IsActive, wf.CreatedAt, wf.UpdatedAt)
	if pgCode(err) == UNIQUE_VIOLATION {
		return persistence.AlreadyExistsError{Kind: persistence.KIND_WORKFLOW, Name: wf.Name}
	}
	if err != nil {
		return storageError("error in saving workflow", err, nil, zap.String("id", wf.Id))
	}
	return nil
}

func (s *postgresStorage) GetWorkflow(ctx context.Context, id string) (*model.Workflow, error) {
	wf, err := scanWorkflow(s.pool.QueryRow(ctx, "SELECT "+workflowColumns+" FROM workflows WHERE id = $1", id))
	if err != nil {
		return nil, storageError("error in getting workflow", err, persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: id}, zap.String("id", id))
	}
	return wf, nil
}

func (s *postgresStorage) queryWorkflows(ctx context.Context, sql string, args ...any) ([]*model.Workflow, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageError("error in listing workflows", err, nil)
	}
	defer rows.Close()
	out := make([]*model.Workflow, 0)
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, storageError("error in reading workflow", err, nil)
		}
		out = append(out, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("error in listing workflows", err, nil)
	}
	return out, nil
}

func (s *postgresStorage) ListWorkflows(ctx context.Context, offset int, limit int) ([]*model.Workflow, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM workflows").Scan(&total); err != nil {
		return nil, 0, storageError("error in counting workflows", err, nil)
	}
	sql := "SELECT " + workflowColumns + " FROM workflows ORDER BY created_at, id OFFSET $1"
	args := []any{max(offset, 0)}
	if limit > 0 {
		sql += " LIMIT $2"
		args = append(args, limit)
	}
	workflows, err := s.queryWorkflows(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	return workflows, total, nil
}

func (s *postgresStorage) ListActiveWorkflows(ctx context.Context) ([]*model.Workflow, error) {
	return s.queryWorkflows(ctx, "SELECT "+workflowColumns+" FROM workflows WHERE is_active ORDER BY created_at, id")
}

func (s *postgresStorage) UpdateWorkflow(ctx context.Context, wf *model.Workflow) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE workflows SET name = $2, description = $3, schedule = $4, is_active = $5, updated_at = $6 WHERE id = $1",
		wf.Id, wf.Name, wf.Description, wf.Schedule, wf.IsActive, wf.UpdatedAt)
	if pgCode(err) == UNIQUE_VIOLATION {
		return persistence.AlreadyExistsError{Kind: persistence.KIND_WORKFLOW, Name: wf.Name}
	}
	if err != nil {
		return storageError("error in updating workflow", err, nil, zap.String("id", wf.Id))
	}
	if tag.RowsAffected() == 0 {
		return persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: wf.Id}
	}
	return nil
}

// DeleteWorkflow relies on ON DELETE CASCADE for tasks and job runs.
func (s *postgresStorage) DeleteWorkflow(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return storageError("error in deleting workflow", err, nil, zap.String("id", id))
	}
	if tag.RowsAffected() == 0 {
		return persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: id}
	}
	return nil
}

func (s *postgresStorage) CountWorkflows(ctx context.Context) (int, int, error) {
	var total, active int
	err := s.pool.QueryRow(ctx, "SELECT count(*), count(*) FILTER (WHERE is_active) FROM workflows").Scan(&total, &active)
	if err != nil {
		return 0, 0, storageError("error in counting workflows", err, nil)
	}
	return total, active, nil
}
