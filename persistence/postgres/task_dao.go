package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"go.uber.org/zap"
)

func scanTask(row pgx.Row) (*model.Task, error) {
	var definition []byte
	if err := row.Scan(&definition); err != nil {
		return nil, err
	}
	var task model.Task
	if err := json.Unmarshal(definition, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *postgresStorage) CreateTask(ctx context.Context, task *model.Task) error {
	definition, err := json.Marshal(task)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		"INSERT INTO tasks (id, workflow_id, name, definition, created_at) VALUES ($1, $2, $3, $4, $5)",
		task.Id, task.WorkflowId, task.Name, string(definition), task.CreatedAt)
	switch pgCode(err) {
	case UNIQUE_VIOLATION:
		return persistence.AlreadyExistsError{Kind: persistence.KIND_TASK, Name: task.Name}
	case FOREIGN_KEY_VIOLATION:
		return persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: task.WorkflowId}
	}
	if err != nil {
		return storageError("error in saving task", err, nil, zap.String("task", task.Name))
	}
	return nil
}

func (s *postgresStorage) GetTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := scanTask(s.pool.QueryRow(ctx, "SELECT definition FROM tasks WHERE id = $1", id))
	if err != nil {
		return nil, storageError("error in getting task", err, persistence.NotFoundError{Kind: persistence.KIND_TASK, Id: id}, zap.String("id", id))
	}
	return task, nil
}

func (s *postgresStorage) ListTasks(ctx context.Context, workflowId string) ([]*model.Task, error) {
	rows, err := s.pool.Query(ctx, "SELECT definition FROM tasks WHERE workflow_id = $1 ORDER BY created_at, name", workflowId)
	if err != nil {
		return nil, storageError("error in listing tasks", err, nil, zap.String("workflow", workflowId))
	}
	defer rows.Close()
	tasks := make([]*model.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, storageError("error in reading task", err, nil, zap.String("workflow", workflowId))
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("error in listing tasks", err, nil, zap.String("workflow", workflowId))
	}
	return tasks, nil
}

func (s *postgresStorage) UpdateTask(ctx context.Context, task *model.Task) error {
	definition, err := json.Marshal(task)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, "UPDATE tasks SET name = $2, definition = $3 WHERE id = $1", task.Id, task.Name, string(definition))
	if pgCode(err) == UNIQUE_VIOLATION {
		return persistence.AlreadyExistsError{Kind: persistence.KIND_TASK, Name: task.Name}
	}
	if err != nil {
		return storageError("error in updating task", err, nil, zap.String("id", task.Id))
	}
	if tag.RowsAffected() == 0 {
		return persistence.NotFoundError{Kind: persistence.KIND_TASK, Id: task.Id}
	}
	return nil
}

func (s *postgresStorage) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return storageError("error in deleting task", err, nil, zap.String("id", id))
	}
	if tag.RowsAffected() == 0 {
		return persistence.NotFoundError{Kind: persistence.KIND_TASK, Id: id}
	}
	return nil
}
