package redis

import (
	"context"
	"sort"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"github.com/mohitkumar/dagforge/util"
	"go.uber.org/zap"
)

const TASK_KEY string = "TASK"
const TASK_NAME_KEY string = "TASK_NAME"
const WORKFLOW_TASKS_KEY string = "WORKFLOW_TASKS"

var _ persistence.TaskDao = new(redisTaskDao)

type redisTaskDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.Task]
}

func newRedisTaskDao(base *baseDao) *redisTaskDao {
	return &redisTaskDao{
		baseDao:        base,
		encoderDecoder: util.NewJsonEncoderDecoder[model.Task](),
	}
}

func (td *redisTaskDao) workflowExists(ctx context.Context, workflowId string) error {
	ok, err := td.redisClient.HExists(ctx, td.getNamespaceKey(WORKFLOW_KEY), workflowId).Result()
	if err != nil {
		return storageError("error in checking workflow", err, nil, zap.String("workflow", workflowId))
	}
	if !ok {
		return persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: workflowId}
	}
	return nil
}

func (td *redisTaskDao) CreateTask(ctx context.Context, task *model.Task) error {
	if err := td.workflowExists(ctx, task.WorkflowId); err != nil {
		return err
	}
	data, err := td.encoderDecoder.Encode(*task)
	if err != nil {
		return err
	}
	nameKey := td.getNamespaceKey(TASK_NAME_KEY, task.WorkflowId)
	claimed, err := td.redisClient.HSetNX(ctx, nameKey, task.Name, task.Id).Result()
	if err != nil {
		return storageError("error in claiming task name", err, nil, zap.String("task", task.Name))
	}
	if !claimed {
		return persistence.AlreadyExistsError{Kind: persistence.KIND_TASK, Name: task.Name}
	}
	_, err = td.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HSet(ctx, td.getNamespaceKey(TASK_KEY), task.Id, string(data))
		pipe.SAdd(ctx, td.getNamespaceKey(WORKFLOW_TASKS_KEY, task.WorkflowId), task.Id)
		return nil
	})
	if err != nil {
		td.redisClient.HDel(ctx, nameKey, task.Name)
		return storageError("error in saving task", err, nil, zap.String("task", task.Name))
	}
	return nil
}

func (td *redisTaskDao) GetTask(ctx context.Context, id string) (*model.Task, error) {
	val, err := td.redisClient.HGet(ctx, td.getNamespaceKey(TASK_KEY), id).Result()
	if err != nil {
		return nil, storageError("error in getting task", err, persistence.NotFoundError{Kind: persistence.KIND_TASK, Id: id}, zap.String("id", id))
	}
	return td.encoderDecoder.Decode([]byte(val))
}

func (td *redisTaskDao) ListTasks(ctx context.Context, workflowId string) ([]*model.Task, error) {
	ids, err := td.redisClient.SMembers(ctx, td.getNamespaceKey(WORKFLOW_TASKS_KEY, workflowId)).Result()
	if err != nil {
		return nil, storageError("error in listing tasks", err, nil, zap.String("workflow", workflowId))
	}
	vals, err := td.hashValues(ctx, td.getNamespaceKey(TASK_KEY), ids)
	if err != nil {
		return nil, storageError("error in reading tasks", err, nil, zap.String("workflow", workflowId))
	}
	tasks, err := util.DecodeAll[model.Task](td.encoderDecoder, vals)
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].Name < tasks[j].Name
	})
	return tasks, nil
}

func (td *redisTaskDao) UpdateTask(ctx context.Context, task *model.Task) error {
	current, err := td.GetTask(ctx, task.Id)
	if err != nil {
		return err
	}
	data, err := td.encoderDecoder.Encode(*task)
	if err != nil {
		return err
	}
	nameKey := td.getNamespaceKey(TASK_NAME_KEY, current.WorkflowId)
	if current.Name != task.Name {
		claimed, err := td.redisClient.HSetNX(ctx, nameKey, task.Name, task.Id).Result()
		if err != nil {
			return storageError("error in claiming task name", err, nil, zap.String("task", task.Name))
		}
		if !claimed {
			return persistence.AlreadyExistsError{Kind: persistence.KIND_TASK, Name: task.Name}
		}
	}
	_, err = td.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HSet(ctx, td.getNamespaceKey(TASK_KEY), task.Id, string(data))
		if current.Name != task.Name {
			pipe.HDel(ctx, nameKey, current.Name)
		}
		return nil
	})
	if err != nil {
		return storageError("error in updating task", err, nil, zap.String("id", task.Id))
	}
	return nil
}

func (td *redisTaskDao) DeleteTask(ctx context.Context, id string) error {
	current, err := td.GetTask(ctx, id)
	if err != nil {
		return err
	}
	_, err = td.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HDel(ctx, td.getNamespaceKey(TASK_KEY), id)
		pipe.SRem(ctx, td.getNamespaceKey(WORKFLOW_TASKS_KEY, current.WorkflowId), id)
		pipe.HDel(ctx, td.getNamespaceKey(TASK_NAME_KEY, current.WorkflowId), current.Name)
		return nil
	})
	if err != nil {
		return storageError("error in deleting task", err, nil, zap.String("id", id))
	}
	return nil
}
