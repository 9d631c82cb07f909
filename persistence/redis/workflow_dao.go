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

const WORKFLOW_KEY string = "WORKFLOW"
const WORKFLOW_NAME_KEY string = "WORKFLOW_NAME"

var _ persistence.WorkflowDao = new(redisWorkflowDao)

type redisWorkflowDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.Workflow]
}

func newRedisWorkflowDao(base *baseDao) *redisWorkflowDao {
	return &redisWorkflowDao{
		baseDao:        base,
		encoderDecoder: util.NewJsonEncoderDecoder[model.Workflow](),
	}
}

func (wd *redisWorkflowDao) CreateWorkflow(ctx context.Context, wf *model.Workflow) error {
	data, err := wd.encoderDecoder.Encode(*wf)
	if err != nil {
		return err
	}
	nameKey := wd.getNamespaceKey(WORKFLOW_NAME_KEY)
	claimed, err := wd.redisClient.HSetNX(ctx, nameKey, wf.Name, wf.Id).Result()
	if err != nil {
		return storageError("error in claiming workflow name", err, nil, zap.String("name", wf.Name))
	}
	if !claimed {
		return persistence.AlreadyExistsError{Kind: persistence.KIND_WORKFLOW, Name: wf.Name}
	}
	if err := wd.redisClient.HSet(ctx, wd.getNamespaceKey(WORKFLOW_KEY), wf.Id, string(data)).Err(); err != nil {
		wd.redisClient.HDel(ctx, nameKey, wf.Name)
		return storageError("error in saving workflow", err, nil, zap.String("id", wf.Id))
	}
	return nil
}

func (wd *redisWorkflowDao) GetWorkflow(ctx context.Context, id string) (*model.Workflow, error) {
	val, err := wd.redisClient.HGet(ctx, wd.getNamespaceKey(WORKFLOW_KEY), id).Result()
	if err != nil {
		return nil, storageError("error in getting workflow", err, persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: id}, zap.String("id", id))
	}
	return wd.encoderDecoder.Decode([]byte(val))
}

func (wd *redisWorkflowDao) all(ctx context.Context) ([]*model.Workflow, error) {
	vals, err := wd.redisClient.HVals(ctx, wd.getNamespaceKey(WORKFLOW_KEY)).Result()
	if err != nil {
		return nil, storageError("error in listing workflows", err, nil)
	}
	workflows, err := util.DecodeAll[model.Workflow](wd.encoderDecoder, vals)
	if err != nil {
		return nil, err
	}
	sort.Slice(workflows, func(i, j int) bool {
		if !workflows[i].CreatedAt.Equal(workflows[j].CreatedAt) {
			return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
		}
		return workflows[i].Id < workflows[j].Id
	})
	return workflows, nil
}

func (wd *redisWorkflowDao) ListWorkflows(ctx context.Context, offset int, limit int) ([]*model.Workflow, int, error) {
	workflows, err := wd.all(ctx)
	if err != nil {
		return nil, 0, err
	}
	return persistence.Page(workflows, offset, limit), len(workflows), nil
}

func (wd *redisWorkflowDao) ListActiveWorkflows(ctx context.Context) ([]*model.Workflow, error) {
	workflows, err := wd.all(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*model.Workflow, 0, len(workflows))
	for _, wf := range workflows {
		if wf.IsActive {
			active = append(active, wf)
		}
	}
	return active, nil
}

func (wd *redisWorkflowDao) UpdateWorkflow(ctx context.Context, wf *model.Workflow) error {
	current, err := wd.GetWorkflow(ctx, wf.Id)
	if err != nil {
		return err
	}
	data, err := wd.encoderDecoder.Encode(*wf)
	if err != nil {
		return err
	}
	nameKey := wd.getNamespaceKey(WORKFLOW_NAME_KEY)
	if current.Name != wf.Name {
		claimed, err := wd.redisClient.HSetNX(ctx, nameKey, wf.Name, wf.Id).Result()
		if err != nil {
			return storageError("error in claiming workflow name", err, nil, zap.String("name", wf.Name))
		}
		if !claimed {
			return persistence.AlreadyExistsError{Kind: persistence.KIND_WORKFLOW, Name: wf.Name}
		}
	}
	_, err = wd.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HSet(ctx, wd.getNamespaceKey(WORKFLOW_KEY), wf.Id, string(data))
		if current.Name != wf.Name {
			pipe.HDel(ctx, nameKey, current.Name)
		}
		return nil
	})
	if err != nil {
		return storageError("error in updating workflow", err, nil, zap.String("id", wf.Id))
	}
	return nil
}

// DeleteWorkflow removes the workflow, its tasks and its runs in one MULTI.
func (wd *redisWorkflowDao) DeleteWorkflow(ctx context.Context, id string) error {
	wf, err := wd.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	tasksKey := wd.getNamespaceKey(WORKFLOW_TASKS_KEY, id)
	runsKey := wd.getNamespaceKey(WORKFLOW_RUNS_KEY, id)
	taskIds, err := wd.redisClient.SMembers(ctx, tasksKey).Result()
	if err != nil {
		return storageError("error in reading workflow tasks", err, nil, zap.String("id", id))
	}
	runIds, err := wd.redisClient.SMembers(ctx, runsKey).Result()
	if err != nil {
		return storageError("error in reading workflow runs", err, nil, zap.String("id", id))
	}
	engineRunIds, err := wd.engineRunIds(ctx, runIds)
	if err != nil {
		return storageError("error in reading workflow runs", err, nil, zap.String("id", id))
	}
	_, err = wd.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HDel(ctx, wd.getNamespaceKey(WORKFLOW_KEY), id)
		pipe.HDel(ctx, wd.getNamespaceKey(WORKFLOW_NAME_KEY), wf.Name)
		if len(taskIds) > 0 {
			pipe.HDel(ctx, wd.getNamespaceKey(TASK_KEY), taskIds...)
		}
		if len(runIds) > 0 {
			pipe.HDel(ctx, wd.getNamespaceKey(JOB_RUN_KEY), runIds...)
		}
		if len(engineRunIds) > 0 {
			pipe.HDel(ctx, wd.getNamespaceKey(ENGINE_RUN_KEY), engineRunIds...)
		}
		pipe.Del(ctx, tasksKey, runsKey, wd.getNamespaceKey(TASK_NAME_KEY, id))
		return nil
	})
	if err != nil {
		return storageError("error in deleting workflow", err, nil, zap.String("id", id))
	}
	return nil
}

func (wd *redisWorkflowDao) engineRunIds(ctx context.Context, runIds []string) ([]string, error) {
	vals, err := wd.hashValues(ctx, wd.getNamespaceKey(JOB_RUN_KEY), runIds)
	if err != nil {
		return nil, err
	}
	runs, err := util.DecodeAll[model.JobRun](util.NewJsonEncoderDecoder[model.JobRun](), vals)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		if r.EngineRunId != "" {
			ids = append(ids, r.EngineRunId)
		}
	}
	return ids, nil
}

func (wd *redisWorkflowDao) CountWorkflows(ctx context.Context) (int, int, error) {
	workflows, err := wd.all(ctx)
	if err != nil {
		return 0, 0, err
	}
	active := 0
	for _, wf := range workflows {
		if wf.IsActive {
			active++
		}
	}
	return len(workflows), active, nil
}
