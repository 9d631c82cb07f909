package redis

import (
	"context"
	"sort"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"github.com/mohitkumar/dagforge/util"
	"go.uber.org/zap"
)

const JOB_RUN_KEY string = "JOB_RUN"
const WORKFLOW_RUNS_KEY string = "WORKFLOW_RUNS"
const ENGINE_RUN_KEY string = "ENGINE_RUN"

var _ persistence.JobRunDao = new(redisJobRunDao)

type redisJobRunDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.JobRun]
}

func newRedisJobRunDao(base *baseDao) *redisJobRunDao {
	return &redisJobRunDao{
		baseDao:        base,
		encoderDecoder: util.NewJsonEncoderDecoder[model.JobRun](),
	}
}

func (jd *redisJobRunDao) CreateJobRun(ctx context.Context, run *model.JobRun) error {
	ok, err := jd.redisClient.HExists(ctx, jd.getNamespaceKey(WORKFLOW_KEY), run.WorkflowId).Result()
	if err != nil {
		return storageError("error in checking workflow", err, nil, zap.String("workflow", run.WorkflowId))
	}
	if !ok {
		return persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: run.WorkflowId}
	}
	data, err := jd.encoderDecoder.Encode(*run)
	if err != nil {
		return err
	}
	if err := jd.claimEngineRun(ctx, run); err != nil {
		return err
	}
	_, err = jd.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HSet(ctx, jd.getNamespaceKey(JOB_RUN_KEY), run.Id, string(data))
		pipe.SAdd(ctx, jd.getNamespaceKey(WORKFLOW_RUNS_KEY, run.WorkflowId), run.Id)
		return nil
	})
	if err != nil {
		jd.releaseEngineRun(ctx, run.EngineRunId)
		return storageError("error in saving job run", err, nil, zap.String("id", run.Id))
	}
	return nil
}

// claimEngineRun maps the run's engine run id to the run, failing when
// another run holds it.
func (jd *redisJobRunDao) claimEngineRun(ctx context.Context, run *model.JobRun) error {
	if run.EngineRunId == "" {
		return nil
	}
	key := jd.getNamespaceKey(ENGINE_RUN_KEY)
	claimed, err := jd.redisClient.HSetNX(ctx, key, run.EngineRunId, run.Id).Result()
	if err != nil {
		return storageError("error in claiming engine run", err, nil, zap.String("engineRun", run.EngineRunId))
	}
	if claimed {
		return nil
	}
	owner, err := jd.redisClient.HGet(ctx, key, run.EngineRunId).Result()
	if err != nil && err != rd.Nil {
		return storageError("error in reading engine run", err, nil, zap.String("engineRun", run.EngineRunId))
	}
	if owner != run.Id {
		return persistence.AlreadyExistsError{Kind: persistence.KIND_JOB_RUN, Name: run.EngineRunId}
	}
	return nil
}

func (jd *redisJobRunDao) releaseEngineRun(ctx context.Context, engineRunId string) {
	if engineRunId != "" {
		jd.redisClient.HDel(ctx, jd.getNamespaceKey(ENGINE_RUN_KEY), engineRunId)
	}
}

func (jd *redisJobRunDao) GetJobRun(ctx context.Context, id string) (*model.JobRun, error) {
	val, err := jd.redisClient.HGet(ctx, jd.getNamespaceKey(JOB_RUN_KEY), id).Result()
	if err != nil {
		return nil, storageError("error in getting job run", err, persistence.NotFoundError{Kind: persistence.KIND_JOB_RUN, Id: id}, zap.String("id", id))
	}
	return jd.encoderDecoder.Decode([]byte(val))
}

func (jd *redisJobRunDao) load(ctx context.Context, workflowId string) ([]*model.JobRun, error) {
	var vals []string
	var err error
	if workflowId == "" {
		vals, err = jd.redisClient.HVals(ctx, jd.getNamespaceKey(JOB_RUN_KEY)).Result()
	} else {
		var ids []string
		ids, err = jd.redisClient.SMembers(ctx, jd.getNamespaceKey(WORKFLOW_RUNS_KEY, workflowId)).Result()
		if err == nil {
			vals, err = jd.hashValues(ctx, jd.getNamespaceKey(JOB_RUN_KEY), ids)
		}
	}
	if err != nil {
		return nil, storageError("error in listing job runs", err, nil, zap.String("workflow", workflowId))
	}
	return util.DecodeAll[model.JobRun](jd.encoderDecoder, vals)
}

func (jd *redisJobRunDao) ListJobRuns(ctx context.Context, filter persistence.JobRunFilter) ([]*model.JobRun, int, error) {
	runs, err := jd.load(ctx, filter.WorkflowId)
	if err != nil {
		return nil, 0, err
	}
	matched := make([]*model.JobRun, 0, len(runs))
	for _, r := range runs {
		if filter.Status == "" || r.Status == filter.Status {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Id > matched[j].Id
	})
	return persistence.Page(matched, filter.Offset, filter.Limit), len(matched), nil
}

func (jd *redisJobRunDao) UpdateJobRun(ctx context.Context, run *model.JobRun) error {
	current, err := jd.GetJobRun(ctx, run.Id)
	if err != nil {
		return err
	}
	data, err := jd.encoderDecoder.Encode(*run)
	if err != nil {
		return err
	}
	changed := current.EngineRunId != run.EngineRunId
	if changed {
		if err := jd.claimEngineRun(ctx, run); err != nil {
			return err
		}
	}
	_, err = jd.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HSet(ctx, jd.getNamespaceKey(JOB_RUN_KEY), run.Id, string(data))
		if changed && current.EngineRunId != "" {
			pipe.HDel(ctx, jd.getNamespaceKey(ENGINE_RUN_KEY), current.EngineRunId)
		}
		return nil
	})
	if err != nil {
		if changed {
			jd.releaseEngineRun(ctx, run.EngineRunId)
		}
		return storageError("error in updating job run", err, nil, zap.String("id", run.Id))
	}
	return nil
}

func (jd *redisJobRunDao) CountJobRuns(ctx context.Context, since time.Time) (map[model.RunStatus]int, int, error) {
	runs, err := jd.load(ctx, "")
	if err != nil {
		return nil, 0, err
	}
	byStatus := make(map[model.RunStatus]int)
	recent := 0
	for _, r := range runs {
		byStatus[r.Status]++
		if !r.CreatedAt.Before(since) {
			recent++
		}
	}
	return byStatus, recent, nil
}
