package engine

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mohitkumar/dagforge/logger"
	"go.uber.org/zap"
)

const DEFAULT_TIMEOUT = 30 * time.Second
const HEALTH_TIMEOUT = 5 * time.Second

type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

type restClient struct {
	http      *resty.Client
	healthURL string
}

var _ Client = new(restClient)

type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// NewRestClient talks to an Airflow compatible REST API rooted at
// conf.BaseURL, for example http://localhost:8080/api/v1.
func NewRestClient(conf Config) *restClient {
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}
	base := strings.TrimRight(conf.BaseURL, "/")
	h := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if conf.Username != "" {
		h.SetBasicAuth(conf.Username, conf.Password)
	}
	return &restClient{
		http:      h,
		healthURL: strings.TrimSuffix(base, "/api/v1") + "/health",
	}
}

func (c *restClient) do(ctx context.Context, op string, send func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	start := time.Now()
	resp, err := send(c.http.R().SetContext(ctx).SetError(&problem{}))
	if err != nil {
		recordCall(ctx, op, "unavailable", start)
		logger.Warn("engine call failed", zap.String("op", op), zap.Error(err))
		return nil, &UnavailableError{Op: op, Err: err}
	}
	if resp.IsError() {
		recordCall(ctx, op, strconv.Itoa(resp.StatusCode()), start)
		return nil, &Error{Op: op, StatusCode: resp.StatusCode(), Message: problemMessage(resp)}
	}
	recordCall(ctx, op, "ok", start)
	return resp, nil
}

func problemMessage(resp *resty.Response) string {
	if p, ok := resp.Error().(*problem); ok && p != nil {
		if p.Detail != "" {
			return p.Detail
		}
		if p.Title != "" {
			return p.Title
		}
	}
	msg := strings.TrimSpace(resp.String())
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

func (c *restClient) GetPipeline(ctx context.Context, pipelineId string) (*Pipeline, error) {
	var out Pipeline
	_, err := c.do(ctx, "get_pipeline", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("dag_id", pipelineId).SetResult(&out).Get("/dags/{dag_id}")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *restClient) SetPaused(ctx context.Context, pipelineId string, paused bool) error {
	_, err := c.do(ctx, "set_paused", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("dag_id", pipelineId).
			SetBody(map[string]bool{"is_paused": paused}).
			Patch("/dags/{dag_id}")
	})
	return err
}

func (c *restClient) TriggerRun(ctx context.Context, pipelineId string, conf map[string]any) (*Run, error) {
	if conf == nil {
		conf = map[string]any{}
	}
	var out Run
	_, err := c.do(ctx, "trigger_run", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("dag_id", pipelineId).
			SetBody(map[string]any{"conf": conf}).
			SetResult(&out).
			Post("/dags/{dag_id}/dagRuns")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *restClient) GetRun(ctx context.Context, pipelineId string, runId string) (*Run, error) {
	var out Run
	_, err := c.do(ctx, "get_run", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParams(map[string]string{"dag_id": pipelineId, "run_id": runId}).
			SetResult(&out).
			Get("/dags/{dag_id}/dagRuns/{run_id}")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *restClient) GetTaskLog(ctx context.Context, pipelineId string, runId string, taskId string, attempt int) (string, error) {
	resp, err := c.do(ctx, "get_task_log", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParams(map[string]string{
			"dag_id":  pipelineId,
			"run_id":  runId,
			"task_id": taskId,
			"try":     strconv.Itoa(attempt),
		}).
			SetHeader("Accept", "text/plain").
			Get("/dags/{dag_id}/dagRuns/{run_id}/taskInstances/{task_id}/logs/{try}")
	})
	if err != nil {
		return "", err
	}
	return resp.String(), nil
}

func (c *restClient) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, HEALTH_TIMEOUT)
	defer cancel()
	_, err := c.do(ctx, "health", func(r *resty.Request) (*resty.Response, error) {
		return r.Get(c.healthURL)
	})
	if err != nil {
		logger.Warn("engine health check failed", zap.Error(err))
		return false
	}
	return true
}
