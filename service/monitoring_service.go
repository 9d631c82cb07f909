package service

import (
	"context"
	"math"
	"time"

	"github.com/mohitkumar/dagforge/engine"
	"github.com/mohitkumar/dagforge/logger"
	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"go.uber.org/zap"
)

const HEALTH_HEALTHY string = "healthy"
const HEALTH_DEGRADED string = "degraded"
const HEALTH_UNHEALTHY string = "unhealthy"

type WorkflowStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

type JobRunStats struct {
	Total       int                     `json:"total"`
	Recent24h   int                     `json:"recent_24h"`
	ByStatus    map[model.RunStatus]int `json:"by_status"`
	SuccessRate float64                 `json:"success_rate"`
}

type Stats struct {
	Workflows WorkflowStats `json:"workflows"`
	JobRuns   JobRunStats   `json:"job_runs"`
}

type Health struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

type MonitoringService struct {
	storage persistence.Storage
	engine  engine.Client
	now     func() time.Time
}

func NewMonitoringService(storage persistence.Storage, client engine.Client) *MonitoringService {
	return &MonitoringService{storage: storage, engine: client, now: utcNow}
}

func (s *MonitoringService) Stats(ctx context.Context) (*Stats, error) {
	total, active, err := s.storage.CountWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, recent, err := s.storage.CountJobRuns(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	runs := 0
	for _, n := range byStatus {
		runs += n
	}
	return &Stats{
		Workflows: WorkflowStats{Total: total, Active: active, Inactive: total - active},
		JobRuns: JobRunStats{
			Total:       runs,
			Recent24h:   recent,
			ByStatus:    byStatus,
			SuccessRate: successRate(byStatus[model.RUN_STATUS_SUCCESS], byStatus[model.RUN_STATUS_FAILED]),
		},
	}, nil
}

// successRate is the share of finished runs that succeeded, in percent with
// two decimals.
func successRate(success int, failed int) float64 {
	finished := success + failed
	if finished == 0 {
		return 0
	}
	return math.Round(float64(success)/float64(finished)*10000) / 100
}

func (s *MonitoringService) Health(ctx context.Context) *Health {
	h := &Health{Status: HEALTH_HEALTHY, Components: map[string]string{
		"storage": HEALTH_HEALTHY,
		"engine":  HEALTH_HEALTHY,
	}}
	if err := s.storage.Ping(ctx); err != nil {
		logger.Warn("storage health check failed", zap.Error(err))
		h.Components["storage"] = HEALTH_UNHEALTHY
		h.Status = HEALTH_DEGRADED
	}
	if !s.engine.Health(ctx) {
		h.Components["engine"] = HEALTH_UNHEALTHY
		h.Status = HEALTH_DEGRADED
	}
	return h
}
