package agent

import (
	"context"
	"sync"

	"github.com/mohitkumar/dagforge/config"
	"github.com/mohitkumar/dagforge/container"
	"github.com/mohitkumar/dagforge/logger"
	"github.com/mohitkumar/dagforge/rest"
	"github.com/mohitkumar/dagforge/service"
	"go.uber.org/zap"
)

type Agent struct {
	Config            config.Config
	diContainer       *container.DIContiner
	workflowService   *service.WorkflowService
	taskService       *service.TaskService
	jobService        *service.JobService
	monitoringService *service.MonitoringService
	httpServer        *rest.Server
	shutdown          bool
	shutdowns         chan struct{}
	shutdownLock      sync.Mutex
}

func New(config config.Config) (*Agent, error) {
	return NewWithContainer(config, container.NewDiContainer(nil))
}

// NewWithContainer builds an agent on a container whose clients may already
// be set.
func NewWithContainer(config config.Config, diContainer *container.DIContiner) (*Agent, error) {
	a := &Agent{
		Config:      config,
		diContainer: diContainer,
		shutdowns:   make(chan struct{}),
	}
	setup := []func() error{
		a.setupContainer,
		a.setupServices,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupContainer() error {
	return a.diContainer.Init(context.Background(), a.Config)
}

func (a *Agent) setupServices() error {
	d := a.diContainer
	a.workflowService = service.NewWorkflowService(d.GetStorage(), d.GetCompiler(), d.GetBridge(), d.GetPauseStateCache())
	a.taskService = service.NewTaskService(d.GetStorage())
	a.jobService = service.NewJobService(d.GetStorage(), d.GetEngineClient(), d.GetBridge(), d.GetSynchronizer())
	a.monitoringService = service.NewMonitoringService(d.GetStorage(), d.GetEngineClient())
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, rest.Services{
		Workflows:  a.workflowService,
		Tasks:      a.taskService,
		Jobs:       a.jobService,
		Monitoring: a.monitoringService,
	})
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	if err := a.diContainer.GetStorage().Ping(context.Background()); err != nil {
		logger.Warn("storage is not reachable yet", zap.Error(err))
	}
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
			_ = a.Shutdown()
		}
	}()
	return nil
}

// Done is closed once the agent has shut down.
func (a *Agent) Done() <-chan struct{} {
	return a.shutdowns
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		a.diContainer.GetStorage().Close,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	_ = logger.Sync()
	return nil
}
