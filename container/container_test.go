package container

import (
	"context"
	"testing"
	"time"

	"github.com/mohitkumar/dagforge/config"
	"github.com/mohitkumar/dagforge/engine/enginetest"
	"github.com/mohitkumar/dagforge/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		StorageType:      config.STORAGE_TYPE_INMEM,
		EngineConfig:     config.EngineConfig{URL: "http://localhost:8080/api/v1"},
		ArtifactConfig:   config.ArtifactConfig{Dir: "/dags", Format: "yaml"},
		UnpauseAttempts:  1,
		PipelineCacheTTL: time.Minute,
	}
}

func TestGettersPanicBeforeInit(t *testing.T) {
	d := NewDiContainer(afero.NewMemMapFs())
	assert.Panics(t, func() { d.GetStorage() })
	assert.Panics(t, func() { d.GetCompiler() })
	assert.Panics(t, func() { d.GetBridge() })
}

func TestInitWiresComponents(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := enginetest.NewFake()
	d := NewDiContainer(fs).WithEngineClient(fake)
	require.NoError(t, d.Init(context.Background(), testConfig()))

	assert.NoError(t, d.GetStorage().Ping(context.Background()))
	assert.Same(t, fake, d.GetEngineClient())
	assert.NotNil(t, d.GetSynchronizer())
	assert.NotNil(t, d.GetPauseStateCache())

	wf := &model.Workflow{Id: "wf-1", Name: "etl", IsActive: true}
	task, err := model.NewTask("t-1", model.TaskSpec{WorkflowId: "wf-1", Name: "a", Source: "print(1)"}, time.Now())
	require.NoError(t, err)
	path, err := d.GetCompiler().Deploy(wf, []*model.Task{task})
	require.NoError(t, err)
	assert.Equal(t, "/dags/workflow_wf-1.yaml", path)

	fake.AddPipeline("workflow_wf-1", true)
	assert.True(t, d.GetBridge().Unpause(context.Background(), "workflow_wf-1"))
}

func TestInitRejectsUnknownStorage(t *testing.T) {
	conf := testConfig()
	conf.StorageType = "dynamo"
	err := NewDiContainer(afero.NewMemMapFs()).Init(context.Background(), conf)
	assert.ErrorContains(t, err, "unknown storage type")
}
