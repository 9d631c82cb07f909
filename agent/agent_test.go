package agent

import (
	"testing"

	"github.com/mohitkumar/dagforge/config"
	"github.com/mohitkumar/dagforge/container"
	"github.com/mohitkumar/dagforge/engine/enginetest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentLifecycle(t *testing.T) {
	conf := config.Config{
		HttpPort:        0,
		StorageType:     config.STORAGE_TYPE_INMEM,
		EngineConfig:    config.EngineConfig{URL: "http://localhost:8080/api/v1"},
		ArtifactConfig:  config.ArtifactConfig{Dir: "/dags"},
		UnpauseAttempts: 1,
	}
	d := container.NewDiContainer(afero.NewMemMapFs()).WithEngineClient(enginetest.NewFake())
	a, err := NewWithContainer(conf, d)
	require.NoError(t, err)

	require.NoError(t, a.Start())
	require.NoError(t, a.Shutdown())
	require.NoError(t, a.Shutdown())

	select {
	case <-a.Done():
	default:
		t.Fatal("agent not marked as shut down")
	}
	assert.True(t, a.shutdown)
}
