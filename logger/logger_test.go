package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit(t *testing.T) {
	require.NoError(t, Init("debug", "console"))
	Info("logger initialised", zap.String("format", "console"))

	require.NoError(t, Init("info", "json"))
	Warn("logger initialised", zap.String("format", "json"))

	require.Error(t, Init("loud", "json"))
}
