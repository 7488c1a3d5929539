package log_test

import (
	"context"
	"testing"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/log"
	"github.com/on-the-ground/fiber_ive_go/effects/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func runWith(t *testing.T, eff effects.Effect[struct{}], env any) {
	t.Helper()
	exit := effects.RunSync(context.Background(), eff, env, scheduler.New(scheduler.DefaultConfig(), nil))
	require.NoError(t, exit.Err)
}

func TestEff_UsesEnvironmentLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	runWith(t, log.Eff(log.LogWarn, "disk almost full", map[string]any{"percent": 91}), log.NewEnv(zap.New(core)))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "disk almost full", entries[0].Message)
	assert.EqualValues(t, 91, entries[0].ContextMap()["percent"])
}

func TestEff_AcceptsBareZapLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	runWith(t, log.Eff(log.LogDebug, "hello", nil), zap.New(core))
	assert.Equal(t, 1, logs.FilterMessage("hello").Len())
}

func TestEff_WithoutLoggerIsNoop(t *testing.T) {
	runWith(t, log.Eff(log.LogError, "nobody listens", nil), struct{}{})
}

func TestWrite_UnknownLevelLogsInfo(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log.Write(zap.New(core), log.LogPayload{Level: "verbose", Message: "m"})
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.InfoLevel, logs.All()[0].Level)
}

func TestEff_LogsOnlyWhenRun(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	eff := log.Eff(log.LogInfo, "lazy", nil)
	assert.Equal(t, 0, logs.Len())

	runWith(t, effects.AndThen(eff, eff), log.NewEnv(zap.New(core)))
	assert.Equal(t, 2, logs.Len())
}

func TestNewLoggers(t *testing.T) {
	assert.NotNil(t, log.NewTestLogger())
	assert.NotNil(t, log.NewProductionLogger())
	assert.NotNil(t, log.FromEnv(nil))
}
