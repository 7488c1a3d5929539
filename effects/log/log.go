package log

import (
	"go.uber.org/zap"

	"github.com/on-the-ground/fiber_ive_go/effects"
)

// LogLevel defines the severity level for log messages.
type LogLevel string

const (
	// LogInfo is used for general informational messages.
	LogInfo LogLevel = "info"

	// LogWarn is used for potentially harmful situations.
	LogWarn LogLevel = "warn"

	// LogError is used for error events that might still allow the application to continue running.
	LogError LogLevel = "error"

	// LogDebug is used for debugging messages with detailed internal information.
	LogDebug LogLevel = "debug"
)

// LogPayload is a single structured log record.
type LogPayload struct {
	Level   LogLevel
	Message string
	Fields  map[string]any
}

// LoggerProvider is implemented by fiber environments that carry a logger.
type LoggerProvider interface {
	Logger() *zap.Logger
}

// Env is the smallest environment satisfying LoggerProvider.
type Env struct {
	logger *zap.Logger
}

func NewEnv(logger *zap.Logger) Env {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Env{logger: logger}
}

func (e Env) Logger() *zap.Logger {
	if e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

// FromEnv finds the logger in a fiber environment: a LoggerProvider or a
// *zap.Logger. Anything else yields a no-op logger.
func FromEnv(env any) *zap.Logger {
	switch e := env.(type) {
	case LoggerProvider:
		return e.Logger()
	case *zap.Logger:
		if e != nil {
			return e
		}
	}
	return zap.NewNop()
}

// Eff logs through the environment's logger when the effect runs.
func Eff(level LogLevel, msg string, fields map[string]any) effects.Effect[struct{}] {
	payload := LogPayload{Level: level, Message: msg, Fields: fields}
	return effects.Sync(func(env any) (struct{}, error) {
		Write(FromEnv(env), payload)
		return struct{}{}, nil
	})
}

// Write emits payload on logger at its level. Unknown levels log at info.
func Write(logger *zap.Logger, payload LogPayload) {
	fields := make([]zap.Field, 0, len(payload.Fields))
	for k, v := range payload.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	switch payload.Level {
	case LogInfo:
		logger.Info(payload.Message, fields...)
	case LogWarn:
		logger.Warn(payload.Message, fields...)
	case LogError:
		logger.Error(payload.Message, fields...)
	case LogDebug:
		logger.Debug(payload.Message, fields...)
	default:
		logger.Info(payload.Message, fields...)
	}
}
