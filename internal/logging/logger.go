// Package logging provides a zap-backed structured logger with
// context-carried correlation identifiers for the conferences control plane.
package logging

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

type contextKey string

const (
	CorrelationTokenKey contextKey = "correlation_token"
	AudienceKey         contextKey = "audience"
	RoomIDKey           contextKey = "room_id"
	AgentIDKey          contextKey = "agent_id"
	MethodKey           contextKey = "method"
)

// Initialize sets up the global logger based on the environment.
func Initialize(development bool) error {
	var err error
	once.Do(func() {
		var config zap.Config
		if development {
			config = zap.NewDevelopmentConfig()
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			config = zap.NewProductionConfig()
			config.EncoderConfig.TimeKey = "timestamp"
			config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}

		logger, err = config.Build(zap.AddCallerSkip(1))
	})
	return err
}

// GetLogger returns the global logger instance.
func GetLogger() *zap.Logger {
	if logger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return logger
}

// WithRequest returns a context carrying the routing identifiers that every
// log line for a dispatched envelope should show.
func WithRequest(ctx context.Context, audience, method string) context.Context {
	ctx = context.WithValue(ctx, AudienceKey, audience)
	return context.WithValue(ctx, MethodKey, method)
}

// WithCorrelationToken attaches the outbound correlation token to the context.
func WithCorrelationToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, CorrelationTokenKey, token)
}

// WithRoomID attaches a room id to the context.
func WithRoomID(ctx context.Context, roomID string) context.Context {
	return context.WithValue(ctx, RoomIDKey, roomID)
}

// WithAgentID attaches an agent id to the context.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, AgentIDKey, agentID)
}

// Info logs a message at InfoLevel.
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Info(msg, appendContextFields(ctx, fields)...)
}

// Warn logs a message at WarnLevel.
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, appendContextFields(ctx, fields)...)
}

// Error logs a message at ErrorLevel.
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Error(msg, appendContextFields(ctx, fields)...)
}

// Fatal logs a message at FatalLevel.
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, appendContextFields(ctx, fields)...)
}

func appendContextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}

	if v, ok := ctx.Value(CorrelationTokenKey).(string); ok {
		fields = append(fields, zap.String("correlation_token", v))
	}
	if v, ok := ctx.Value(AudienceKey).(string); ok {
		fields = append(fields, zap.String("audience", v))
	}
	if v, ok := ctx.Value(RoomIDKey).(string); ok {
		fields = append(fields, zap.String("room_id", v))
	}
	if v, ok := ctx.Value(AgentIDKey).(string); ok {
		fields = append(fields, zap.String("agent_id", v))
	}
	if v, ok := ctx.Value(MethodKey).(string); ok {
		fields = append(fields, zap.String("method", v))
	}

	fields = append(fields, zap.String("service", "conferences"))
	return fields
}
