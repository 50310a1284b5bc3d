package log

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var (
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	dlogger *zap.Logger
)

func init() {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if os.Getenv("LOG_FORMAT") == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	var err error
	if dlogger, err = cfg.Build(); err != nil {
		dlogger = zap.NewNop()
	}
}

// SetLevel changes the level of all the loggers
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// SetDebug is a shortcut for SetLevel(Debug) if debug is true
func SetDebug(debug bool) {
	if debug {
		SetLevel(zapcore.DebugLevel)
	}
}

// Logger returns the logger attached to the context or the default logger
func Logger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
			return l
		}
	}
	return dlogger
}

// With returns a new context whose logger carries the key/value field
func With(ctx context.Context, key string, value interface{}) context.Context {
	return WithFields(ctx, zap.Any(key, value))
}

// WithFields returns a new context whose logger carries the fields
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, ctxKey{}, Logger(ctx).With(fields...))
}

// WithLogger attaches the logger to the context
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Fatal logs the message with the default logger and exits
func Fatal(msg string, fields ...zap.Field) {
	dlogger.Fatal(msg, fields...)
}
