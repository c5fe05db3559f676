package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels for logr's V()
const (
	DEBUG = 1
	TRACE = 2
)

// NewLogger returns a logr.Logger backed by zap. level is a zap level name (debug, info, warn, error);
// development switches to zap's human readable console encoder.
func NewLogger(level string, development bool) (logr.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return logr.Discard(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	zapLogger, err := config.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("cannot build logger: %w", err)
	}
	return zapr.NewLogger(zapLogger), nil
}

// NewTestLogger returns a development logger with every verbosity enabled
func NewTestLogger() logr.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.Level(-TRACE))
	zapLogger, err := config.Build()
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(zapLogger)
}
