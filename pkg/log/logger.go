// Package log provides the process-wide structured logger used across the
// fixture server. It wraps a zap SugaredLogger behind a small interface so
// packages can accept substitutes in tests.
package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the subset of logging behaviour the fixture packages rely on.
type Logger interface {
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

var (
	once       sync.Once
	logger     *zap.SugaredLogger
	syncLogger = func() error { return nil }
)

// Shared returns the lazily initialised process logger.
func Shared() Logger {
	return zapLogger()
}

// Zap exposes the underlying SugaredLogger for callers that need the full
// zap surface.
func Zap() *zap.SugaredLogger {
	return zapLogger()
}

func zapLogger() *zap.SugaredLogger {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.MessageKey = "msg"
		cfg.EncoderConfig.LevelKey = "level"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		base, err := cfg.Build()
		if err != nil {
			panic(err)
		}
		logger = base.Sugar()
		syncLogger = base.Sync
	})

	return logger
}

// Sync flushes any buffered log entries. Syncing stderr fails with
// EBADF or EINVAL when it is a terminal or pipe; those are not flush
// failures and are swallowed.
func Sync() error {
	if err := syncLogger(); err != nil {
		msg := err.Error()
		if strings.Contains(msg, "bad file descriptor") ||
			strings.Contains(msg, "invalid argument") ||
			strings.Contains(msg, "inappropriate ioctl") {
			return nil
		}
		return err
	}
	return nil
}
