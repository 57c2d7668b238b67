package obs

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerOnce sync.Once
	logger     *zap.Logger
)

// Logger returns the shared structured logger used across the service.
// The first call builds it with defaults unless Init ran earlier.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		logger = buildLogger("", false)
	})
	return logger
}

// Init builds the process logger with explicit settings. Must be called before
// the first Logger() call to take effect; later calls are ignored.
func Init(level string, development bool) {
	loggerOnce.Do(func() {
		logger = buildLogger(level, development)
	})
}

func buildLogger(level string, development bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	if lvl, err := zapcore.ParseLevel(strings.TrimSpace(strings.ToLower(level))); err == nil && level != "" {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	l, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
