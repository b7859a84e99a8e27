// Package logger holds the process-wide zap logger.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global *zap.SugaredLogger
	once   sync.Once
)

// Init builds the global logger. "production" gets a JSON encoder with
// ISO8601 timestamps; anything else gets the console encoder. Safe to call
// more than once; only the first call wins.
func Init(env string) {
	once.Do(func() {
		var core *zap.Logger
		var err error

		if env == "production" {
			cfg := zap.NewProductionConfig()
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
			core, err = cfg.Build()
		} else {
			core, err = zap.NewDevelopment()
		}
		if err != nil {
			core = zap.NewNop()
		}

		global = core.Sugar()
	})
}

// Get returns the global sugared logger, initializing a development logger
// on first use if Init was never called. The once in Init makes the read
// safe from concurrent goroutines.
func Get() *zap.SugaredLogger {
	Init("development")
	return global
}

// Sync flushes buffered entries. Call on shutdown.
func Sync() {
	_ = Get().Sync()
}
