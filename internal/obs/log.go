package obs

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu  sync.RWMutex
	logger = zap.NewNop()
)

// InitLogger builds the process logger and installs it as the shared
// instance returned by L. env selects the encoder: "dev" gets the
// console encoder, anything else emits production JSON.
func InitLogger(level, env string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("obs: parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("obs: build logger: %w", err)
	}

	logMu.Lock()
	logger = log
	logMu.Unlock()
	return log, nil
}

// L returns the shared logger. Before InitLogger it is a nop, so
// packages may log unconditionally.
func L() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}
