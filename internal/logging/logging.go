// Package logging builds the process logger.
package logging

import (
	"fmt"

	"github.com/blendle/zapdriver"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a zap logger for the given profile. Production uses
// zapdriver's structured JSON encoding; anything else gets the readable
// development console output.
func New(env, level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.Set(level); err != nil {
			return nil, fmt.Errorf("logging: bad level %q: %w", level, err)
		}
	}
	if env == "production" {
		return zapdriver.NewProduction(zap.IncreaseLevel(lvl))
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
