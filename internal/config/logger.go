package config

import (
	"os"

	"go.uber.org/zap"
)

// NewLogger builds the process-wide logger. LOG_LEVEL and LOG_FORMAT
// (json or console) come from the environment; defaults suit development.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if os.Getenv("LOG_FORMAT") == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsed, err := zap.ParseAtomicLevel(lvl)
		if err != nil {
			return nil, err
		}
		cfg.Level = parsed
	}
	return cfg.Build()
}
