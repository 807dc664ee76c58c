package config

import (
	"os"

	"go.uber.org/zap"
)

type UploadConfig struct {
	Dir      string
	MaxFiles int
}

func NewUploadConfig(log *zap.Logger) *UploadConfig {
	dir := os.Getenv("UPLOAD_DIR")
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatal("Failed to create upload directory", zap.String("dir", dir), zap.Error(err))
	}
	return &UploadConfig{Dir: dir, MaxFiles: 5}
}
