package config

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// loadDotEnv sets variables from path without overriding ones already present.
func loadDotEnv(path string) error {
	return godotenv.Load(path)
}

func loadDotEnvIfPresent(path string) {
	if path == "" {
		return
	}
	if err := loadDotEnv(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("dotenv load failed", "path", path, "error", err)
	}
}
