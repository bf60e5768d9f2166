package config

import (
	"os"
	"path/filepath"
	"strings"

	"gigasrt/internal/domain"
)

// Segmentation defaults match the GigaAM long-form recommendations.
const (
	DefaultMaxDuration       = 22.0
	DefaultMinDuration       = 15.0
	DefaultNewChunkThreshold = 0.2
)

// DefaultSettings returns the baseline run configuration for a first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		Model:             domain.ModelCTC,
		MaxDuration:       DefaultMaxDuration,
		MinDuration:       DefaultMinDuration,
		NewChunkThreshold: DefaultNewChunkThreshold,
		ErrorPolicy:       domain.ErrorPolicyIgnore,
		PythonPath:        defaultPython(),
		FFmpegPath:        "ffmpeg",
	}
}

// Default returns a full configuration with default settings and logging on.
func Default() Config {
	return Config{
		Settings: DefaultSettings(),
		Logging: Logging{
			Enabled: true,
			Level:   "info",
		},
	}
}

// DefaultConfigPath returns ~/.config/gigasrt/config.toml (or the XDG equivalent).
func DefaultConfigPath() string {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "gigasrt", "config.toml")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".config", "gigasrt", "config.toml")
}

func defaultPython() string {
	if v := strings.TrimSpace(os.Getenv("GIGASRT_PYTHON")); v != "" {
		return v
	}
	return "python3"
}
