package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"gigasrt/internal/domain"
)

// HFTokenEnv is the variable GigaAM and pyannote read the Hugging Face token from.
const HFTokenEnv = "HF_TOKEN"

// LoadEnvFile loads a dotenv file without overriding variables already set.
// A missing file is ignored.
func LoadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables on settings read from the config file.
func ApplyEnv(s domain.Settings) domain.Settings {
	if token := strings.TrimSpace(os.Getenv(HFTokenEnv)); token != "" {
		s.HFToken = token
	}
	return s
}
