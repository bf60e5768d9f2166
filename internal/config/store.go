package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"gigasrt/internal/domain"
)

// Store defines persistence operations for GUI-edited settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// TOMLStore persists settings in the same TOML file the CLI reads.
type TOMLStore struct {
	path string
}

// NewTOMLStore creates a TOML-backed settings store.
func NewTOMLStore(path string) *TOMLStore {
	return &TOMLStore{path: path}
}

// Path returns the backing file location.
func (s *TOMLStore) Path() string {
	return s.path
}

// Load reads settings from disk or returns defaults when missing.
func (s *TOMLStore) Load() (domain.Settings, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return domain.Settings{}, err
	}
	return cfg.Settings, nil
}

// Save writes settings and keeps the existing logging section.
func (s *TOMLStore) Save(settings domain.Settings) error {
	settings = NormalizeSettings(settings)
	if err := Validate(settings); err != nil {
		return err
	}

	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	cfg.Settings = settings

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(encodeFile(cfg))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *TOMLStore) loadConfig() (Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, err
	}
	return decode(data, Default())
}
