package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"gigasrt/internal/domain"
)

// ASR holds the model and segmentation options passed to GigaAM.
type ASR struct {
	Model             string  `toml:"model"`
	Device            string  `toml:"device"`
	HFToken           string  `toml:"hf_token"`
	Python            string  `toml:"python"`
	MaxDuration       float64 `toml:"max_duration"`
	MinDuration       float64 `toml:"min_duration"`
	NewChunkThreshold float64 `toml:"new_chunk_threshold"`
}

// Media holds the external transcoder location.
type Media struct {
	FFmpeg string `toml:"ffmpeg"`
}

// Run holds batch behaviour.
type Run struct {
	ErrorPolicy string `toml:"error_policy"`
	Recursive   bool   `toml:"recursive"`
}

// Logging controls log output.
type Logging struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
}

// file is the on-disk TOML layout.
type file struct {
	ASR     ASR     `toml:"asr"`
	Media   Media   `toml:"media"`
	Run     Run     `toml:"run"`
	Logging Logging `toml:"logging"`
}

// Config is the resolved configuration: run settings plus logging.
type Config struct {
	Settings domain.Settings
	Logging  Logging
}

// Load reads the TOML file at path, or the first default location that exists, over
// the built-in defaults. A missing file is not an error. It returns the resolved path
// and whether the file existed.
func Load(path string) (Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return Config{}, "", false, err
	}
	if !exists {
		return cfg, resolved, false, nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return Config{}, "", false, fmt.Errorf("read config: %w", err)
	}
	cfg, err = decode(data, cfg)
	if err != nil {
		return Config{}, "", false, err
	}
	if err := Validate(cfg.Settings); err != nil {
		return Config{}, "", false, fmt.Errorf("config %s: %w", resolved, err)
	}
	return cfg, resolved, true, nil
}

// decode overlays TOML data on base.
func decode(data []byte, base Config) (Config, error) {
	raw := encodeFile(base)
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return normalize(raw), nil
}

func encodeFile(cfg Config) file {
	s := cfg.Settings
	return file{
		ASR: ASR{
			Model:             string(s.Model),
			Device:            s.Device,
			HFToken:           s.HFToken,
			Python:            s.PythonPath,
			MaxDuration:       s.MaxDuration,
			MinDuration:       s.MinDuration,
			NewChunkThreshold: s.NewChunkThreshold,
		},
		Media:   Media{FFmpeg: s.FFmpegPath},
		Run:     Run{ErrorPolicy: string(s.ErrorPolicy), Recursive: s.Recursive},
		Logging: cfg.Logging,
	}
}

func normalize(raw file) Config {
	defaults := DefaultSettings()
	s := domain.Settings{
		Model:             domain.ModelVariant(strings.ToLower(strings.TrimSpace(raw.ASR.Model))),
		Device:            strings.TrimSpace(raw.ASR.Device),
		HFToken:           strings.TrimSpace(raw.ASR.HFToken),
		PythonPath:        strings.TrimSpace(raw.ASR.Python),
		MaxDuration:       raw.ASR.MaxDuration,
		MinDuration:       raw.ASR.MinDuration,
		NewChunkThreshold: raw.ASR.NewChunkThreshold,
		FFmpegPath:        strings.TrimSpace(raw.Media.FFmpeg),
		ErrorPolicy:       domain.ErrorPolicy(strings.ToLower(strings.TrimSpace(raw.Run.ErrorPolicy))),
		Recursive:         raw.Run.Recursive,
	}
	if s.Model == "" {
		s.Model = defaults.Model
	}
	if s.PythonPath == "" {
		s.PythonPath = defaults.PythonPath
	}
	if s.FFmpegPath == "" {
		s.FFmpegPath = defaults.FFmpegPath
	}
	if s.ErrorPolicy == "" {
		s.ErrorPolicy = defaults.ErrorPolicy
	}

	logging := raw.Logging
	logging.Level = strings.ToLower(strings.TrimSpace(logging.Level))
	if logging.Level == "" {
		logging.Level = "info"
	}
	return Config{Settings: s, Logging: logging}
}

// NormalizeSettings trims user input and fills empty fields with defaults.
func NormalizeSettings(s domain.Settings) domain.Settings {
	cfg := normalize(encodeFile(Config{Settings: s, Logging: Logging{Enabled: true}}))
	return cfg.Settings
}

// Validate checks that settings can be handed to the ASR library.
func Validate(s domain.Settings) error {
	var errs []error
	if !s.Model.Valid() {
		errs = append(errs, fmt.Errorf("model must be %q or %q, got %q", domain.ModelCTC, domain.ModelRNNT, s.Model))
	}
	if s.MaxDuration <= 0 {
		errs = append(errs, fmt.Errorf("max_duration must be positive, got %v", s.MaxDuration))
	}
	if s.MinDuration <= 0 {
		errs = append(errs, fmt.Errorf("min_duration must be positive, got %v", s.MinDuration))
	}
	if s.MinDuration > s.MaxDuration {
		errs = append(errs, fmt.Errorf("min_duration (%v) exceeds max_duration (%v)", s.MinDuration, s.MaxDuration))
	}
	if s.NewChunkThreshold < 0 {
		errs = append(errs, fmt.Errorf("new_chunk_threshold must not be negative, got %v", s.NewChunkThreshold))
	}
	if !s.ErrorPolicy.Valid() {
		errs = append(errs, fmt.Errorf("error_policy must be %q or %q, got %q", domain.ErrorPolicyIgnore, domain.ErrorPolicyRaise, s.ErrorPolicy))
	}
	return errors.Join(errs...)
}

func resolvePath(path string) (string, bool, error) {
	if strings.TrimSpace(path) != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file not found: %s", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath := DefaultConfigPath()
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	projectPath, err := filepath.Abs("gigasrt.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
