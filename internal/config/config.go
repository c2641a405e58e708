// Package config loads the daemon configuration: defaults, then the TOML
// file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultLogLevel     = "info"
	defaultLogMaxSizeMB = 10
	defaultLogMaxFiles  = 5
	defaultStoragePath  = "argus.db"

	envConfigPath  = "ARGUS_CONFIG"
	envLogLevel    = "ARGUS_LOG_LEVEL"
	envStoragePath = "ARGUS_STORAGE_PATH"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Logging   LoggingConfig   `toml:"logging"`
	Storage   StorageConfig   `toml:"storage"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Prompt    PromptConfig    `toml:"prompt"`
	Sensors   []SensorConfig  `toml:"sensor"`
}

type LoggingConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

type TelemetryConfig struct {
	Enabled bool `toml:"enabled"`
}

type PromptConfig struct {
	Title          string `toml:"title"`
	Subtitle       string `toml:"subtitle"`
	NegativeButton string `toml:"negative_button"`
}

// SensorConfig declares one sensor for the simulated driver set.
type SensorConfig struct {
	ID       int32  `toml:"id"`
	Modality string `toml:"modality"`
	Strength string `toml:"strength"`
	Outcome  string `toml:"outcome"`
}

func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			MaxSizeMB: defaultLogMaxSizeMB,
			MaxFiles:  defaultLogMaxFiles,
		},
		Storage: StorageConfig{
			Path: defaultStoragePath,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
		Prompt: PromptConfig{
			Title:          "Verify it's you",
			NegativeButton: "Cancel",
		},
	}
}

// Load resolves the config path (flag value, then ARGUS_CONFIG, then the
// defaults-only path), applies the file when present, then environment
// overrides, then validates.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path != "" {
		raw, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(envStoragePath); v != "" {
		cfg.Storage.Path = v
	}
}

func Validate(cfg Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, cfg.Logging.Level)
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is required", ErrInvalidConfig)
	}

	seen := map[int32]struct{}{}
	for _, sensor := range cfg.Sensors {
		if _, dup := seen[sensor.ID]; dup {
			return fmt.Errorf("%w: duplicate sensor id %d", ErrInvalidConfig, sensor.ID)
		}
		seen[sensor.ID] = struct{}{}
		switch strings.ToLower(sensor.Modality) {
		case "fingerprint", "iris", "face":
		default:
			return fmt.Errorf("%w: sensor %d: modality %q", ErrInvalidConfig, sensor.ID, sensor.Modality)
		}
		switch strings.ToLower(sensor.Strength) {
		case "", "strong", "weak", "convenience":
		default:
			return fmt.Errorf("%w: sensor %d: strength %q", ErrInvalidConfig, sensor.ID, sensor.Strength)
		}
	}
	return nil
}
