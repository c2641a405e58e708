package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "argus.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("ARGUS_CONFIG", "")
	t.Setenv("ARGUS_LOG_LEVEL", "")
	t.Setenv("ARGUS_STORAGE_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "argus.db", cfg.Storage.Path)
	require.True(t, cfg.Telemetry.Enabled)
	require.Equal(t, "Verify it's you", cfg.Prompt.Title)
	require.Empty(t, cfg.Sensors)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"

[storage]
path = "/var/lib/argus/argus.db"

[prompt]
title = "Unlock"

[[sensor]]
id = 1
modality = "face"
strength = "strong"
outcome = "succeed"

[[sensor]]
id = 2
modality = "fingerprint"
strength = "weak"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "/var/lib/argus/argus.db", cfg.Storage.Path)
	require.Equal(t, "Unlock", cfg.Prompt.Title)
	require.Len(t, cfg.Sensors, 2)
	require.Equal(t, int32(2), cfg.Sensors[1].ID)
	require.Equal(t, "fingerprint", cfg.Sensors[1].Modality)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
`)
	t.Setenv("ARGUS_LOG_LEVEL", "warn")
	t.Setenv("ARGUS_STORAGE_PATH", "/tmp/env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, "/tmp/env.db", cfg.Storage.Path)
}

func TestEnvConfigPathUsedWhenFlagEmpty(t *testing.T) {
	path := writeConfig(t, `
[storage]
path = "/tmp/from-env-config.db"
`)
	t.Setenv("ARGUS_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-env-config.db", cfg.Storage.Path)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidateRejectsBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"
	require.ErrorIs(t, Validate(cfg), ErrInvalidConfig)
}

func TestValidateRejectsEmptyStoragePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Path = ""
	require.ErrorIs(t, Validate(cfg), ErrInvalidConfig)
}

func TestValidateRejectsDuplicateSensorIDs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensors = []SensorConfig{
		{ID: 1, Modality: "face"},
		{ID: 1, Modality: "fingerprint"},
	}
	require.ErrorIs(t, Validate(cfg), ErrInvalidConfig)
}

func TestValidateRejectsUnknownModality(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensors = []SensorConfig{{ID: 1, Modality: "gait"}}
	require.ErrorIs(t, Validate(cfg), ErrInvalidConfig)
}

func TestValidateRejectsUnknownStrength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensors = []SensorConfig{{ID: 1, Modality: "face", Strength: "maximal"}}
	require.ErrorIs(t, Validate(cfg), ErrInvalidConfig)
}
