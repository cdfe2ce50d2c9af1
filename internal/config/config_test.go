package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiexchange/predictx/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Listen.Address)
	assert.Equal(t, 7890, cfg.Listen.Port)
	assert.Equal(t, 10, cfg.Listen.MaxConnWorkers)
	assert.Equal(t, "predictx.snapshot.json", cfg.Snapshot.Path)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "listen:\n  port: 9999\nsnapshot:\n  path: \"custom.json\"\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Listen.Port)
	assert.Equal(t, "custom.json", cfg.Snapshot.Path)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "listen:\n  port: 9999\n")
	t.Setenv("PREDICTX_LISTEN_PORT", "8080")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Listen.Port)
}

func TestLoad_MissingFile_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_RejectsNonPositivePort(t *testing.T) {
	cfg := &config.Config{
		Listen:   config.ListenConfig{Port: 0, MaxConnWorkers: 1},
		Snapshot: config.SnapshotConfig{Path: "x.json"},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsMissingSnapshotPath(t *testing.T) {
	cfg := &config.Config{
		Listen:   config.ListenConfig{Port: 1, MaxConnWorkers: 1},
		Snapshot: config.SnapshotConfig{Path: ""},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := &config.Config{
		Listen:   config.ListenConfig{Port: 7890, MaxConnWorkers: 10},
		Snapshot: config.SnapshotConfig{Path: "predictx.snapshot.json"},
	}
	assert.NoError(t, cfg.Validate())
}
