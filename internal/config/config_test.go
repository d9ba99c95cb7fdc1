package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFallsBackToDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Defaults().Timeouts, cfg.Timeouts)
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timeouts:
  default_ms: 2500
catalog_path: /etc/asmctl/catalog.yaml
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2500, cfg.Timeouts.DefaultMS)
	require.Equal(t, Defaults().Timeouts.ExtendedDataBaseMS, cfg.Timeouts.ExtendedDataBaseMS)
	require.Equal(t, "/etc/asmctl/catalog.yaml", cfg.CatalogPath)
}

func TestLoadRejectsUnknownYAMLFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bogus_field: 1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvironmentOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_dir: /from/yaml\n"), 0o644))

	t.Setenv("ASMCTL_OUTPUT_DIR", "/from/env")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/from/env", cfg.OutputDir)
}

func TestEnvironmentTimeoutMustParseAsInt(t *testing.T) {
	t.Setenv("ASMCTL_TIMEOUT_DEFAULT_MS", "not-a-number")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Defaults().Timeouts.DefaultMS, cfg.Timeouts.DefaultMS)
}
