// Package config loads asmctl's device profile: transport timeouts, the
// default applet-catalog path, and the default output directory for
// fetched files. Device state itself is never persisted here (spec.md
// §6) — this is host-side tool configuration only.
//
// Values merge in order, each overriding the last: built-in defaults, an
// optional YAML profile file, ASMCTL_* environment variables, then
// whatever the CLI's own flags set afterward. Grounded on the nfctools
// sdmconfig/internal/config package's yaml.v3-decode-then-validate shape,
// with the defaults-then-env layering of the teacher's
// internal/config/config.go generalized from a single .env file to a full
// YAML profile.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is asmctl's merged device profile.
type Config struct {
	Timeouts    Timeouts `yaml:"timeouts"`
	CatalogPath string   `yaml:"catalog_path"`
	OutputDir   string   `yaml:"output_dir"`
}

// Timeouts holds transport timeout settings (§4.3), in milliseconds. Zero
// means "use the built-in default". The values are loaded and merged here
// only; the transport layer does not read them and always uses its own
// fixed defaults.
type Timeouts struct {
	DefaultMS          int `yaml:"default_ms"`
	ExtendedDataBaseMS int `yaml:"extended_data_base_ms"`
}

// DefaultConfigPath is where asmctl looks for a YAML profile when the
// caller didn't pass --config.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "asmctl", "config.yaml")
}

// Defaults returns the built-in configuration, used as the base of every
// merge.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	outDir := "."
	if home != "" {
		outDir = filepath.Join(home, "asmctl-out")
	}
	return Config{
		Timeouts: Timeouts{
			DefaultMS:          1000,
			ExtendedDataBaseMS: 600,
		},
		CatalogPath: "",
		OutputDir:   outDir,
	}
}

// Load builds a Config by merging Defaults(), the YAML profile at path (if
// it exists; a missing file at path is not an error, since the default
// path is frequently absent), and ASMCTL_* environment variables, in that
// order. An empty path falls back to DefaultConfigPath().
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = DefaultConfigPath()
	}
	if path != "" {
		if err := mergeYAMLFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	mergeEnv(&cfg)
	return cfg, nil
}

func mergeYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	var fromFile Config
	if err := dec.Decode(&fromFile); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if fromFile.Timeouts.DefaultMS != 0 {
		cfg.Timeouts.DefaultMS = fromFile.Timeouts.DefaultMS
	}
	if fromFile.Timeouts.ExtendedDataBaseMS != 0 {
		cfg.Timeouts.ExtendedDataBaseMS = fromFile.Timeouts.ExtendedDataBaseMS
	}
	if fromFile.CatalogPath != "" {
		cfg.CatalogPath = fromFile.CatalogPath
	}
	if fromFile.OutputDir != "" {
		cfg.OutputDir = fromFile.OutputDir
	}
	return nil
}

func mergeEnv(cfg *Config) {
	if v := os.Getenv("ASMCTL_TIMEOUT_DEFAULT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timeouts.DefaultMS = n
		}
	}
	if v := os.Getenv("ASMCTL_TIMEOUT_EXTENDED_DATA_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timeouts.ExtendedDataBaseMS = n
		}
	}
	if v := os.Getenv("ASMCTL_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}
	if v := os.Getenv("ASMCTL_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
}
