// Package config loads jitscope.toml, the optional per-project defaults for
// the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// FileName is the name searched for from the working directory upwards.
const FileName = "jitscope.toml"

// Config mirrors jitscope.toml.
type Config struct {
	Report    ReportConfig    `toml:"report"`
	Correlate CorrelateConfig `toml:"correlate"`
	Model     ModelConfig     `toml:"model"`
	Log       LogConfig       `toml:"log"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

type ReportConfig struct {
	Mode    string `toml:"mode"`
	Format  string `toml:"format"`
	Limit   int    `toml:"limit"`
	Package string `toml:"package"`
}

type CorrelateConfig struct {
	Jobs int `toml:"jobs"`
}

type ModelConfig struct {
	// Manifest is resolved relative to the config file.
	Manifest string `toml:"manifest"`
}

type LogConfig struct {
	Level   string `toml:"level"`
	Charset string `toml:"charset"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Report: ReportConfig{Mode: "inlining", Format: "pretty"},
		Log:    LogConfig{Level: "warning"},
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the nearest jitscope.toml above startDir, or the defaults
// when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load reads the config at path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	cfg.Path = path
	if m := strings.TrimSpace(cfg.Model.Manifest); m != "" && !filepath.IsAbs(m) {
		cfg.Model.Manifest = filepath.Join(filepath.Dir(path), filepath.FromSlash(m))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Report.Limit < 0 {
		return fmt.Errorf("[report].limit must not be negative, got %d", c.Report.Limit)
	}
	if c.Correlate.Jobs < 0 {
		return fmt.Errorf("[correlate].jobs must not be negative, got %d", c.Correlate.Jobs)
	}
	if c.Log.Level != "" {
		if _, err := log.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("[log].level: %w", err)
		}
	}
	return nil
}
