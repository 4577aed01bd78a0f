package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	ExportDir string `toml:"export_dir"`
	LogDir    string `toml:"log_dir"`
}

// Import contains configuration for archive ingestion.
type Import struct {
	IngestNewData bool     `toml:"ingest_new_data"`
	Sources       []string `toml:"sources"`
}

// Enrichment contains configuration shared by the enrichment pipeline.
type Enrichment struct {
	GeoEnabled       bool `toml:"geo_enabled"`
	MediaEnabled     bool `toml:"media_enabled"`
	Workers          int  `toml:"workers"`
	MaxAttempts      int  `toml:"max_attempts"`
	RetryBaseDelayMS int  `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS  int  `toml:"retry_max_delay_ms"`
}

// RetryBaseDelay returns the configured retry base delay as a duration.
func (e Enrichment) RetryBaseDelay() time.Duration {
	return time.Duration(e.RetryBaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the configured retry delay cap as a duration.
func (e Enrichment) RetryMaxDelay() time.Duration {
	return time.Duration(e.RetryMaxDelayMS) * time.Millisecond
}

// Geocoder contains configuration for the reverse-geocoding collaborator.
type Geocoder struct {
	BaseURL        string `toml:"base_url"`
	Email          string `toml:"email"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// CachePrecision is the number of decimal places coordinates are rounded
	// to when forming geo cache buckets. 4 is roughly 11 meters.
	CachePrecision int `toml:"cache_precision"`
}

// Vision contains configuration for the optional image-understanding
// collaborator. The media enricher degrades to metadata-only when disabled
// or when no API key is configured.
type Vision struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Chronicle.
//
// Configuration sections by subsystem:
//   - Paths: data, export, and log directories
//   - Import: new-data ingestion toggle and enabled source types
//   - Enrichment: per-kind toggles, worker pool size, retry policy
//   - Geocoder: reverse geocoding endpoint and cache bucket precision
//   - Vision: optional image captioning service
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Import     Import     `toml:"import"`
	Enrichment Enrichment `toml:"enrichment"`
	Geocoder   Geocoder   `toml:"geocoder"`
	Vision     Vision     `toml:"vision"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/chronicle/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was actually found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("chronicle.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for a run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ExportDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
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
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SourceEnabled reports whether a source type is in the configured set.
func (c *Config) SourceEnabled(source string) bool {
	for _, s := range c.Import.Sources {
		if strings.EqualFold(s, source) {
			return true
		}
	}
	return false
}
