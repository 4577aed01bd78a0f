package testsupport

import (
	"path/filepath"
	"testing"

	"chronicle/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ExportDir = filepath.Join(base, "exports")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkers sets the enrichment worker pool size on the test config.
func WithWorkers(workers int) ConfigOption {
	return func(c *config.Config) {
		c.Enrichment.Workers = workers
	}
}

// WithIngestDisabled turns off new-data ingestion on the test config.
func WithIngestDisabled() ConfigOption {
	return func(c *config.Config) {
		c.Import.IngestNewData = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
