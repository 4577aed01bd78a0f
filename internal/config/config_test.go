package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chronicle/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if !cfg.Import.IngestNewData {
		t.Fatal("expected ingest_new_data default true")
	}
	if cfg.Enrichment.Workers != 4 {
		t.Fatalf("expected default workers 4, got %d", cfg.Enrichment.Workers)
	}
	if !cfg.SourceEnabled("instagram") || !cfg.SourceEnabled("swarm") {
		t.Fatalf("expected default sources enabled, got %v", cfg.Import.Sources)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"

[import]
ingest_new_data = false
sources = ["Twitter", "twitter", " swarm "]

[geocoder]
base_url = "https://geo.example.com/"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s to be found, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Import.IngestNewData {
		t.Fatal("expected ingest_new_data false")
	}
	if len(cfg.Import.Sources) != 2 {
		t.Fatalf("expected deduplicated sources, got %v", cfg.Import.Sources)
	}
	if cfg.Geocoder.BaseURL != "https://geo.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Geocoder.BaseURL)
	}
}

func TestValidateRejectsUnknownSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[import]
sources = ["myspace"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "unknown source type") {
		t.Fatalf("expected unknown source error, got %v", err)
	}
}

func TestValidateVisionRequiresKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[vision]
enabled = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CHRONICLE_VISION_API_KEY", "")
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "vision.api_key") {
		t.Fatalf("expected vision key error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[geocoder]") {
		t.Fatal("sample config missing geocoder section")
	}
}
