package config

import (
	"errors"
	"fmt"

	"chronicle/internal/sources"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateImport(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	if err := c.validateGeocoder(); err != nil {
		return err
	}
	if err := c.validateVision(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateImport() error {
	if len(c.Import.Sources) == 0 {
		return errors.New("import.sources must list at least one source type")
	}
	for _, s := range c.Import.Sources {
		if _, ok := sources.Parse(s); !ok {
			return fmt.Errorf("import.sources: unknown source type %q (known: %v)", s, sources.All())
		}
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	if c.Enrichment.Workers > 64 {
		return errors.New("enrichment.workers must be 64 or fewer")
	}
	if c.Enrichment.MaxAttempts > 10 {
		return errors.New("enrichment.max_attempts must be 10 or fewer")
	}
	if c.Enrichment.RetryMaxDelayMS < c.Enrichment.RetryBaseDelayMS {
		return errors.New("enrichment.retry_max_delay_ms must be >= retry_base_delay_ms")
	}
	return nil
}

func (c *Config) validateGeocoder() error {
	if !c.Enrichment.GeoEnabled {
		return nil
	}
	if c.Geocoder.BaseURL == "" {
		return errors.New("geocoder.base_url must be set when enrichment.geo_enabled is true")
	}
	if c.Geocoder.CachePrecision > 7 {
		return errors.New("geocoder.cache_precision must be 7 or fewer decimal places")
	}
	return nil
}

func (c *Config) validateVision() error {
	if !c.Vision.Enabled {
		return nil
	}
	if c.Vision.APIKey == "" {
		return errors.New("vision.api_key must be set when vision.enabled is true (or set CHRONICLE_VISION_API_KEY)")
	}
	if c.Vision.Model == "" {
		return errors.New("vision.model must be set when vision.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
