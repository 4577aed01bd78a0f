// Package config loads, normalizes, and validates Chronicle configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CHRONICLE_VISION_API_KEY. The Config type centralizes every knob the CLI
// needs: data/export directories, ingestion and enrichment toggles, and
// external service settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
