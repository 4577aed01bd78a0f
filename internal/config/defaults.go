package config

const (
	defaultDataDir   = "~/.local/share/chronicle"
	defaultExportDir = "~/.local/share/chronicle/exports"
	defaultLogDir    = "~/.local/share/chronicle/logs"

	defaultEnrichmentWorkers    = 4
	defaultEnrichmentAttempts   = 3
	defaultRetryBaseDelayMS     = 500
	defaultRetryMaxDelayMS      = 10_000
	defaultGeocoderBaseURL      = "https://nominatim.openstreetmap.org"
	defaultGeocoderTimeout      = 10
	defaultGeocoderPrecision    = 4
	defaultVisionBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultVisionModel          = "google/gemini-3-flash-preview"
	defaultVisionTimeoutSeconds = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			ExportDir: defaultExportDir,
			LogDir:    defaultLogDir,
		},
		Import: Import{
			IngestNewData: true,
			Sources:       []string{"instagram", "twitter", "swarm"},
		},
		Enrichment: Enrichment{
			GeoEnabled:       true,
			MediaEnabled:     true,
			Workers:          defaultEnrichmentWorkers,
			MaxAttempts:      defaultEnrichmentAttempts,
			RetryBaseDelayMS: defaultRetryBaseDelayMS,
			RetryMaxDelayMS:  defaultRetryMaxDelayMS,
		},
		Geocoder: Geocoder{
			BaseURL:        defaultGeocoderBaseURL,
			TimeoutSeconds: defaultGeocoderTimeout,
			CachePrecision: defaultGeocoderPrecision,
		},
		Vision: Vision{
			BaseURL:        defaultVisionBaseURL,
			Model:          defaultVisionModel,
			TimeoutSeconds: defaultVisionTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
