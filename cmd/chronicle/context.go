package main

import (
	"log/slog"
	"strings"
	"sync"

	"chronicle/internal/config"
	"chronicle/internal/enrich"
	"chronicle/internal/export"
	"chronicle/internal/importer"
	"chronicle/internal/logging"
	"chronicle/internal/services/geocode"
	"chronicle/internal/services/vision"
	"chronicle/internal/store"
	"chronicle/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// withStore opens the store, runs fn, and closes the store afterwards.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store, *slog.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st, logger)
}

// buildPipeline wires the enrichment pipeline with its external clients.
func buildPipeline(cfg *config.Config, st *store.Store, logger *slog.Logger) *enrich.Pipeline {
	geocoder := geocode.NewClient(geocode.Config{
		BaseURL:        cfg.Geocoder.BaseURL,
		Email:          cfg.Geocoder.Email,
		TimeoutSeconds: cfg.Geocoder.TimeoutSeconds,
	},
		geocode.WithRetryMaxAttempts(cfg.Enrichment.MaxAttempts),
		geocode.WithRetryBackoff(cfg.Enrichment.RetryBaseDelay(), cfg.Enrichment.RetryMaxDelay()),
	)

	var captioner enrich.Captioner
	if cfg.Vision.Enabled && cfg.Vision.APIKey != "" {
		captioner = vision.NewClient(vision.Config{
			APIKey:         cfg.Vision.APIKey,
			BaseURL:        cfg.Vision.BaseURL,
			Model:          cfg.Vision.Model,
			TimeoutSeconds: cfg.Vision.TimeoutSeconds,
		})
	}

	return enrich.New(cfg, st, logger,
		enrich.NewGeoEnricher(st, geocoder, logger, cfg.Geocoder.CachePrecision),
		enrich.NewMediaEnricher(captioner, logger),
	)
}

func buildManager(cfg *config.Config, st *store.Store, logger *slog.Logger, pipeline *enrich.Pipeline) *workflow.Manager {
	return workflow.NewManager(cfg, st, logger,
		importer.NewService(cfg, st, logger),
		pipeline,
		export.New(cfg, st, logger),
	)
}
