package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"chronicle/internal/config"
	"chronicle/internal/enrich"
	"chronicle/internal/export"
	"chronicle/internal/importer"
	"chronicle/internal/runlock"
	"chronicle/internal/store"
)

// RunSummary accumulates the outcome of one full pipeline run.
type RunSummary struct {
	RunID       string
	ArchiveRoot string
	StartedAt   time.Time
	Duration    time.Duration
	Imports     []importer.SourceResult
	Enrichment  enrich.Summary
	Export      export.Summary
}

// Manager drives the stages in order: lock, import, enrich, export. Item and
// source level failures are absorbed by the stages themselves; the manager
// only aborts when the archive root is unusable or the store breaks.
type Manager struct {
	cfg      *config.Config
	store    *store.Store
	logger   *slog.Logger
	importer *importer.Service
	pipeline *enrich.Pipeline
	exporter *export.Exporter
}

// NewManager constructs a workflow manager over prebuilt stage services.
func NewManager(
	cfg *config.Config,
	st *store.Store,
	logger *slog.Logger,
	imp *importer.Service,
	pipeline *enrich.Pipeline,
	exporter *export.Exporter,
) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    st,
		logger:   logger.With("component", "workflow"),
		importer: imp,
		pipeline: pipeline,
		exporter: exporter,
	}
}

// Run executes the full pipeline against one archive root.
func (m *Manager) Run(ctx context.Context, archiveRoot string, force bool) (RunSummary, error) {
	summary := RunSummary{
		RunID:       uuid.NewString(),
		ArchiveRoot: archiveRoot,
		StartedAt:   time.Now().UTC(),
	}

	if err := checkArchiveRoot(archiveRoot); err != nil {
		return summary, err
	}

	release, err := m.acquireLock()
	if err != nil {
		return summary, err
	}
	defer release()

	logger := m.logger.With("run_id", summary.RunID)
	logger.Info("run starting", "archive_root", archiveRoot, "force", force)

	summary.Imports, err = m.importer.ImportAll(ctx, archiveRoot, force)
	if err != nil {
		return summary, fmt.Errorf("import stage: %w", err)
	}

	summary.Enrichment, err = m.pipeline.Run(ctx, false)
	if err != nil {
		return summary, fmt.Errorf("enrich stage: %w", err)
	}

	summary.Export, err = m.exporter.Export(ctx)
	if err != nil {
		return summary, fmt.Errorf("export stage: %w", err)
	}

	summary.Duration = time.Since(summary.StartedAt)
	logger.Info("run complete",
		"duration", summary.Duration.Round(time.Millisecond).String(),
		"exported", summary.Export.Total)
	return summary, nil
}

// Import runs only the import stage.
func (m *Manager) Import(ctx context.Context, archiveRoot string, force bool) ([]importer.SourceResult, error) {
	if err := checkArchiveRoot(archiveRoot); err != nil {
		return nil, err
	}
	release, err := m.acquireLock()
	if err != nil {
		return nil, err
	}
	defer release()
	return m.importer.ImportAll(ctx, archiveRoot, force)
}

// Enrich runs only the enrichment stage. force re-runs items that are
// already enriched or parked.
func (m *Manager) Enrich(ctx context.Context, force bool) (enrich.Summary, error) {
	release, err := m.acquireLock()
	if err != nil {
		return enrich.Summary{}, err
	}
	defer release()
	return m.pipeline.Run(ctx, force)
}

// Export runs only the export stage.
func (m *Manager) Export(ctx context.Context) (export.Summary, error) {
	release, err := m.acquireLock()
	if err != nil {
		return export.Summary{}, err
	}
	defer release()
	return m.exporter.Export(ctx)
}

func (m *Manager) acquireLock() (func(), error) {
	lock := runlock.New(m.cfg.Paths.DataDir)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Release(); err != nil {
			m.logger.Warn("failed to release run lock", "error", err)
		}
	}, nil
}

func checkArchiveRoot(archiveRoot string) error {
	info, err := os.Stat(archiveRoot)
	if err != nil {
		return fmt.Errorf("archive root unreadable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root %s is not a directory", archiveRoot)
	}
	return nil
}
