package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chronicle/internal/config"
	"chronicle/internal/services"
	"chronicle/internal/store"
)

// Outcome is the result of enriching one entry for one kind.
type Outcome struct {
	Status      store.EnrichmentStatus
	PayloadJSON string
}

// Enricher produces one enrichment dimension for an entry. Implementations
// must be safe for concurrent use; the pipeline calls them from its worker
// pool.
type Enricher interface {
	Kind() store.EnrichmentKind
	// InputHash fingerprints the entry fields this kind reads. An unchanged
	// hash means the stored result is still valid and the entry is skipped.
	InputHash(entry *store.Entry) string
	Enrich(ctx context.Context, entry *store.Entry) (Outcome, error)
}

// KindSummary aggregates one kind's outcomes for a pipeline run.
type KindSummary struct {
	Eligible  int
	Enriched  int
	Skipped   int
	Failed    int
	Exhausted int
	UpToDate  int
}

// Summary aggregates a full pipeline run.
type Summary struct {
	Kinds map[store.EnrichmentKind]KindSummary
}

type workItem struct {
	entry    *store.Entry
	enricher Enricher
	previous *store.EnrichmentRecord
}

// Pipeline fans entries out to a bounded worker pool, one work item per
// (entry, kind) pair. Item failures are recorded and never abort siblings.
type Pipeline struct {
	cfg       *config.Config
	store     *store.Store
	logger    *slog.Logger
	enrichers []Enricher
	progress  func(done, total int)
}

// New constructs a pipeline over the supplied enrichers. Enrichers whose kind
// is disabled in configuration are filtered out here.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, enrichers ...Enricher) *Pipeline {
	active := make([]Enricher, 0, len(enrichers))
	for _, enricher := range enrichers {
		switch enricher.Kind() {
		case store.KindGeo:
			if !cfg.Enrichment.GeoEnabled {
				continue
			}
		case store.KindMedia:
			if !cfg.Enrichment.MediaEnabled {
				continue
			}
		}
		active = append(active, enricher)
	}
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		logger:    logger.With("component", "enrich"),
		enrichers: active,
	}
}

// OnProgress registers a callback invoked after each processed work item.
// Set it before Run; it is called from worker goroutines one at a time.
func (p *Pipeline) OnProgress(fn func(done, total int)) {
	p.progress = fn
}

// Run enriches every eligible entry for every active kind. An entry is
// eligible when it has no record for the kind, its inputs changed since the
// last run, or its last attempt failed retryably; retryable failures are
// picked up again on every run, while non-retryable ones stay parked until
// their inputs change. When force is set every item re-runs regardless of
// stored state, including Enriched items with an unchanged input hash.
func (p *Pipeline) Run(ctx context.Context, force bool) (Summary, error) {
	summary := Summary{Kinds: make(map[store.EnrichmentKind]KindSummary)}

	entries, err := p.store.ListEntries(ctx)
	if err != nil {
		return summary, fmt.Errorf("list entries: %w", err)
	}

	var items []workItem
	for _, enricher := range p.enrichers {
		kind := enricher.Kind()
		kindSummary := summary.Kinds[kind]

		records, err := p.store.ListEnrichmentByKind(ctx, kind)
		if err != nil {
			return summary, fmt.Errorf("list %s enrichment: %w", kind, err)
		}
		byKey := make(map[store.NaturalKey]*store.EnrichmentRecord, len(records))
		for _, record := range records {
			byKey[store.NaturalKey{Source: record.Source, SourceID: record.SourceID}] = record
		}

		for _, entry := range entries {
			previous := byKey[entry.Key()]
			switch p.eligibility(force, enricher, entry, previous) {
			case runItem:
				kindSummary.Eligible++
				items = append(items, workItem{entry: entry, enricher: enricher, previous: previous})
			case itemUpToDate:
				kindSummary.UpToDate++
			case itemExhausted:
				kindSummary.Exhausted++
			}
		}
		summary.Kinds[kind] = kindSummary
	}

	if len(items) == 0 {
		return summary, nil
	}

	p.logger.Info("enrichment starting",
		"items", len(items), "workers", p.workers())

	results := p.process(ctx, items)
	for kind, counts := range results {
		kindSummary := summary.Kinds[kind]
		kindSummary.Enriched += counts.Enriched
		kindSummary.Skipped += counts.Skipped
		kindSummary.Failed += counts.Failed
		summary.Kinds[kind] = kindSummary
	}

	return summary, ctx.Err()
}

type itemEligibility int

const (
	runItem itemEligibility = iota
	itemUpToDate
	itemExhausted
)

func (p *Pipeline) eligibility(force bool, enricher Enricher, entry *store.Entry, previous *store.EnrichmentRecord) itemEligibility {
	if previous == nil || force {
		return runItem
	}
	if previous.InputHash != enricher.InputHash(entry) {
		return runItem
	}
	switch previous.Status {
	case store.EnrichmentEnriched, store.EnrichmentSkipped:
		return itemUpToDate
	case store.EnrichmentFailed:
		if !previous.Retryable {
			return itemExhausted
		}
		// Retry bounds apply inside a run; a later run gets a fresh chance.
		return runItem
	default:
		// pending or a run that died mid-flight
		return runItem
	}
}

func (p *Pipeline) process(ctx context.Context, items []workItem) map[store.EnrichmentKind]KindSummary {
	queue := make(chan workItem)
	results := make(map[store.EnrichmentKind]KindSummary)

	var mu sync.Mutex
	var wg sync.WaitGroup
	done := 0
	for i := 0; i < p.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				status := p.processItem(ctx, item)
				mu.Lock()
				counts := results[item.enricher.Kind()]
				switch status {
				case store.EnrichmentEnriched:
					counts.Enriched++
				case store.EnrichmentSkipped:
					counts.Skipped++
				default:
					counts.Failed++
				}
				results[item.enricher.Kind()] = counts
				done++
				if p.progress != nil {
					p.progress(done, len(items))
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case queue <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	return results
}

// processItem runs one (entry, kind) pair through the state machine:
// enriching while in flight, then enriched, skipped, or failed. The attempt
// counter advances exactly once per processed item.
func (p *Pipeline) processItem(ctx context.Context, item workItem) store.EnrichmentStatus {
	entry := item.entry
	enricher := item.enricher
	attempts := 1
	if item.previous != nil {
		attempts = item.previous.Attempts + 1
	}

	record := &store.EnrichmentRecord{
		Source:    entry.Source,
		SourceID:  entry.SourceID,
		Kind:      enricher.Kind(),
		Status:    store.EnrichmentEnriching,
		InputHash: enricher.InputHash(entry),
		Attempts:  attempts,
	}
	if err := p.store.UpsertEnrichment(ctx, record); err != nil {
		p.logger.Error("failed to mark item enriching",
			"source", string(entry.Source), "id", entry.SourceID, "error", err)
		return store.EnrichmentFailed
	}

	outcome, err := enricher.Enrich(ctx, entry)
	if err != nil {
		record.Status = store.EnrichmentFailed
		record.ErrorMessage = err.Error()
		record.Retryable = services.IsRetryable(err)
		p.logger.Warn("enrichment failed",
			"kind", string(record.Kind),
			"source", string(entry.Source), "id", entry.SourceID,
			"attempt", attempts, "retryable", record.Retryable, "error", err)
	} else {
		record.Status = outcome.Status
		record.PayloadJSON = outcome.PayloadJSON
	}

	if err := p.store.UpsertEnrichment(ctx, record); err != nil {
		p.logger.Error("failed to record enrichment outcome",
			"source", string(entry.Source), "id", entry.SourceID, "error", err)
		return store.EnrichmentFailed
	}
	return record.Status
}

func (p *Pipeline) workers() int {
	if p.cfg.Enrichment.Workers > 0 {
		return p.cfg.Enrichment.Workers
	}
	return 1
}
