package enrich_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"chronicle/internal/config"
	"chronicle/internal/enrich"
	"chronicle/internal/logging"
	"chronicle/internal/services"
	"chronicle/internal/services/geocode"
	"chronicle/internal/sources"
	"chronicle/internal/store"
	"chronicle/internal/testsupport"
)

type fakeGeocoder struct {
	mu    sync.Mutex
	calls int
	err   error
	place geocode.Place
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (geocode.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return geocode.Place{}, f.err
	}
	return f.place, nil
}

func (f *fakeGeocoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGeocoder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeCaptioner struct {
	mu      sync.Mutex
	calls   int
	caption string
}

func (f *fakeCaptioner) CaptionImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.caption, nil
}

func entryWithCoords(source sources.Type, id string, lat, lng float64) *store.Entry {
	entry := testsupport.NewEntry(source, id, time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC))
	entry.Latitude, entry.Longitude = &lat, &lng
	return entry
}

func geoPipeline(cfg *config.Config, st *store.Store, geocoder enrich.Geocoder) (*enrich.Pipeline, *enrich.GeoEnricher) {
	enricher := enrich.NewGeoEnricher(st, geocoder, logging.Discard(), cfg.Geocoder.CachePrecision)
	return enrich.New(cfg, st, logging.Discard(), enricher), enricher
}

func TestGeoEnrichmentSharesBucketAcrossEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(4))
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Both coordinates round to the same four-decimal bucket.
	testsupport.MustAppend(t, st,
		entryWithCoords(sources.Swarm, "c1", 60.16990, 24.93840),
		entryWithCoords(sources.Swarm, "c2", 60.16991, 24.93841),
	)

	geocoder := &fakeGeocoder{place: geocode.Place{City: "Helsinki", Country: "Finland"}}
	pipeline, enricher := geoPipeline(cfg, st, geocoder)

	summary, err := pipeline.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := summary.Kinds[store.KindGeo]; got.Enriched != 2 {
		t.Fatalf("expected both entries enriched, got %+v", got)
	}
	if geocoder.callCount() != 1 {
		t.Fatalf("expected one remote call for a shared bucket, got %d", geocoder.callCount())
	}

	stats := enricher.Stats()
	if stats.RemoteCalls != 1 || stats.Lookups != 2 {
		t.Fatalf("unexpected cache stats: %+v", stats)
	}

	counts, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.GeoCacheRows != 1 {
		t.Fatalf("expected one persisted cache row, got %d", counts.GeoCacheRows)
	}

	record, err := st.GetEnrichment(ctx, store.NaturalKey{Source: sources.Swarm, SourceID: "c1"}, store.KindGeo)
	if err != nil {
		t.Fatalf("GetEnrichment: %v", err)
	}
	if record.Status != store.EnrichmentEnriched || !strings.Contains(record.PayloadJSON, "Helsinki") {
		t.Fatalf("unexpected record: %#v", record)
	}
}

func TestGeoSecondProcessUsesPersistentCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustAppend(t, st, entryWithCoords(sources.Swarm, "c1", 60.1699, 24.9384))
	first := &fakeGeocoder{place: geocode.Place{City: "Helsinki"}}
	pipeline, _ := geoPipeline(cfg, st, first)
	if _, err := pipeline.Run(ctx, false); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// A fresh enricher has an empty memo but the same persistent cache.
	testsupport.MustAppend(t, st, entryWithCoords(sources.Swarm, "c2", 60.1699, 24.9384))
	second := &fakeGeocoder{place: geocode.Place{City: "should not be used"}}
	pipeline, enricher := geoPipeline(cfg, st, second)
	summary, err := pipeline.Run(ctx, false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if got := summary.Kinds[store.KindGeo]; got.Enriched != 1 || got.UpToDate != 1 {
		t.Fatalf("expected one new enrichment and one up to date, got %+v", got)
	}
	if second.callCount() != 0 {
		t.Fatalf("expected no remote calls on cache hit, got %d", second.callCount())
	}
	if stats := enricher.Stats(); stats.StoreHits != 1 {
		t.Fatalf("expected a persistent cache hit, got %+v", stats)
	}
}

func TestEntriesWithoutCoordinatesAreSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustAppend(t, st, testsupport.NewEntry(sources.Twitter, "no-geo", time.Now()))

	geocoder := &fakeGeocoder{}
	pipeline, _ := geoPipeline(cfg, st, geocoder)
	summary, err := pipeline.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := summary.Kinds[store.KindGeo]; got.Skipped != 1 {
		t.Fatalf("expected skip, got %+v", got)
	}
	if geocoder.callCount() != 0 {
		t.Fatal("skipped entries must not hit the geocoder")
	}

	// Skips are terminal until inputs change.
	summary, err = pipeline.Run(ctx, false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := summary.Kinds[store.KindGeo]; got.UpToDate != 1 || got.Eligible != 0 {
		t.Fatalf("expected up-to-date skip, got %+v", got)
	}
}

func TestTransientFailuresAreRetriedOnLaterRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustAppend(t, st, entryWithCoords(sources.Swarm, "flaky", 60.0, 24.0))
	geocoder := &fakeGeocoder{err: services.Wrap(services.ErrTransient, "geocode", "reverse", "unavailable", nil)}
	pipeline, _ := geoPipeline(cfg, st, geocoder)

	key := store.NaturalKey{Source: sources.Swarm, SourceID: "flaky"}
	for run := 1; run <= 3; run++ {
		summary, err := pipeline.Run(ctx, false)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if got := summary.Kinds[store.KindGeo]; got.Eligible != 1 || got.Failed != 1 {
			t.Fatalf("run %d: failed item must stay eligible, got %+v", run, got)
		}
		record, err := st.GetEnrichment(ctx, key, store.KindGeo)
		if err != nil {
			t.Fatalf("GetEnrichment: %v", err)
		}
		if record.Status != store.EnrichmentFailed || !record.Retryable || record.Attempts != run {
			t.Fatalf("run %d: unexpected record %#v", run, record)
		}
	}

	// The outage ends; the next run succeeds without any forcing.
	geocoder.setErr(nil)
	summary, err := pipeline.Run(ctx, false)
	if err != nil {
		t.Fatalf("recovery run: %v", err)
	}
	if got := summary.Kinds[store.KindGeo]; got.Enriched != 1 {
		t.Fatalf("expected recovery after outage, got %+v", got)
	}
	if geocoder.callCount() != 4 {
		t.Fatalf("expected 4 remote calls, got %d", geocoder.callCount())
	}
	record, err := st.GetEnrichment(ctx, key, store.KindGeo)
	if err != nil {
		t.Fatalf("GetEnrichment: %v", err)
	}
	if record.Status != store.EnrichmentEnriched || record.Attempts != 4 {
		t.Fatalf("unexpected record after recovery: %#v", record)
	}
}

func TestPermanentFailuresAreNotRetried(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustAppend(t, st, entryWithCoords(sources.Swarm, "rejected", 60.0, 24.0))
	geocoder := &fakeGeocoder{err: services.Wrap(services.ErrPermanent, "geocode", "reverse", "rejected", nil)}
	pipeline, _ := geoPipeline(cfg, st, geocoder)

	if _, err := pipeline.Run(ctx, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	summary, err := pipeline.Run(ctx, false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := summary.Kinds[store.KindGeo]; got.Exhausted != 1 {
		t.Fatalf("expected permanent failure parked, got %+v", got)
	}
	if geocoder.callCount() != 1 {
		t.Fatalf("expected a single call, got %d", geocoder.callCount())
	}
}

func TestCoordinateChangeTriggersReEnrichment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustAppend(t, st, entryWithCoords(sources.Swarm, "moved", 60.1699, 24.9384))
	geocoder := &fakeGeocoder{place: geocode.Place{City: "Helsinki"}}
	pipeline, _ := geoPipeline(cfg, st, geocoder)
	if _, err := pipeline.Run(ctx, false); err != nil {
		t.Fatalf("first run: %v", err)
	}

	moved := entryWithCoords(sources.Swarm, "moved", 59.3293, 18.0686)
	if _, err := st.UpsertEntries(ctx, []*store.Entry{moved}); err != nil {
		t.Fatalf("UpsertEntries: %v", err)
	}

	summary, err := pipeline.Run(ctx, false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := summary.Kinds[store.KindGeo]; got.Enriched != 1 {
		t.Fatalf("expected re-enrichment after coordinate change, got %+v", got)
	}
	if geocoder.callCount() != 2 {
		t.Fatalf("expected a second remote call, got %d", geocoder.callCount())
	}
}

func TestMediaEnrichmentInspectsResolvedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	photo := filepath.Join(t.TempDir(), "photo.jpg")
	testsupport.WriteJPEG(t, photo)

	entry := testsupport.NewEntry(sources.Instagram, "with-media", time.Now())
	entry.Media = []store.MediaRef{
		{OriginalURI: "media/photo.jpg", ResolvedPath: photo, MimeType: "image/jpeg"},
		{OriginalURI: "media/gone.jpg", UnresolvedReason: "not found"},
	}
	bare := testsupport.NewEntry(sources.Instagram, "no-media", time.Now())
	bare.Media = []store.MediaRef{{OriginalURI: "media/lost.jpg", UnresolvedReason: "not found"}}
	testsupport.MustAppend(t, st, entry, bare)

	captioner := &fakeCaptioner{caption: "A test fixture."}
	pipeline := enrich.New(cfg, st, logging.Discard(),
		enrich.NewMediaEnricher(captioner, logging.Discard()))

	summary, err := pipeline.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := summary.Kinds[store.KindMedia]; got.Enriched != 1 || got.Skipped != 1 {
		t.Fatalf("unexpected media summary: %+v", got)
	}

	record, err := st.GetEnrichment(ctx, entry.Key(), store.KindMedia)
	if err != nil {
		t.Fatalf("GetEnrichment: %v", err)
	}
	if !strings.Contains(record.PayloadJSON, "image/jpeg") ||
		!strings.Contains(record.PayloadJSON, "A test fixture.") {
		t.Fatalf("unexpected payload: %s", record.PayloadJSON)
	}
	if captioner.calls != 1 {
		t.Fatalf("expected one caption call, got %d", captioner.calls)
	}
}

func TestForceReEnrichesUpToDateItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	photo := filepath.Join(t.TempDir(), "photo.jpg")
	testsupport.WriteJPEG(t, photo)
	entry := testsupport.NewEntry(sources.Instagram, "late-caption", time.Now())
	entry.Media = []store.MediaRef{{OriginalURI: "media/photo.jpg", ResolvedPath: photo, MimeType: "image/jpeg"}}
	testsupport.MustAppend(t, st, entry)

	// First pass without a captioner records metadata only.
	pipeline := enrich.New(cfg, st, logging.Discard(),
		enrich.NewMediaEnricher(nil, logging.Discard()))
	if _, err := pipeline.Run(ctx, false); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Enabling captioning later leaves the input hash unchanged, so an
	// unforced run skips the item.
	captioner := &fakeCaptioner{caption: "A test fixture."}
	pipeline = enrich.New(cfg, st, logging.Discard(),
		enrich.NewMediaEnricher(captioner, logging.Discard()))
	summary, err := pipeline.Run(ctx, false)
	if err != nil {
		t.Fatalf("unforced run: %v", err)
	}
	if got := summary.Kinds[store.KindMedia]; got.UpToDate != 1 || got.Eligible != 0 {
		t.Fatalf("unforced run must leave the item alone, got %+v", got)
	}

	summary, err = pipeline.Run(ctx, true)
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if got := summary.Kinds[store.KindMedia]; got.Enriched != 1 {
		t.Fatalf("forced run must re-enrich, got %+v", got)
	}
	record, err := st.GetEnrichment(ctx, entry.Key(), store.KindMedia)
	if err != nil {
		t.Fatalf("GetEnrichment: %v", err)
	}
	if !strings.Contains(record.PayloadJSON, "A test fixture.") {
		t.Fatalf("expected caption backfilled, got %s", record.PayloadJSON)
	}
}

func TestDisabledKindsAreFiltered(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Enrichment.GeoEnabled = false
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.MustAppend(t, st, entryWithCoords(sources.Swarm, "c1", 60.0, 24.0))
	geocoder := &fakeGeocoder{}
	pipeline, _ := geoPipeline(cfg, st, geocoder)

	summary, err := pipeline.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := summary.Kinds[store.KindGeo]; ok {
		t.Fatalf("disabled kind must not appear in summary: %+v", summary)
	}
	if geocoder.callCount() != 0 {
		t.Fatal("disabled kind must not run")
	}
}
