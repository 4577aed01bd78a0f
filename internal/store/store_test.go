package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"chronicle/internal/services"
	"chronicle/internal/sources"
	"chronicle/internal/store"
	"chronicle/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	counts, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if len(counts.Entries) != 0 {
		t.Fatalf("expected empty store, got %v", counts.Entries)
	}
}

func TestAppendEntriesMarksCursorAtomically(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	entry := testsupport.NewEntry(sources.Instagram, "post-1", time.Date(2018, 1, 2, 12, 0, 0, 0, time.UTC))
	entry.Media = []store.MediaRef{
		{OriginalURI: "media/posts/a.jpg", ResolvedPath: "/tmp/a.jpg", MimeType: "image/jpeg"},
		{OriginalURI: "media/posts/gone.jpg", UnresolvedReason: "not found"},
	}
	testsupport.MustAppend(t, st, entry)

	imported, err := st.HasImported(ctx, entry.Key())
	if err != nil {
		t.Fatalf("HasImported: %v", err)
	}
	if !imported {
		t.Fatal("expected cursor row after append")
	}

	fetched, err := st.GetEntry(ctx, entry.Key())
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if fetched == nil || len(fetched.Media) != 2 {
		t.Fatalf("expected entry with two media refs, got %#v", fetched)
	}
	if fetched.Media[1].Resolved() {
		t.Fatal("unresolved media must stay unresolved")
	}
}

func TestAppendDuplicateIsIntegrityViolation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	entry := testsupport.NewEntry(sources.Twitter, "tweet-9", time.Now())
	testsupport.MustAppend(t, st, entry)

	dup := testsupport.NewEntry(sources.Twitter, "tweet-9", time.Now())
	if _, err := st.AppendEntries(ctx, []*store.Entry{dup}); !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity violation, got %v", err)
	}
}

func TestNaturalKeyUniquePerSourceOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	// Same source-native id under different source types is two items.
	testsupport.MustAppend(t, st,
		testsupport.NewEntry(sources.Twitter, "42", time.Now()),
		testsupport.NewEntry(sources.Swarm, "42", time.Now()),
	)

	counts, err := st.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Entries[sources.Twitter] != 1 || counts.Entries[sources.Swarm] != 1 {
		t.Fatalf("unexpected counts: %v", counts.Entries)
	}
}

func TestUpsertEntriesReplacesAndRebuildsCursors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	entry := testsupport.NewEntry(sources.Instagram, "post-2", time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC))
	entry.Title = "old title"
	testsupport.MustAppend(t, st, entry)

	updated := testsupport.NewEntry(sources.Instagram, "post-2", time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC))
	updated.Title = "new title"
	updated.Media = []store.MediaRef{{OriginalURI: "media/b.jpg", ResolvedPath: "/tmp/b.jpg"}}
	if _, err := st.UpsertEntries(ctx, []*store.Entry{updated}); err != nil {
		t.Fatalf("UpsertEntries: %v", err)
	}
	if err := st.RebuildCursors(ctx); err != nil {
		t.Fatalf("RebuildCursors: %v", err)
	}

	fetched, err := st.GetEntry(ctx, updated.Key())
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if fetched.Title != "new title" || len(fetched.Media) != 1 {
		t.Fatalf("expected replaced entry, got %#v", fetched)
	}

	imported, err := st.HasImported(ctx, updated.Key())
	if err != nil || !imported {
		t.Fatalf("expected rebuilt cursor, imported=%v err=%v", imported, err)
	}
}

func TestListEntriesByTimeRange(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustAppend(t, st,
		testsupport.NewEntry(sources.Twitter, "a", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
		testsupport.NewEntry(sources.Twitter, "b", time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)),
		testsupport.NewEntry(sources.Twitter, "c", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)),
	)

	got, err := st.ListEntriesByTimeRange(ctx,
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListEntriesByTimeRange: %v", err)
	}
	if len(got) != 2 || got[0].SourceID != "a" || got[1].SourceID != "b" {
		t.Fatalf("unexpected range result: %#v", got)
	}
}

func TestEntriesWithoutTimestampRetained(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	entry := &store.Entry{
		Source:        sources.Instagram,
		SourceID:      "no-ts",
		TimestampFlag: store.TimestampMissing,
	}
	testsupport.MustAppend(t, st, entry)

	all, err := st.ListEntries(ctx)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(all) != 1 || all[0].Timestamp != nil || all[0].TimestampFlag != store.TimestampMissing {
		t.Fatalf("expected flagged timestamp-less entry, got %#v", all[0])
	}
}

func TestEnrichmentLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	entry := testsupport.NewEntry(sources.Swarm, "checkin-1", time.Now())
	testsupport.MustAppend(t, st, entry)

	record := &store.EnrichmentRecord{
		Source:    entry.Source,
		SourceID:  entry.SourceID,
		Kind:      store.KindGeo,
		Status:    store.EnrichmentEnriched,
		InputHash: "hash-1",
		Attempts:  1,
	}
	if err := st.UpsertEnrichment(ctx, record); err != nil {
		t.Fatalf("UpsertEnrichment: %v", err)
	}

	fetched, err := st.GetEnrichment(ctx, entry.Key(), store.KindGeo)
	if err != nil {
		t.Fatalf("GetEnrichment: %v", err)
	}
	if fetched == nil || fetched.Status != store.EnrichmentEnriched {
		t.Fatalf("unexpected record: %#v", fetched)
	}

	// Upsert with a lower attempt count must not regress the counter.
	record.Attempts = 0
	record.Status = store.EnrichmentFailed
	if err := st.UpsertEnrichment(ctx, record); err != nil {
		t.Fatalf("UpsertEnrichment again: %v", err)
	}
	fetched, err = st.GetEnrichment(ctx, entry.Key(), store.KindGeo)
	if err != nil {
		t.Fatalf("GetEnrichment: %v", err)
	}
	if fetched.Attempts != 1 {
		t.Fatalf("attempts should be monotonic, got %d", fetched.Attempts)
	}

	keys, err := st.EnrichedKeys(ctx, store.KindGeo)
	if err != nil {
		t.Fatalf("EnrichedKeys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("failed record should not be in enriched keys: %v", keys)
	}

	purged, err := st.PurgeEnrichment(ctx, store.KindGeo)
	if err != nil || purged != 1 {
		t.Fatalf("PurgeEnrichment: purged=%d err=%v", purged, err)
	}
	if fetched, err := st.GetEnrichment(ctx, entry.Key(), store.KindGeo); err != nil || fetched != nil {
		t.Fatalf("expected record gone after purge, got %#v err=%v", fetched, err)
	}
}

func TestGeoCacheRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	entry := &store.GeoCacheEntry{
		Bucket:    "60.1699,24.9384",
		Latitude:  60.1699,
		Longitude: 24.9384,
		PlaceJSON: `{"city":"Helsinki","country":"Finland"}`,
	}
	if err := st.UpsertGeoCache(ctx, entry); err != nil {
		t.Fatalf("UpsertGeoCache: %v", err)
	}

	fetched, err := st.GetGeoCache(ctx, entry.Bucket)
	if err != nil {
		t.Fatalf("GetGeoCache: %v", err)
	}
	if fetched == nil || fetched.PlaceJSON != entry.PlaceJSON {
		t.Fatalf("unexpected cache entry: %#v", fetched)
	}

	if _, err := st.GetGeoCache(ctx, "0.0000,0.0000"); err != nil {
		t.Fatalf("miss should not error: %v", err)
	}

	cleared, err := st.ClearGeoCache(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("ClearGeoCache: %d %v", cleared, err)
	}
}

func TestPurgeEntryCascades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	entry := testsupport.NewEntry(sources.Instagram, "purge-me", time.Now())
	entry.Media = []store.MediaRef{{OriginalURI: "media/x.jpg", ResolvedPath: "/tmp/x.jpg"}}
	testsupport.MustAppend(t, st, entry)
	if err := st.UpsertEnrichment(ctx, &store.EnrichmentRecord{
		Source: entry.Source, SourceID: entry.SourceID,
		Kind: store.KindMedia, Status: store.EnrichmentEnriched,
	}); err != nil {
		t.Fatalf("UpsertEnrichment: %v", err)
	}

	removed, err := st.PurgeEntry(ctx, entry.Key())
	if err != nil || !removed {
		t.Fatalf("PurgeEntry: removed=%v err=%v", removed, err)
	}

	if got, err := st.GetEntry(ctx, entry.Key()); err != nil || got != nil {
		t.Fatalf("expected entry gone, got %#v err=%v", got, err)
	}
	if rec, err := st.GetEnrichment(ctx, entry.Key(), store.KindMedia); err != nil || rec != nil {
		t.Fatalf("expected enrichment gone, got %#v err=%v", rec, err)
	}
	if imported, err := st.HasImported(ctx, entry.Key()); err != nil || imported {
		t.Fatalf("expected cursor gone, imported=%v err=%v", imported, err)
	}

	counts, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Media != 0 {
		t.Fatalf("expected media refs cascaded, got %d", counts.Media)
	}
}
