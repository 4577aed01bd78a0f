package testsupport

import (
	"context"
	"testing"
	"time"

	"chronicle/internal/config"
	"chronicle/internal/sources"
	"chronicle/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewEntry builds a minimal normalized entry for tests.
func NewEntry(source sources.Type, sourceID string, ts time.Time) *store.Entry {
	t := ts.UTC()
	return &store.Entry{
		Source:        source,
		SourceID:      sourceID,
		Timestamp:     &t,
		TimestampFlag: store.TimestampResolved,
	}
}

// MustAppend appends entries to the store and fails the test on error.
func MustAppend(t testing.TB, st *store.Store, entries ...*store.Entry) {
	t.Helper()
	if _, err := st.AppendEntries(context.Background(), entries); err != nil {
		t.Fatalf("AppendEntries: %v", err)
	}
}
