package store

import (
	"time"

	"chronicle/internal/sources"
)

// TimestampFlag records how an entry's timestamp was derived. Entries whose
// manifests carried no resolvable timestamp are retained and flagged, never
// defaulted to the import time.
type TimestampFlag string

const (
	TimestampResolved TimestampFlag = "resolved"
	TimestampMissing  TimestampFlag = "missing"
)

// EnrichmentKind names one independent enrichment dimension.
type EnrichmentKind string

const (
	KindGeo   EnrichmentKind = "geo"
	KindMedia EnrichmentKind = "media"
)

// AllKinds returns the ordered list of enrichment kinds.
func AllKinds() []EnrichmentKind {
	return []EnrichmentKind{KindGeo, KindMedia}
}

// EnrichmentStatus is the per-(entry, kind) state machine.
type EnrichmentStatus string

const (
	EnrichmentPending   EnrichmentStatus = "pending"
	EnrichmentEnriching EnrichmentStatus = "enriching"
	EnrichmentEnriched  EnrichmentStatus = "enriched"
	EnrichmentSkipped   EnrichmentStatus = "skipped"
	EnrichmentFailed    EnrichmentStatus = "failed"
)

// NaturalKey is the stable identity of one item across runs.
type NaturalKey struct {
	Source   sources.Type
	SourceID string
}

// MediaRef is one media reference owned by an entry. Either ResolvedPath or
// UnresolvedReason is set; unresolved references are retained, never dropped.
type MediaRef struct {
	ID               int64
	EntryID          int64
	OriginalURI      string
	ResolvedPath     string
	UnresolvedReason string
	MimeType         string
}

// Resolved reports whether the reference points at an existing local file.
func (m MediaRef) Resolved() bool {
	return m.ResolvedPath != ""
}

// Entry is the normalized record produced by an importer.
type Entry struct {
	ID            int64
	Source        sources.Type
	SourceID      string
	Timestamp     *time.Time
	TimestampFlag TimestampFlag
	Latitude      *float64
	Longitude     *float64
	Title         string
	Body          string
	Media         []MediaRef
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Key returns the entry's natural key.
func (e *Entry) Key() NaturalKey {
	return NaturalKey{Source: e.Source, SourceID: e.SourceID}
}

// HasCoordinate reports whether the entry carries a usable coordinate pair.
func (e *Entry) HasCoordinate() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// EnrichmentRecord holds the outcome of one enrichment kind for one entry.
// InputHash captures the enrichment inputs so unchanged entries can be
// skipped on later runs.
type EnrichmentRecord struct {
	ID           int64
	Source       sources.Type
	SourceID     string
	Kind         EnrichmentKind
	Status       EnrichmentStatus
	PayloadJSON  string
	InputHash    string
	Attempts     int
	ErrorMessage string
	Retryable    bool
	UpdatedAt    time.Time
}

// GeoCacheEntry is one persisted reverse-geocoding result keyed by rounded
// coordinate bucket. Shared across entries and runs.
type GeoCacheEntry struct {
	Bucket    string
	Latitude  float64
	Longitude float64
	PlaceJSON string
	UpdatedAt time.Time
}

// Counts aggregates store contents for diagnostics.
type Counts struct {
	Entries      map[sources.Type]int
	Media        int
	Unresolved   int
	Enrichment   map[EnrichmentKind]map[EnrichmentStatus]int
	GeoCacheRows int
}
