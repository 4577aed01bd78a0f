// Package store persists the normalized timeline in SQLite: entries with
// their media references, enrichment records, the shared geo cache, and the
// import cursor index that backs incremental imports.
//
// The core invariant is append-then-index atomicity: an entry and its import
// cursor row commit in the same transaction, so a retry after a crash can
// never duplicate an entry. Natural keys (source type + source-native id) are
// unique per source; a duplicate outside the tracked flow surfaces as a store
// integrity violation rather than being silently swallowed.
//
// Schema changes bump schemaVersion in store.go; everything in the store is
// re-derivable from the archive, so users delete the database to adopt a new
// schema.
package store
