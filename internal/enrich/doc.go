// Package enrich derives additional dimensions for imported entries: place
// names from coordinates and technical metadata from media files. Each
// (entry, kind) pair is an independent work item tracked through a persisted
// state machine, so a failed item neither blocks its siblings nor repeats
// work already done on the next run.
package enrich
