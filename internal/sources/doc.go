// Package sources names the supported archive source types and probes an
// archive root for each type's manifest layout.
//
// Export bundles change shape release to release; the locator models every
// known shape as an ordered list of candidate directories plus a manifest
// glob. A failed probe is non-fatal: the source is skipped and the run
// continues with the others.
package sources
