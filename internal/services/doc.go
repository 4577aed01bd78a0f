// Package services holds shared helpers for external collaborators: the
// sentinel error taxonomy used to classify failures across import, enrichment,
// and export, plus the Wrap helper that tags errors with stage context.
//
// Per-item errors wrapped here accumulate into the end-of-run summary; a
// marker of ErrTransient or ErrTimeout tells the enrichment pipeline the item
// may be retried, while ErrPermanent and ErrConfiguration stop retries.
package services
