// Package workflow orchestrates the pipeline stages over one archive root:
// take the run lock, import each configured source, enrich eligible entries,
// regenerate export artifacts. Stages run in order and each run produces a
// RunSummary identified by a run UUID.
package workflow
