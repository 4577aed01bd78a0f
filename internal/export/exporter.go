package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"chronicle/internal/config"
	"chronicle/internal/fileutil"
	"chronicle/internal/store"
)

// artifactVersion is bumped when the artifact shape changes. Consumers should
// refuse versions they do not know.
const artifactVersion = 1

// Artifact is the on-disk shape of one category's export file.
type Artifact struct {
	Version     int             `json:"version"`
	Category    Category        `json:"category"`
	GeneratedAt string          `json:"generated_at"`
	Count       int             `json:"count"`
	Entries     []ArtifactEntry `json:"entries"`
}

// ArtifactEntry is one exported timeline item.
type ArtifactEntry struct {
	Source           string          `json:"source"`
	ID               string          `json:"id"`
	Timestamp        string          `json:"timestamp,omitempty"`
	TimestampMissing bool            `json:"timestamp_missing,omitempty"`
	Latitude         *float64        `json:"latitude,omitempty"`
	Longitude        *float64        `json:"longitude,omitempty"`
	Title            string          `json:"title,omitempty"`
	Body             string          `json:"body,omitempty"`
	Media            []ArtifactMedia `json:"media,omitempty"`
	Place            json.RawMessage `json:"place,omitempty"`
	MediaInfo        json.RawMessage `json:"media_info,omitempty"`
}

// ArtifactMedia is one media reference inside an exported entry. Unresolved
// references are exported too, with the reason, so the consumer can show a
// placeholder.
type ArtifactMedia struct {
	OriginalURI      string `json:"original_uri"`
	ResolvedPath     string `json:"resolved_path,omitempty"`
	MimeType         string `json:"mime_type,omitempty"`
	UnresolvedReason string `json:"unresolved_reason,omitempty"`
}

// Summary reports one export run.
type Summary struct {
	Total      int
	Categories map[Category]int
	Artifacts  []string
}

// Exporter regenerates the category artifacts from the store. Generation is
// wholesale: every artifact is rebuilt and swapped in atomically, so a
// half-finished run never leaves a mixed set on disk.
type Exporter struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
}

// New constructs an exporter.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Exporter {
	return &Exporter{cfg: cfg, store: st, logger: logger.With("component", "export")}
}

// Export writes one JSON artifact per category under the export directory.
// Every stored entry lands in exactly one artifact; empty categories still
// produce a file so consumers can rely on the full set existing.
func (e *Exporter) Export(ctx context.Context) (Summary, error) {
	summary := Summary{Categories: make(map[Category]int)}

	entries, err := e.store.ListEntries(ctx)
	if err != nil {
		return summary, fmt.Errorf("list entries: %w", err)
	}

	payloads, err := e.enrichmentPayloads(ctx)
	if err != nil {
		return summary, err
	}

	grouped := make(map[Category][]ArtifactEntry)
	for _, entry := range entries {
		category := Categorize(entry)
		grouped[category] = append(grouped[category], e.artifactEntry(entry, payloads))
		summary.Categories[category]++
		summary.Total++
	}

	generatedAt := time.Now().UTC().Format(time.RFC3339)
	for _, category := range AllCategories() {
		artifact := Artifact{
			Version:     artifactVersion,
			Category:    category,
			GeneratedAt: generatedAt,
			Count:       len(grouped[category]),
			Entries:     grouped[category],
		}
		if artifact.Entries == nil {
			artifact.Entries = []ArtifactEntry{}
		}

		path := filepath.Join(e.cfg.Paths.ExportDir, string(category)+".json")
		if err := fileutil.WriteJSONAtomic(path, artifact); err != nil {
			return summary, fmt.Errorf("write %s artifact: %w", category, err)
		}
		summary.Artifacts = append(summary.Artifacts, path)
	}

	e.logger.Info("export complete", "entries", summary.Total, "artifacts", len(summary.Artifacts))
	return summary, nil
}

type payloadKey struct {
	key  store.NaturalKey
	kind store.EnrichmentKind
}

func (e *Exporter) enrichmentPayloads(ctx context.Context) (map[payloadKey]string, error) {
	payloads := make(map[payloadKey]string)
	for _, kind := range store.AllKinds() {
		records, err := e.store.ListEnrichmentByKind(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("list %s enrichment: %w", kind, err)
		}
		for _, record := range records {
			if record.Status != store.EnrichmentEnriched || record.PayloadJSON == "" {
				continue
			}
			key := store.NaturalKey{Source: record.Source, SourceID: record.SourceID}
			payloads[payloadKey{key: key, kind: kind}] = record.PayloadJSON
		}
	}
	return payloads, nil
}

func (e *Exporter) artifactEntry(entry *store.Entry, payloads map[payloadKey]string) ArtifactEntry {
	out := ArtifactEntry{
		Source:           string(entry.Source),
		ID:               entry.SourceID,
		TimestampMissing: entry.TimestampFlag == store.TimestampMissing,
		Latitude:         entry.Latitude,
		Longitude:        entry.Longitude,
		Title:            entry.Title,
		Body:             entry.Body,
	}
	if entry.Timestamp != nil {
		out.Timestamp = entry.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, ref := range entry.Media {
		out.Media = append(out.Media, ArtifactMedia{
			OriginalURI:      ref.OriginalURI,
			ResolvedPath:     ref.ResolvedPath,
			MimeType:         ref.MimeType,
			UnresolvedReason: ref.UnresolvedReason,
		})
	}
	if payload, ok := payloads[payloadKey{key: entry.Key(), kind: store.KindGeo}]; ok {
		out.Place = json.RawMessage(payload)
	}
	if payload, ok := payloads[payloadKey{key: entry.Key(), kind: store.KindMedia}]; ok {
		out.MediaInfo = json.RawMessage(payload)
	}
	return out
}
