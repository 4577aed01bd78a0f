package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"chronicle/internal/sources"
	"chronicle/internal/store"
)

type instagramMedia struct {
	URI               string `json:"uri"`
	Title             string `json:"title"`
	CreationTimestamp int64  `json:"creation_timestamp"`
	MediaMetadata     struct {
		PhotoMetadata struct {
			ExifData []struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"exif_data"`
		} `json:"photo_metadata"`
	} `json:"media_metadata"`
}

type instagramPost struct {
	Title             string           `json:"title"`
	CreationTimestamp int64            `json:"creation_timestamp"`
	Media             []instagramMedia `json:"media"`
}

type instagramImporter struct{}

func (instagramImporter) Source() sources.Type { return sources.Instagram }

func (instagramImporter) Parse(ctx context.Context, logger *slog.Logger, loc sources.Location, archiveRoot string) ([]*store.Entry, ParseStats, error) {
	var entries []*store.Entry
	var stats ParseStats

	for _, manifest := range loc.ManifestFiles {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		records, err := manifestRecords(manifest)
		if err != nil {
			logger.Warn("skipping unreadable manifest", "manifest", manifest, "error", err)
			stats.ParseErrors++
			continue
		}

		for _, raw := range records {
			stats.Records++

			var post instagramPost
			if err := json.Unmarshal(raw, &post); err != nil {
				logger.Warn("skipping malformed post record", "manifest", manifest, "error", err)
				stats.ParseErrors++
				continue
			}

			entry := &store.Entry{
				Source:   sources.Instagram,
				SourceID: instagramPostID(post),
				Body:     cleanText(post.Title),
			}

			// Posts exported without a top-level timestamp usually carry one
			// per media item.
			epoch := post.CreationTimestamp
			if epoch == 0 && len(post.Media) > 0 {
				epoch = post.Media[0].CreationTimestamp
			}
			entry.Timestamp, entry.TimestampFlag = resolveTimestamp(epoch, "")
			if entry.TimestampFlag == store.TimestampMissing {
				stats.MissingTime++
			}

			for _, media := range post.Media {
				if entry.Body == "" && media.Title != "" {
					entry.Body = cleanText(media.Title)
				}
				for _, exif := range media.MediaMetadata.PhotoMetadata.ExifData {
					if entry.Latitude == nil && (exif.Latitude != 0 || exif.Longitude != 0) {
						lat, lng := exif.Latitude, exif.Longitude
						entry.Latitude, entry.Longitude = &lat, &lng
					}
				}
				entry.Media = append(entry.Media, resolveMediaRef(media.URI, loc.BasePath, archiveRoot, &stats))
			}

			entries = append(entries, entry)
		}
	}

	return entries, stats, nil
}

// instagramPostID derives a stable id for a post. Instagram exports carry no
// native post identifier, so identity comes from the content that cannot
// change across exports of the same post: media URIs, timestamp, and caption.
func instagramPostID(post instagramPost) string {
	h := sha256.New()
	for _, media := range post.Media {
		io.WriteString(h, media.URI)
		io.WriteString(h, "\n")
	}
	fmt.Fprintf(h, "%d\n%s", post.CreationTimestamp, post.Title)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// manifestRecords reads a manifest file and splits it into raw records so a
// malformed record is skipped without losing the rest of the file. Manifests
// wrapped in an object with an "items" array are unwrapped first.
func manifestRecords(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return splitRecords(data)
}

func splitRecords(data []byte) ([]json.RawMessage, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var wrapped struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("manifest is neither an array nor an items object: %w", err)
	}
	return wrapped.Items, nil
}
