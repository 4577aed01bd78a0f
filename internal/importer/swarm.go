package importer

import (
	"context"
	"encoding/json"
	"log/slog"

	"chronicle/internal/sources"
	"chronicle/internal/store"
)

type swarmCheckin struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	Shout     string `json:"shout"`
	Venue     struct {
		Name     string `json:"name"`
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"venue"`
}

type swarmImporter struct{}

func (swarmImporter) Source() sources.Type { return sources.Swarm }

func (swarmImporter) Parse(ctx context.Context, logger *slog.Logger, loc sources.Location, archiveRoot string) ([]*store.Entry, ParseStats, error) {
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

			var checkin swarmCheckin
			if err := json.Unmarshal(raw, &checkin); err != nil {
				logger.Warn("skipping malformed checkin record", "manifest", manifest, "error", err)
				stats.ParseErrors++
				continue
			}
			if checkin.ID == "" {
				logger.Warn("skipping checkin without id", "manifest", manifest)
				stats.ParseErrors++
				continue
			}

			entry := &store.Entry{
				Source:   sources.Swarm,
				SourceID: checkin.ID,
				Title:    cleanText(checkin.Venue.Name),
				Body:     cleanText(checkin.Shout),
			}
			entry.Timestamp, entry.TimestampFlag = resolveTimestamp(checkin.CreatedAt, "")
			if entry.TimestampFlag == store.TimestampMissing {
				stats.MissingTime++
			}

			if checkin.Venue.Location.Lat != 0 || checkin.Venue.Location.Lng != 0 {
				lat, lng := checkin.Venue.Location.Lat, checkin.Venue.Location.Lng
				entry.Latitude, entry.Longitude = &lat, &lng
			}

			entries = append(entries, entry)
		}
	}

	return entries, stats, nil
}
