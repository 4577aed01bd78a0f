package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"chronicle/internal/pathresolve"
	"chronicle/internal/sources"
	"chronicle/internal/store"
)

type tweetMedia struct {
	MediaURLHTTPS string `json:"media_url_https"`
	MediaURL      string `json:"media_url"`
}

func (m tweetMedia) url() string {
	if m.MediaURLHTTPS != "" {
		return m.MediaURLHTTPS
	}
	return m.MediaURL
}

type tweetRecord struct {
	IDStr     string `json:"id_str"`
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	FullText  string `json:"full_text"`
	Text      string `json:"text"`
	Geo       struct {
		Coordinates []float64 `json:"coordinates"` // lat, lon
	} `json:"geo"`
	Coordinates *struct {
		Coordinates []float64 `json:"coordinates"` // lon, lat
	} `json:"coordinates"`
	Entities struct {
		Media []tweetMedia `json:"media"`
	} `json:"entities"`
	ExtendedEntities struct {
		Media []tweetMedia `json:"media"`
	} `json:"extended_entities"`
}

type twitterImporter struct{}

func (twitterImporter) Source() sources.Type { return sources.Twitter }

func (twitterImporter) Parse(ctx context.Context, logger *slog.Logger, loc sources.Location, archiveRoot string) ([]*store.Entry, ParseStats, error) {
	var entries []*store.Entry
	var stats ParseStats

	for _, manifest := range loc.ManifestFiles {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		data, err := os.ReadFile(manifest)
		if err != nil {
			logger.Warn("skipping unreadable manifest", "manifest", manifest, "error", err)
			stats.ParseErrors++
			continue
		}

		records, err := splitRecords(stripJSWrapper(data))
		if err != nil {
			logger.Warn("skipping malformed manifest", "manifest", manifest, "error", err)
			stats.ParseErrors++
			continue
		}

		for _, raw := range records {
			stats.Records++

			tweet, err := decodeTweet(raw)
			if err != nil {
				logger.Warn("skipping malformed tweet record", "manifest", manifest, "error", err)
				stats.ParseErrors++
				continue
			}
			id := tweet.IDStr
			if id == "" {
				id = tweet.ID
			}
			if id == "" {
				logger.Warn("skipping tweet without id", "manifest", manifest)
				stats.ParseErrors++
				continue
			}

			body := tweet.FullText
			if body == "" {
				body = tweet.Text
			}
			entry := &store.Entry{
				Source:   sources.Twitter,
				SourceID: id,
				Body:     cleanText(body),
			}
			entry.Timestamp, entry.TimestampFlag = resolveTimestamp(0, tweet.CreatedAt)
			if entry.TimestampFlag == store.TimestampMissing {
				stats.MissingTime++
			}

			if tweet.Coordinates != nil && len(tweet.Coordinates.Coordinates) == 2 {
				lng, lat := tweet.Coordinates.Coordinates[0], tweet.Coordinates.Coordinates[1]
				entry.Latitude, entry.Longitude = &lat, &lng
			} else if len(tweet.Geo.Coordinates) == 2 {
				lat, lng := tweet.Geo.Coordinates[0], tweet.Geo.Coordinates[1]
				entry.Latitude, entry.Longitude = &lat, &lng
			}

			media := tweet.ExtendedEntities.Media
			if len(media) == 0 {
				media = tweet.Entities.Media
			}
			for _, m := range media {
				if url := m.url(); url != "" {
					entry.Media = append(entry.Media, resolveTweetMedia(id, url, loc.BasePath, archiveRoot, &stats))
				}
			}

			entries = append(entries, entry)
		}
	}

	return entries, stats, nil
}

// decodeTweet handles both archive generations: records wrapped in a "tweet"
// envelope and bare tweet objects.
func decodeTweet(raw json.RawMessage) (tweetRecord, error) {
	var envelope struct {
		Tweet json.RawMessage `json:"tweet"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Tweet) > 0 {
		raw = envelope.Tweet
	}

	var tweet tweetRecord
	err := json.Unmarshal(raw, &tweet)
	return tweet, err
}

// stripJSWrapper removes the "window.YTD.tweets.part0 = " assignment that
// newer archives prepend to make the file loadable as a script.
func stripJSWrapper(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("window.")) {
		return data
	}
	if idx := bytes.IndexByte(trimmed, '='); idx >= 0 {
		return trimmed[idx+1:]
	}
	return data
}

// resolveTweetMedia maps a tweet media URL to the archive's local copy.
// Archives store attachments under tweets_media as "<tweet id>-<basename>",
// so that form is tried before the raw URL basename.
func resolveTweetMedia(tweetID, url, manifestDir, archiveRoot string, stats *ParseStats) store.MediaRef {
	ref := store.MediaRef{OriginalURI: url}

	base := path.Base(url)
	if idx := strings.IndexByte(base, '?'); idx > 0 {
		base = base[:idx]
	}

	var miss *pathresolve.Unresolved
	for _, candidate := range []string{tweetID + "-" + base, url} {
		resolved, m := pathresolve.Resolve(candidate, manifestDir, archiveRoot)
		if m == nil {
			ref.ResolvedPath = resolved
			if mtype, err := mimetype.DetectFile(resolved); err == nil {
				ref.MimeType = mtype.String()
			}
			stats.MediaResolved++
			return ref
		}
		miss = m
	}

	ref.UnresolvedReason = miss.Reason
	stats.MediaUnresolved++
	return ref
}
