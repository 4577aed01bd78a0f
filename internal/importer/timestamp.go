package importer

import (
	"time"

	"chronicle/internal/store"
)

// Textual layouts tried in order when a source carries no numeric timestamp.
// Twitter's legacy created_at format comes first since it is the most common
// textual form in the wild.
var textualLayouts = []string{
	"Mon Jan 02 15:04:05 -0700 2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// timeFromEpoch converts a source epoch value to UTC. Values large enough to
// only make sense as milliseconds are scaled down.
func timeFromEpoch(epoch int64) time.Time {
	if epoch > 1e12 {
		return time.UnixMilli(epoch).UTC()
	}
	return time.Unix(epoch, 0).UTC()
}

// resolveTimestamp applies the normalization policy: a positive numeric epoch
// wins, then textual layouts in order. A record with no parseable timestamp
// is kept and flagged rather than stamped with the current time.
func resolveTimestamp(epoch int64, textual string) (*time.Time, store.TimestampFlag) {
	if epoch > 0 {
		t := timeFromEpoch(epoch)
		return &t, store.TimestampResolved
	}
	if textual != "" {
		for _, layout := range textualLayouts {
			if t, err := time.Parse(layout, textual); err == nil {
				utc := t.UTC()
				return &utc, store.TimestampResolved
			}
		}
	}
	return nil, store.TimestampMissing
}
