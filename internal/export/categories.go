package export

import (
	"strings"

	"chronicle/internal/sources"
	"chronicle/internal/store"
)

// Category names one exported artifact.
type Category string

const (
	CategoryPhotos        Category = "photos"
	CategoryPosts         Category = "posts"
	CategoryCheckins      Category = "checkins"
	CategoryVideos        Category = "videos"
	CategoryUncategorized Category = "uncategorized"
)

// AllCategories returns every category in artifact order. Every run writes
// all of them, empty or not.
func AllCategories() []Category {
	return []Category{
		CategoryPhotos,
		CategoryPosts,
		CategoryCheckins,
		CategoryVideos,
		CategoryUncategorized,
	}
}

// sourceCategories is the authoritative mapping for known source types.
// Heuristics only apply to sources missing from this table.
var sourceCategories = map[sources.Type]Category{
	sources.Instagram: CategoryPhotos,
	sources.Twitter:   CategoryPosts,
	sources.Swarm:     CategoryCheckins,
}

// Categorize assigns an entry to exactly one category. The source map wins;
// entries from unmapped sources fall through content heuristics and land in
// uncategorized only when nothing matches.
func Categorize(entry *store.Entry) Category {
	if category, ok := sourceCategories[entry.Source]; ok {
		return category
	}

	hasVideo := false
	hasMedia := false
	for _, ref := range entry.Media {
		if !ref.Resolved() {
			continue
		}
		hasMedia = true
		if strings.HasPrefix(ref.MimeType, "video/") {
			hasVideo = true
		}
	}
	switch {
	case hasVideo:
		return CategoryVideos
	case hasMedia:
		return CategoryPhotos
	case entry.HasCoordinate():
		return CategoryCheckins
	case entry.Body != "" || entry.Title != "":
		return CategoryPosts
	default:
		return CategoryUncategorized
	}
}
