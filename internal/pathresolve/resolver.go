package pathresolve

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Unresolved explains why a media URI could not be mapped to a local file.
// Attempted lists every strategy tried, in order, for diagnosis.
type Unresolved struct {
	Reason    string
	Attempted []string
}

// legacyPrefixes are path prefixes older export formats put in front of media
// URIs even though the files live directly under the archive root.
var legacyPrefixes = []string{
	"legacy/",
	"data/",
	"media/",
	"photos_and_videos/",
	"your_instagram_activity/",
}

// mediaSubdirs are conventional media directories found next to manifests.
var mediaSubdirs = []string{
	"media",
	"photos",
	"attachments",
	"tweets_media",
}

const (
	searchMaxDepth   = 6
	searchMaxEntries = 4000
)

// Resolve maps a manifest media URI to an existing local file. Strategies run
// in order and the first hit wins:
//
//  1. the URI as-is, relative to the archive root
//  2. the URI with each known legacy prefix stripped, relative to the root
//  3. the URI's basename in conventional media subdirectories of the
//     manifest directory
//  4. a bounded recursive basename search under the manifest directory
//
// Resolve is pure apart from filesystem reads and never fails the caller: a
// miss returns a non-nil Unresolved with every attempted strategy recorded.
func Resolve(mediaURI, manifestDir, archiveRoot string) (string, *Unresolved) {
	uri := strings.TrimSpace(mediaURI)
	if uri == "" {
		return "", &Unresolved{Reason: "empty media URI"}
	}

	var attempted []string

	// Remote URLs can only be matched by basename.
	remote := strings.Contains(uri, "://")
	if !remote {
		cleaned := filepath.Clean(filepath.FromSlash(uri))
		if strings.HasPrefix(cleaned, "..") {
			return "", &Unresolved{Reason: fmt.Sprintf("media URI %q escapes the archive root", uri)}
		}

		candidate := filepath.Join(archiveRoot, cleaned)
		attempted = append(attempted, "root-relative: "+candidate)
		if fileExists(candidate) {
			return candidate, nil
		}

		for _, prefix := range legacyPrefixes {
			if !strings.HasPrefix(uri, prefix) {
				continue
			}
			stripped := filepath.Join(archiveRoot, filepath.FromSlash(strings.TrimPrefix(uri, prefix)))
			attempted = append(attempted, "prefix-stripped("+prefix+"): "+stripped)
			if fileExists(stripped) {
				return stripped, nil
			}
		}
	}

	base := filepath.Base(filepath.FromSlash(uri))
	if remote {
		// Drop query strings from URL basenames.
		if idx := strings.IndexByte(base, '?'); idx > 0 {
			base = base[:idx]
		}
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		attempted = append(attempted, "basename: none")
		return "", &Unresolved{Reason: fmt.Sprintf("media URI %q has no usable basename", uri), Attempted: attempted}
	}

	for _, sub := range mediaSubdirs {
		candidate := filepath.Join(manifestDir, sub, base)
		attempted = append(attempted, "conventional-subdir: "+candidate)
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	attempted = append(attempted, fmt.Sprintf("recursive-search: %s (depth<=%d, entries<=%d)", manifestDir, searchMaxDepth, searchMaxEntries))
	if found := searchByBasename(manifestDir, base); found != "" {
		return found, nil
	}

	return "", &Unresolved{
		Reason:    fmt.Sprintf("media %q not found under archive", uri),
		Attempted: attempted,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// searchByBasename walks dir looking for a file named base, bounded by depth
// and total entries visited so a huge archive cannot stall an import.
func searchByBasename(dir, base string) string {
	var found string
	visited := 0
	rootDepth := strings.Count(filepath.Clean(dir), string(filepath.Separator))

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		visited++
		if visited > searchMaxEntries {
			return fs.SkipAll
		}
		depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
		if d.IsDir() {
			if depth >= searchMaxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() == base {
			found = path
			return fs.SkipAll
		}
		return nil
	})

	return found
}
