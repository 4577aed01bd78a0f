package sources

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// ErrLayoutNotFound indicates no known directory layout for a source type was
// present under the archive root. Callers skip the source and continue.
var ErrLayoutNotFound = errors.New("archive layout not detected")

// Location is the result of a successful layout probe.
type Location struct {
	Source        Type
	BasePath      string
	ManifestFiles []string
}

// probe is one candidate relative directory for a source's manifests. Probes
// run in order and the first directory containing a glob match wins, so keep
// the most specific (newest) convention first. Supporting a new export layout
// means appending a probe here, nothing else.
type probe struct {
	name string
	dir  string
}

var layoutProbes = map[Type][]probe{
	Instagram: {
		{name: "full export", dir: "your_instagram_activity/content"},
		{name: "legacy export", dir: "content"},
		{name: "flattened export", dir: "media"},
		{name: "root fallback", dir: "."},
	},
	Twitter: {
		{name: "full export", dir: "data"},
		{name: "legacy export", dir: "tweets"},
		{name: "root fallback", dir: "."},
	},
	Swarm: {
		{name: "full export", dir: "checkins"},
		{name: "legacy export", dir: "data"},
		{name: "root fallback", dir: "."},
	},
}

var manifestGlobs = map[Type]string{
	Instagram: "posts_*.json",
	Twitter:   "tweet*.js",
	Swarm:     "checkins*.json",
}

// Locate probes the archive root for a source type's manifest files. It tries
// each known layout convention in order and returns the first directory with
// at least one manifest match. Every candidate tried is logged so unexpected
// layouts can be diagnosed from a debug run.
func Locate(logger *slog.Logger, archiveRoot string, source Type) (Location, error) {
	probes, ok := layoutProbes[source]
	if !ok {
		return Location{}, fmt.Errorf("no layout probes registered for source %q", source)
	}
	glob := manifestGlobs[source]

	for _, p := range probes {
		candidate := filepath.Join(archiveRoot, p.dir)
		logger.Debug("probing layout candidate",
			"source", string(source), "layout", p.name, "dir", candidate)

		info, err := os.Stat(candidate)
		if err != nil || !info.IsDir() {
			continue
		}

		matches, err := filepath.Glob(filepath.Join(candidate, glob))
		if err != nil || len(matches) == 0 {
			continue
		}
		sort.Strings(matches)

		logger.Debug("layout detected",
			"source", string(source), "layout", p.name, "manifests", len(matches))
		return Location{Source: source, BasePath: candidate, ManifestFiles: matches}, nil
	}

	return Location{}, fmt.Errorf("%w: source %s under %s", ErrLayoutNotFound, source, archiveRoot)
}
