package importer

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"chronicle/internal/pathresolve"
	"chronicle/internal/store"
)

// resolveMediaRef maps one manifest media URI to a MediaRef, sniffing the MIME
// type from file content when the path resolves. A miss produces a ref that
// records the reason and every strategy tried.
func resolveMediaRef(uri, manifestDir, archiveRoot string, stats *ParseStats) store.MediaRef {
	ref := store.MediaRef{OriginalURI: uri}

	path, miss := pathresolve.Resolve(uri, manifestDir, archiveRoot)
	if miss != nil {
		ref.UnresolvedReason = miss.Reason
		if len(miss.Attempted) > 0 {
			ref.UnresolvedReason += " (tried " + strings.Join(miss.Attempted, "; ") + ")"
		}
		stats.MediaUnresolved++
		return ref
	}

	ref.ResolvedPath = path
	if mtype, err := mimetype.DetectFile(path); err == nil {
		ref.MimeType = mtype.String()
	}
	stats.MediaResolved++
	return ref
}
