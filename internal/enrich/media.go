package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"

	"chronicle/internal/services"
	"chronicle/internal/store"
)

// maxCaptionBytes bounds what gets shipped to the vision API inline.
const maxCaptionBytes = 8 << 20

// Captioner produces a short description of an image. Satisfied by
// vision.Client; nil disables captioning.
type Captioner interface {
	CaptionImage(ctx context.Context, image []byte, mimeType string) (string, error)
}

// mediaInfo is the per-file payload recorded for one resolved reference.
type mediaInfo struct {
	Path        string `json:"path"`
	MimeType    string `json:"mime_type,omitempty"`
	Bytes       int64  `json:"bytes"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	TakenAt     string `json:"taken_at,omitempty"`
	CameraModel string `json:"camera_model,omitempty"`
	Caption     string `json:"caption,omitempty"`
	Error       string `json:"error,omitempty"`
}

// MediaEnricher extracts technical metadata from resolved media files: size,
// sniffed MIME type, image dimensions, and EXIF capture details. When a
// captioner is configured the first image also gets a description. Entries
// with no resolved media are skipped, not failed.
type MediaEnricher struct {
	captioner Captioner
	logger    *slog.Logger
}

// NewMediaEnricher constructs a media enricher. captioner may be nil.
func NewMediaEnricher(captioner Captioner, logger *slog.Logger) *MediaEnricher {
	return &MediaEnricher{
		captioner: captioner,
		logger:    logger.With("component", "enrich.media"),
	}
}

func (m *MediaEnricher) Kind() store.EnrichmentKind { return store.KindMedia }

// InputHash covers the resolved paths and their sizes, so a re-resolved or
// replaced file triggers re-enrichment while untouched files do not.
func (m *MediaEnricher) InputHash(entry *store.Entry) string {
	h := sha256.New()
	for _, ref := range entry.Media {
		if !ref.Resolved() {
			continue
		}
		io.WriteString(h, ref.ResolvedPath)
		if info, err := os.Stat(ref.ResolvedPath); err == nil {
			fmt.Fprintf(h, ":%d", info.Size())
		}
		io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (m *MediaEnricher) Enrich(ctx context.Context, entry *store.Entry) (Outcome, error) {
	var resolved []store.MediaRef
	for _, ref := range entry.Media {
		if ref.Resolved() {
			resolved = append(resolved, ref)
		}
	}
	if len(resolved) == 0 {
		return Outcome{Status: store.EnrichmentSkipped}, nil
	}

	infos := make([]mediaInfo, 0, len(resolved))
	captioned := false
	var firstErr error
	for _, ref := range resolved {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		info, err := m.inspect(ctx, ref, !captioned)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			info.Error = err.Error()
		}
		if info.Caption != "" {
			captioned = true
		}
		infos = append(infos, info)
	}

	// All files unreadable means nothing was enriched.
	if firstErr != nil && len(infos) == countErrored(infos) {
		return Outcome{}, firstErr
	}

	encoded, err := json.Marshal(infos)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrPermanent, "enrich", "media encode", "", err)
	}
	return Outcome{Status: store.EnrichmentEnriched, PayloadJSON: string(encoded)}, nil
}

func (m *MediaEnricher) inspect(ctx context.Context, ref store.MediaRef, wantCaption bool) (mediaInfo, error) {
	info := mediaInfo{Path: ref.ResolvedPath, MimeType: ref.MimeType}

	stat, err := os.Stat(ref.ResolvedPath)
	if err != nil {
		return info, services.Wrap(services.ErrPermanent, "enrich", "media stat", ref.ResolvedPath, err)
	}
	info.Bytes = stat.Size()

	if info.MimeType == "" {
		if mtype, err := mimetype.DetectFile(ref.ResolvedPath); err == nil {
			info.MimeType = mtype.String()
		}
	}
	if !strings.HasPrefix(info.MimeType, "image/") {
		return info, nil
	}

	if file, err := os.Open(ref.ResolvedPath); err == nil {
		if cfg, _, err := image.DecodeConfig(file); err == nil {
			info.Width, info.Height = cfg.Width, cfg.Height
		}
		file.Close()
	}

	if info.MimeType == "image/jpeg" {
		m.readExif(ref.ResolvedPath, &info)
	}

	if wantCaption && m.captioner != nil && info.Bytes <= maxCaptionBytes {
		data, err := os.ReadFile(ref.ResolvedPath)
		if err == nil {
			caption, err := m.captioner.CaptionImage(ctx, data, info.MimeType)
			if err != nil {
				// Captions are best-effort extras; the metadata still counts.
				m.logger.Warn("captioning failed", "path", ref.ResolvedPath, "error", err)
			} else {
				info.Caption = caption
			}
		}
	}

	return info, nil
}

func (m *MediaEnricher) readExif(path string, info *mediaInfo) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	meta, err := exif.Decode(file)
	if err != nil {
		return
	}
	if taken, err := meta.DateTime(); err == nil {
		info.TakenAt = taken.UTC().Format(time.RFC3339)
	}
	if tag, err := meta.Get(exif.Model); err == nil {
		if model, err := tag.StringVal(); err == nil {
			info.CameraModel = strings.TrimSpace(model)
		}
	}
}

func countErrored(infos []mediaInfo) int {
	n := 0
	for _, info := range infos {
		if info.Error != "" {
			n++
		}
	}
	return n
}
