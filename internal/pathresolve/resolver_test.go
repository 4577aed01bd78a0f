package pathresolve_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chronicle/internal/pathresolve"
)

func touch(t *testing.T, parts ...string) string {
	t.Helper()
	path := filepath.Join(parts...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestResolveRootRelative(t *testing.T) {
	root := t.TempDir()
	want := touch(t, root, "media", "posts", "a.jpg")

	got, unresolved := pathresolve.Resolve("media/posts/a.jpg", root, root)
	if unresolved != nil {
		t.Fatalf("unexpected unresolved: %+v", unresolved)
	}
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestResolveLegacyPrefixStripped(t *testing.T) {
	root := t.TempDir()
	want := touch(t, root, "posts", "media", "x.jpg")

	got, unresolved := pathresolve.Resolve("legacy/posts/media/x.jpg", filepath.Join(root, "content"), root)
	if unresolved != nil {
		t.Fatalf("unexpected unresolved: %+v", unresolved)
	}
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestResolveConventionalSubdir(t *testing.T) {
	root := t.TempDir()
	manifestDir := filepath.Join(root, "data")
	want := touch(t, manifestDir, "tweets_media", "12345-photo.jpg")

	got, unresolved := pathresolve.Resolve("missing/dir/12345-photo.jpg", manifestDir, root)
	if unresolved != nil {
		t.Fatalf("unexpected unresolved: %+v", unresolved)
	}
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestResolveRecursiveBasename(t *testing.T) {
	root := t.TempDir()
	manifestDir := filepath.Join(root, "content")
	want := touch(t, manifestDir, "201801", "deep", "nested", "b.jpg")

	got, unresolved := pathresolve.Resolve("somewhere/else/b.jpg", manifestDir, root)
	if unresolved != nil {
		t.Fatalf("unexpected unresolved: %+v", unresolved)
	}
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestResolveRemoteURLByBasename(t *testing.T) {
	root := t.TempDir()
	manifestDir := filepath.Join(root, "data")
	want := touch(t, manifestDir, "media", "c.jpg")

	got, unresolved := pathresolve.Resolve("https://cdn.example.com/media/c.jpg?size=large", manifestDir, root)
	if unresolved != nil {
		t.Fatalf("unexpected unresolved: %+v", unresolved)
	}
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestResolveMissRecordsStrategies(t *testing.T) {
	root := t.TempDir()
	got, unresolved := pathresolve.Resolve("media/ghost.jpg", root, root)
	if got != "" || unresolved == nil {
		t.Fatalf("expected unresolved, got path %q", got)
	}
	if unresolved.Reason == "" {
		t.Fatal("unresolved reason must be non-empty")
	}
	if len(unresolved.Attempted) == 0 {
		t.Fatal("expected attempted strategies to be recorded")
	}
	joined := strings.Join(unresolved.Attempted, "\n")
	for _, strategy := range []string{"root-relative", "prefix-stripped", "conventional-subdir", "recursive-search"} {
		if !strings.Contains(joined, strategy) {
			t.Fatalf("expected %s in attempted list:\n%s", strategy, joined)
		}
	}
}

func TestResolveNeverResolvesEscapingURI(t *testing.T) {
	root := t.TempDir()
	got, unresolved := pathresolve.Resolve("../../etc/passwd", root, root)
	if got != "" || unresolved == nil {
		t.Fatalf("expected traversal to be rejected, got %q", got)
	}
}

func TestResolveEmptyURI(t *testing.T) {
	got, unresolved := pathresolve.Resolve("  ", "", "")
	if got != "" || unresolved == nil || unresolved.Reason == "" {
		t.Fatal("expected structured unresolved for empty URI")
	}
}
