package media

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"Show S01E01.mkv",
		"Show S01E01.srt",
		"Season 02/Show S02E01.mp4",
		"Season 02/Show S02E01.en.vtt",
		".hidden/Show S03E01.mkv",
		".DS_Store",
		"notes.txt",
	} {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := Discover(root, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	sort.Strings(files)

	wanted := []string{
		filepath.Join(root, "Season 02/Show S02E01.mp4"),
		filepath.Join(root, "Show S01E01.mkv"),
		filepath.Join(root, "notes.txt"),
	}
	if len(files) != len(wanted) {
		t.Fatalf("wanted %v, got %v", wanted, files)
	}
	for i := range wanted {
		if files[i] != wanted[i] {
			t.Fatalf("wanted %v, got %v", wanted, files)
		}
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestIsMatroska(t *testing.T) {
	if !IsMatroska("a/b/Show S01E01.MKV") {
		t.Fatal("expected .MKV to be matroska")
	}
	if IsMatroska("Show S01E01.mp4") {
		t.Fatal("expected .mp4 not to be matroska")
	}
}

func TestSubtitleTracksRejectsNonMatroska(t *testing.T) {
	p := filepath.Join(t.TempDir(), "garbage.mkv")
	if err := os.WriteFile(p, []byte("definitely not ebml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := SubtitleTracks(p); err == nil {
		t.Fatal("expected error probing a non-matroska file")
	}
}
