package processor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/jaym/datamaker/media"
	"github.com/jaym/datamaker/metadata"
	"github.com/jaym/datamaker/searchindex"
	"github.com/jaym/datamaker/subtitles"
)

// fakeResolver returns canned cues per episode directory name and panics for
// files whose name contains "panic".
type fakeResolver struct {
	mu    sync.Mutex
	cues  map[string][]subtitles.Cue
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, file media.File) ([]subtitles.Cue, string) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if strings.Contains(file.Path, "panic") {
		panic("corrupt container")
	}
	cues, ok := f.cues[file.Episode.Dir()]
	if !ok {
		return nil, ""
	}
	return cues, "fake"
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
}

type fixture struct {
	source, target string
	resolver       *fakeResolver
	runner         *fakeRunner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	return &fixture{
		source:   filepath.Join(root, "data"),
		target:   filepath.Join(root, "out"),
		resolver: &fakeResolver{cues: map[string][]subtitles.Cue{}},
		runner:   &fakeRunner{},
	}
}

func (f *fixture) run(t *testing.T, catalog bool) *Summary {
	t.Helper()
	p := NewPreprocessor(PreprocessorConfig{
		SourceDir:   f.source,
		TargetDir:   f.target,
		Concurrency: 2,
		Catalog:     catalog,
	}, f.resolver, NewFrameExtractor(FrameExtractorConfig{Runner: f.runner}), searchindex.New())
	summary, err := p.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return summary
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestProcessDirectoryLayout(t *testing.T) {
	f := newFixture(t)
	touch(t, filepath.Join(f.source, "Show S02E05.mkv"))
	f.resolver.cues["2x05"] = []subtitles.Cue{
		{Start: 62345 * time.Millisecond, Text: "<i>Hello</i>"},
		{Start: subtitles.NoTimestamp, Text: "dropped"},
	}

	summary := f.run(t, false)

	if got := summary.Count(StateDone); got != 1 {
		t.Fatalf("expected one finished file, got %d (%+v)", got, summary.Files)
	}
	got := listDir(t, filepath.Join(f.target, "2x05"))
	want := []string{"62345_still.png", "62345_thumbnail.png"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("episode directory = %v, want %v", got, want)
	}
	if _, err := os.Stat(filepath.Join(f.target, IndexFilename)); err != nil {
		t.Fatalf("index not written: %v", err)
	}
	if summary.Records != 1 {
		t.Fatalf("expected one indexed record, got %d", summary.Records)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	f := newFixture(t)
	touch(t, filepath.Join(f.source, "s1", "Show.S01E01.mkv"))
	f.resolver.cues["1x01"] = []subtitles.Cue{
		{Start: time.Second, Text: "one"},
		{Start: 2 * time.Second, Text: "two"},
	}

	first := f.run(t, false)
	if first.Files[0].ImagesCreated != 4 {
		t.Fatalf("expected 4 images on the first run, got %+v", first.Files[0])
	}
	calls := f.runner.Calls()

	second := f.run(t, false)
	if f.runner.Calls() != calls {
		t.Fatalf("second run spawned ffmpeg %d times", f.runner.Calls()-calls)
	}
	if second.Files[0].ImagesSkipped != 4 || second.Files[0].ImagesCreated != 0 {
		t.Fatalf("unexpected second run result %+v", second.Files[0])
	}
}

func TestProcessSkipsFilesWithoutEpisode(t *testing.T) {
	f := newFixture(t)
	touch(t, filepath.Join(f.source, "random.mkv"))
	touch(t, filepath.Join(f.source, "Show S01E01.mkv"))

	summary := f.run(t, false)

	if summary.Skipped() != 1 {
		t.Fatalf("expected one skipped file, got %d", summary.Skipped())
	}
	if len(summary.Failed()) != 0 {
		t.Fatalf("unexpected failures %+v", summary.Failed())
	}
	if f.resolver.calls != 1 {
		t.Fatalf("resolver called %d times, want 1", f.resolver.calls)
	}
}

func TestProcessIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	touch(t, filepath.Join(f.source, "panic S01E01.mkv"))
	touch(t, filepath.Join(f.source, "broken S01E02.mkv"))
	touch(t, filepath.Join(f.source, "good S01E03.mkv"))
	f.resolver.cues["1x02"] = []subtitles.Cue{{Start: time.Second, Text: "a"}, {Start: 2 * time.Second, Text: "b"}}
	f.resolver.cues["1x03"] = []subtitles.Cue{{Start: time.Second, Text: "c"}}
	f.runner.fail = "broken"

	summary := f.run(t, false)

	failed := summary.Failed()
	if len(failed) != 1 || !strings.Contains(failed[0].Path, "panic") {
		t.Fatalf("expected only the panicking file to fail, got %+v", failed)
	}
	if summary.Count(StateDone) != 2 {
		t.Fatalf("expected two finished files, got %+v", summary.Files)
	}
	if summary.ImageErrors() != 4 {
		t.Fatalf("expected 4 failed frames, got %d", summary.ImageErrors())
	}
	// Cues whose frames failed are still searchable.
	if summary.Records != 3 {
		t.Fatalf("expected 3 records, got %d", summary.Records)
	}
	if got := listDir(t, filepath.Join(f.target, "1x03")); len(got) != 2 {
		t.Fatalf("good episode images = %v", got)
	}
}

func TestProcessWritesIndexWithoutCues(t *testing.T) {
	f := newFixture(t)
	touch(t, filepath.Join(f.source, "Show S01E01.mkv"))

	summary := f.run(t, false)

	if summary.Files[0].State != StateDone || summary.Files[0].Source != "" {
		t.Fatalf("unexpected result %+v", summary.Files[0])
	}
	data, err := os.ReadFile(summary.IndexPath)
	if err != nil {
		t.Fatal(err)
	}
	var idx struct {
		DocumentCount int `json:"documentCount"`
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		t.Fatal(err)
	}
	if idx.DocumentCount != 0 {
		t.Fatalf("expected an empty index, got %d documents", idx.DocumentCount)
	}
}

func TestProcessIgnoresTargetInsideSource(t *testing.T) {
	f := newFixture(t)
	f.target = filepath.Join(f.source, "out")
	touch(t, filepath.Join(f.source, "Show S01E01.mkv"))
	touch(t, filepath.Join(f.target, "S09E09 leftover.mkv"))

	summary := f.run(t, false)

	if len(summary.Files) != 1 {
		t.Fatalf("expected only the source file, got %+v", summary.Files)
	}
}

func TestProcessRefusesLockedTarget(t *testing.T) {
	f := newFixture(t)
	if err := os.MkdirAll(f.target, 0o755); err != nil {
		t.Fatal(err)
	}
	other := flock.New(filepath.Join(f.target, LockFilename))
	if ok, err := other.TryLock(); !ok || err != nil {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer other.Unlock() // nolint: errcheck

	p := NewPreprocessor(PreprocessorConfig{SourceDir: f.source, TargetDir: f.target}, f.resolver, NewFrameExtractor(FrameExtractorConfig{Runner: f.runner}), nil)
	if _, err := p.Process(context.Background()); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestProcessMissingSource(t *testing.T) {
	f := newFixture(t)
	p := NewPreprocessor(PreprocessorConfig{SourceDir: f.source, TargetDir: f.target}, f.resolver, NewFrameExtractor(FrameExtractorConfig{Runner: f.runner}), nil)
	if _, err := p.Process(context.Background()); err == nil {
		t.Fatal("expected an error for a missing source directory")
	}
}

func TestProcessWritesCatalog(t *testing.T) {
	f := newFixture(t)
	touch(t, filepath.Join(f.source, "Show S01E02.mkv"))
	f.resolver.cues["1x02"] = []subtitles.Cue{
		{Start: time.Second, Text: "<i>Hello</i> there"},
		{Start: 3 * time.Second, Text: "General Kenobi"},
	}

	summary := f.run(t, true)
	if summary.CatalogErr != nil {
		t.Fatalf("catalog: %v", summary.CatalogErr)
	}

	db, err := metadata.OpenDatabase(summary.CatalogPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	results, err := db.Search(context.Background(), "hello", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one hit, got %+v", results)
	}
	hit := results[0]
	if hit.Season != 1 || hit.Episode != 2 || hit.Start != 1000 || hit.HTML != "<i>Hello</i> there" {
		t.Fatalf("unexpected hit %+v", hit)
	}
	if hit.StillKey != "1x02/1000_still.png" || hit.ThumbnailKey != "1x02/1000_thumbnail.png" {
		t.Fatalf("unexpected image keys %+v", hit)
	}
}
