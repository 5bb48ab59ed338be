package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeRunner pretends to be ffmpeg: it writes a few bytes to the output
// argument of frame extractions and records every invocation.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	// fail makes every invocation whose args contain this string fail.
	fail string
	// noOutput makes extractions succeed without writing a frame.
	noOutput bool
	stdout   []byte
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if f.fail != "" && strings.Contains(strings.Join(args, " "), f.fail) {
		return nil, &CommandError{Name: name, Args: args, Err: errors.New("exit status 1"), Stderr: "Invalid data found"}
	}
	if f.noOutput {
		return f.stdout, nil
	}
	for _, arg := range args {
		if strings.Contains(filepath.Base(arg), ".part.") {
			if err := os.WriteFile(arg, []byte("frame"), 0o644); err != nil {
				return nil, err
			}
		}
	}
	return f.stdout, nil
}

func (f *fakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestEnsureImageCreatesOnce(t *testing.T) {
	runner := &fakeRunner{}
	fe := NewFrameExtractor(FrameExtractorConfig{Runner: runner})
	dest := filepath.Join(t.TempDir(), "62345_still.png")

	created, err := fe.EnsureImage(context.Background(), "ep.mkv", 62345*time.Millisecond, dest, StillWidth)
	if err != nil || !created {
		t.Fatalf("first EnsureImage = %v, %v", created, err)
	}
	created, err = fe.EnsureImage(context.Background(), "ep.mkv", 62345*time.Millisecond, dest, StillWidth)
	if err != nil || created {
		t.Fatalf("second EnsureImage = %v, %v", created, err)
	}
	if runner.Calls() != 1 {
		t.Fatalf("expected a single ffmpeg run, got %d", runner.Calls())
	}

	args := strings.Join(runner.calls[0], " ")
	for _, want := range []string{"ffmpeg", "-ss 62", "-i ep.mkv", "-frames:v 1", "scale=720:-1"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(dest))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "62345_still.png" {
		t.Fatalf("unexpected directory contents %v", entries)
	}
}

func TestEnsureImageFailureLeavesNothing(t *testing.T) {
	runner := &fakeRunner{fail: "ep.mkv"}
	fe := NewFrameExtractor(FrameExtractorConfig{Runner: runner})
	dir := t.TempDir()
	dest := filepath.Join(dir, "1000_thumbnail.png")

	_, err := fe.EnsureImage(context.Background(), "ep.mkv", time.Second, dest, ThumbnailWidth)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected a CommandError, got %v", err)
	}
	if !strings.Contains(cmdErr.VerboseError(), "Invalid data found") {
		t.Fatalf("verbose error lacks stderr: %s", cmdErr.VerboseError())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files after a failed extraction, got %v", entries)
	}
}

func TestEnsureImagePastEndOfStream(t *testing.T) {
	fe := NewFrameExtractor(FrameExtractorConfig{Runner: &fakeRunner{noOutput: true}})
	dest := filepath.Join(t.TempDir(), "9999999_still.png")

	_, err := fe.EnsureImage(context.Background(), "ep.mkv", 9999999*time.Millisecond, dest, StillWidth)
	if !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}
}

func TestPartPattern(t *testing.T) {
	got := partPattern(filepath.Join("out", "1x02", "1000_still.png"))
	if want := ".1000_still.*.part.png"; got != want {
		t.Fatalf("partPattern = %q, want %q", got, want)
	}
}

// gatedRunner holds every extraction until n of them are running.
type gatedRunner struct {
	fakeRunner
	n       int
	arrived chan struct{}
	release chan struct{}
}

func (g *gatedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	g.arrived <- struct{}{}
	<-g.release
	return g.fakeRunner.Run(ctx, name, args...)
}

func TestEnsureImageConcurrentSameFrame(t *testing.T) {
	runner := &gatedRunner{n: 2, arrived: make(chan struct{}, 2), release: make(chan struct{})}
	fe := NewFrameExtractor(FrameExtractorConfig{Runner: runner})
	dir := t.TempDir()
	dest := filepath.Join(dir, "1000_still.png")

	errs := make(chan error, runner.n)
	for _, src := range []string{"S01E02.mkv", "S01E02.avi"} {
		go func() {
			_, err := fe.EnsureImage(context.Background(), src, time.Second, dest, StillWidth)
			errs <- err
		}()
	}
	for i := 0; i < runner.n; i++ {
		<-runner.arrived
	}
	close(runner.release)
	for i := 0; i < runner.n; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("EnsureImage: %v", err)
		}
	}

	outputs := map[string]bool{}
	for _, call := range runner.calls {
		for _, arg := range call {
			if strings.Contains(filepath.Base(arg), ".part.") {
				outputs[arg] = true
			}
		}
	}
	if len(outputs) != runner.n {
		t.Fatalf("extractions shared a temporary file: %v", outputs)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "1000_still.png" {
		t.Fatalf("unexpected directory contents %v", entries)
	}
}

func TestImageName(t *testing.T) {
	if got := ImageName(62345, Thumbnail, "jpg"); got != "62345_thumbnail.jpg" {
		t.Fatalf("ImageName = %q", got)
	}
}

func TestSubtitleArgs(t *testing.T) {
	runner := &fakeRunner{noOutput: true, stdout: []byte("1\n00:00:01,000 --> 00:00:02,000\nhi\n")}
	se := NewSubtitleExtractor(SubtitleExtractorConfig{FFmpegPath: "/opt/ffmpeg", Runner: runner})

	out, err := se.DemuxSubtitles(context.Background(), "ep.mkv")
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(runner.stdout) {
		t.Fatalf("unexpected output %q", out)
	}
	args := strings.Join(runner.calls[0], " ")
	for _, want := range []string{"/opt/ffmpeg", "-i ep.mkv", "-map 0:s:0", "-f srt", "pipe:1"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}
