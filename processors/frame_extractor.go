package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ffmpeg_go "github.com/u2takey/ffmpeg-go"

	"github.com/jaym/datamaker/fileutil"
)

const (
	StillWidth      = 720
	ThumbnailWidth  = 180
	DefaultImageExt = "png"
)

// ImageKind names one of the images made for every cue.
type ImageKind string

const (
	Still     ImageKind = "still"
	Thumbnail ImageKind = "thumbnail"
)

// ImageVariant is an image kind and the width it is scaled to.
type ImageVariant struct {
	Kind  ImageKind
	Width int
}

// ImageVariants are produced for every cue, in this order.
var ImageVariants = []ImageVariant{
	{Kind: Still, Width: StillWidth},
	{Kind: Thumbnail, Width: ThumbnailWidth},
}

// ImageName is the file name of a cue image inside its episode directory,
// e.g. "62345_still.png".
func ImageName(startMillis int64, kind ImageKind, ext string) string {
	return fmt.Sprintf("%d_%s.%s", startMillis, kind, ext)
}

var ErrNoFrame = errors.New("no frame extracted")

type FrameExtractorConfig struct {
	// FFmpegPath is the ffmpeg binary to run.
	FFmpegPath string `mapstructure:"ffmpeg"`
	// Runner runs ffmpeg. Defaults to an ExecRunner.
	Runner CommandRunner `mapstructure:"-"`
}

// FrameExtractor grabs single frames out of a video.
type FrameExtractor struct {
	ffmpegPath string
	runner     CommandRunner
}

// NewFrameExtractor creates a new FrameExtractor instance.
func NewFrameExtractor(cfg FrameExtractorConfig) *FrameExtractor {
	ffmpegPath := DefaultFFmpegPath
	if cfg.FFmpegPath != "" {
		ffmpegPath = cfg.FFmpegPath
	}
	var runner CommandRunner = ExecRunner{}
	if cfg.Runner != nil {
		runner = cfg.Runner
	}
	return &FrameExtractor{
		ffmpegPath: ffmpegPath,
		runner:     runner,
	}
}

// EnsureImage writes the frame at start, scaled to width, to dest unless a
// regular file is already there. It reports whether a new image was made.
//
// The frame is written to a uniquely named hidden file next to dest and
// renamed on success, so an interrupted extraction never leaves a file at
// dest and two extractions of the same frame never share a temporary file.
func (f *FrameExtractor) EnsureImage(ctx context.Context, mediaPath string, start time.Duration, dest string, width int) (bool, error) {
	exists, err := fileutil.IsRegularFile(dest)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	part, err := os.CreateTemp(filepath.Dir(dest), partPattern(dest))
	if err != nil {
		return false, fmt.Errorf("error creating temporary file: %w", err)
	}
	tmp := part.Name()
	part.Close()         // nolint: errcheck
	defer os.Remove(tmp) // nolint: errcheck

	if _, err := f.runner.Run(ctx, f.ffmpegPath, frameArgs(mediaPath, start, tmp, width)...); err != nil {
		return false, fmt.Errorf("extracting frame at %s from %s: %w", start, mediaPath, err)
	}

	// ffmpeg exits cleanly when seeking past the end of the stream, it just
	// writes nothing.
	info, err := os.Stat(tmp)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if info == nil || info.Size() == 0 {
		return false, fmt.Errorf("%w at %s from %s", ErrNoFrame, start, mediaPath)
	}

	if err := os.Rename(tmp, dest); err != nil {
		return false, fmt.Errorf("error renaming file: %w", err)
	}
	return true, nil
}

// partPattern is the os.CreateTemp pattern for dest. It keeps the extension
// so ffmpeg still picks the image encoder from it: "1000_still.png" becomes
// ".1000_still.*.part.png".
func partPattern(dest string) string {
	name := filepath.Base(dest)
	ext := filepath.Ext(name)
	return "." + strings.TrimSuffix(name, ext) + ".*.part" + ext
}

func frameArgs(mediaPath string, start time.Duration, output string, width int) []string {
	// Seek to the whole second at or before the cue.
	seconds := start.Milliseconds() / 1000
	return ffmpeg_go.Input(mediaPath, ffmpeg_go.KwArgs{
		"ss": seconds,
	}).Output(output, ffmpeg_go.KwArgs{
		"frames:v": 1,
		"vf":       fmt.Sprintf("scale=%d:-1", width),
	}).OverWriteOutput().GetArgs()
}
