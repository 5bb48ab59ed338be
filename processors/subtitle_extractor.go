package processor

import (
	"context"

	ffmpeg_go "github.com/u2takey/ffmpeg-go"
)

type SubtitleExtractorConfig struct {
	// FFmpegPath is the ffmpeg binary to run.
	FFmpegPath string `mapstructure:"ffmpeg"`
	// Runner runs ffmpeg. Defaults to an ExecRunner.
	Runner CommandRunner `mapstructure:"-"`
}

// SubtitleExtractor pulls the first subtitle track out of a media file.
type SubtitleExtractor struct {
	ffmpegPath string
	runner     CommandRunner
}

// NewSubtitleExtractor creates a new SubtitleExtractor instance.
func NewSubtitleExtractor(cfg SubtitleExtractorConfig) *SubtitleExtractor {
	ffmpegPath := DefaultFFmpegPath
	if cfg.FFmpegPath != "" {
		ffmpegPath = cfg.FFmpegPath
	}
	var runner CommandRunner = ExecRunner{}
	if cfg.Runner != nil {
		runner = cfg.Runner
	}
	return &SubtitleExtractor{
		ffmpegPath: ffmpegPath,
		runner:     runner,
	}
}

// DemuxSubtitles converts the first subtitle track to SRT and returns it.
// Files without a subtitle track make ffmpeg exit with an error.
func (s *SubtitleExtractor) DemuxSubtitles(ctx context.Context, path string) ([]byte, error) {
	return s.runner.Run(ctx, s.ffmpegPath, subtitleArgs(path)...)
}

func subtitleArgs(path string) []string {
	return ffmpeg_go.Input(path).
		Output("pipe:1", ffmpeg_go.KwArgs{
			"map": "0:s:0",
			"f":   "srt",
		}).
		GetArgs()
}
