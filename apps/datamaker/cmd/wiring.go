package datamaker

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/jaym/datamaker/opensubtitles"
	processor "github.com/jaym/datamaker/processors"
	"github.com/jaym/datamaker/subtitles"
)

// newCueChain builds the sidecar, embedded and remote lookup in that order.
// The remote source is left out when no credentials are configured.
func newCueChain(cfg *Config) *subtitles.Chain {
	runner := processor.ExecRunner{Timeout: cfg.CommandTimeout}

	var remote subtitles.Source
	client, err := opensubtitles.New(cfg.OpenSubtitles.Config)
	switch {
	case err == nil:
		remote = &subtitles.RemoteSource{
			Client:   client,
			Language: cfg.OpenSubtitles.Language,
			Query:    cfg.OpenSubtitles.Query,
		}
	case errors.Is(err, opensubtitles.ErrNotConfigured):
		log.Info().Msg("OpenSubtitles credentials not configured, remote lookup disabled")
	default:
		log.Warn().Err(err).Msg("Failed to create OpenSubtitles client, remote lookup disabled")
	}

	return subtitles.NewChain(
		&subtitles.SidecarSource{Language: cfg.OpenSubtitles.Language},
		&subtitles.EmbeddedSource{
			Demuxer: processor.NewSubtitleExtractor(processor.SubtitleExtractorConfig{
				FFmpegPath: cfg.FFmpegPath,
				Runner:     runner,
			}),
		},
		remote,
	)
}

func newFrameExtractor(cfg *Config) *processor.FrameExtractor {
	return processor.NewFrameExtractor(processor.FrameExtractorConfig{
		FFmpegPath: cfg.FFmpegPath,
		Runner:     processor.ExecRunner{Timeout: cfg.CommandTimeout},
	})
}
