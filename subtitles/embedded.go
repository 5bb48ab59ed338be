package subtitles

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jaym/datamaker/media"
)

// Demuxer extracts the first subtitle track of a media file as SRT.
type Demuxer interface {
	DemuxSubtitles(ctx context.Context, path string) ([]byte, error)
}

// EmbeddedSource reads the subtitle track muxed into the media file.
type EmbeddedSource struct {
	Demuxer Demuxer
	// Probe counts the subtitle tracks of a Matroska file. Defaults to
	// media.SubtitleTracks.
	Probe func(path string) (int, error)
}

func (s *EmbeddedSource) Name() string { return "embedded" }

func (s *EmbeddedSource) Cues(ctx context.Context, file media.File) ([]Cue, error) {
	if media.IsMatroska(file.Path) {
		probe := s.Probe
		if probe == nil {
			probe = media.SubtitleTracks
		}
		n, err := probe(file.Path)
		switch {
		case err != nil:
			zerolog.Ctx(ctx).Debug().Err(err).Msg("track probe failed, demuxing anyway")
		case n == 0:
			zerolog.Ctx(ctx).Debug().Msg("no embedded subtitle track")
			return nil, nil
		}
	}

	data, err := s.Demuxer.DemuxSubtitles(ctx, file.Path)
	if err != nil {
		return nil, fmt.Errorf("extracting embedded subtitles: %w", err)
	}

	cues, err := ParseSRT(data)
	if err != nil {
		return nil, fmt.Errorf("extracting embedded subtitles: %w", err)
	}
	return cues, nil
}
