package subtitles

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jaym/datamaker/media"
)

// Source resolves the cues of a media file. A source that finds nothing
// returns an empty slice and a nil error; an error means the source failed
// and the next one is tried.
type Source interface {
	Name() string
	Cues(ctx context.Context, file media.File) ([]Cue, error)
}

// Chain tries its sources in order and stops at the first one that yields
// cues.
type Chain struct {
	sources []Source
}

// NewChain builds a chain from the given sources; nil sources are dropped so
// optional sources can be passed unconditionally.
func NewChain(sources ...Source) *Chain {
	c := &Chain{}
	for _, s := range sources {
		if s != nil {
			c.sources = append(c.sources, s)
		}
	}
	return c
}

// Sources returns the names of the sources in lookup order.
func (c *Chain) Sources() []string {
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return names
}

// Resolve returns the cues of file together with the name of the source that
// produced them. When every source comes up empty, both are zero.
func (c *Chain) Resolve(ctx context.Context, file media.File) ([]Cue, string) {
	logger := zerolog.Ctx(ctx)
	for _, source := range c.sources {
		if ctx.Err() != nil {
			return nil, ""
		}

		cues, err := source.Cues(ctx, file)
		if err != nil {
			logger.Warn().Err(err).Str("source", source.Name()).Msg("cue source failed")
			continue
		}
		if len(cues) == 0 {
			logger.Debug().Str("source", source.Name()).Msg("cue source found nothing")
			continue
		}

		logger.Info().Str("source", source.Name()).Int("cues", len(cues)).Msg("resolved cues")
		return cues, source.Name()
	}
	return nil, ""
}
