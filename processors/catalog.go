package processor

import (
	"path"

	"github.com/rs/zerolog/log"

	"github.com/jaym/datamaker/media"
	"github.com/jaym/datamaker/metadata"
	"github.com/jaym/datamaker/searchindex"
)

// writeCatalog stores the accumulated records in an SQLite database next to
// the index. Image keys are slash separated and relative to the target
// directory.
func (p *Preprocessor) writeCatalog(dbPath string) error {
	builder, err := metadata.NewDatabaseBuilder(dbPath)
	if err != nil {
		return err
	}

	for _, ep := range episodeMetadata(p.index.Records(), p.config.ImageExt) {
		if err := builder.AddEpisodeMetadata(ep); err != nil {
			builder.Abort()
			return err
		}
	}

	if err := builder.Build(); err != nil {
		builder.Abort()
		return err
	}
	log.Info().Str("path", dbPath).Msg("wrote catalog")
	return nil
}

// episodeMetadata groups records, which arrive ordered by episode, into one
// entry per episode.
func episodeMetadata(records []searchindex.Record, imageExt string) []metadata.EpisodeMetadata {
	var episodes []metadata.EpisodeMetadata
	for _, r := range records {
		if n := len(episodes); n == 0 || episodes[n-1].Season != r.Season || episodes[n-1].Episode != r.Episode {
			episodes = append(episodes, metadata.EpisodeMetadata{Season: r.Season, Episode: r.Episode})
		}
		dir := media.Episode{Season: r.Season, Episode: r.Episode}.Dir()
		ep := &episodes[len(episodes)-1]
		ep.Cues = append(ep.Cues, metadata.CueMetadata{
			Start:        r.ID,
			Text:         r.Text,
			HTML:         r.HTML,
			StillKey:     path.Join(dir, ImageName(r.ID, Still, imageExt)),
			ThumbnailKey: path.Join(dir, ImageName(r.ID, Thumbnail, imageExt)),
		})
	}
	return episodes
}
