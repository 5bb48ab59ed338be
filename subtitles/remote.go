package subtitles

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/jaym/datamaker/fileutil"
	"github.com/jaym/datamaker/media"
	"github.com/jaym/datamaker/opensubtitles"
)

// RemoteClient is the subset of the OpenSubtitles client used for lookups.
type RemoteClient interface {
	Search(ctx context.Context, req opensubtitles.SearchRequest) ([]opensubtitles.Subtitle, error)
	Download(ctx context.Context, fileID int64) ([]byte, error)
}

// RemoteSource looks subtitles up by content hash and episode, and stores the
// download as an SRT sidecar so the next run finds it locally.
type RemoteSource struct {
	Client RemoteClient
	// Language filters the results client side; empty accepts any language.
	Language string
	// Query is an optional free-text filter sent with the search.
	Query string
}

func (s *RemoteSource) Name() string { return "remote" }

func (s *RemoteSource) Cues(ctx context.Context, file media.File) ([]Cue, error) {
	logger := zerolog.Ctx(ctx)

	hash, err := media.Hash(file.Path)
	if err != nil {
		return nil, err
	}

	results, err := s.Client.Search(ctx, opensubtitles.SearchRequest{
		MovieHash: hash,
		Query:     s.Query,
		Season:    file.Episode.Season,
		Episode:   file.Episode.Episode,
	})
	if err != nil {
		return nil, err
	}

	var match *opensubtitles.Subtitle
	for i := range results {
		if LanguageMatches(s.Language, results[i].Language) {
			match = &results[i]
			break
		}
	}
	if match == nil {
		logger.Info().
			Str("hash", hash).
			Str("language", s.Language).
			Int("results", len(results)).
			Msg("no remote subtitle in the configured language")
		return nil, nil
	}

	data, err := s.Client.Download(ctx, match.FileID)
	if err != nil {
		return nil, err
	}

	sidecar := SidecarPath(file)
	if err := fileutil.WriteFileAtomic(sidecar, data, 0o644); err != nil {
		return nil, fmt.Errorf("persisting remote subtitle: %w", err)
	}
	logger.Info().
		Str("sidecar", sidecar).
		Str("subtitle", match.ID).
		Int64("file_id", match.FileID).
		Msg("stored remote subtitle")

	cues, err := ParseSRT(data)
	if err != nil {
		return nil, fmt.Errorf("remote subtitle %s: %w", match.ID, err)
	}
	return cues, nil
}

// LanguageMatches compares a wanted language against a result's language.
// Codes are canonicalized, so "eng" matches "en". A wanted tag with a region
// ("pt-BR") must match exactly; a bare language matches any of its regions.
func LanguageMatches(want, got string) bool {
	want, got = strings.TrimSpace(want), strings.TrimSpace(got)
	if want == "" {
		return true
	}
	if strings.EqualFold(want, got) {
		return true
	}

	wt, err := language.Parse(want)
	if err != nil {
		return false
	}
	gt, err := language.Parse(got)
	if err != nil {
		return false
	}
	if wt == gt {
		return true
	}
	if strings.ContainsAny(want, "-_") {
		return false
	}

	wb, _ := wt.Base()
	gb, _ := gt.Base()
	return wb == gb
}
