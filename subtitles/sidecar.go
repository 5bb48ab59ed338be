package subtitles

import (
	"context"
	"fmt"

	"github.com/jaym/datamaker/fileutil"
	"github.com/jaym/datamaker/media"
)

// SidecarSource reads a subtitle file stored next to the media file under the
// same base name, e.g. "Show S01E02.srt" for "Show S01E02.mkv".
type SidecarSource struct {
	// Language, when set, is also tried as an infix: "Show S01E02.en.srt".
	Language string
}

func (s *SidecarSource) Name() string { return "sidecar" }

// Path returns the first existing sidecar for file, or "" if there is none.
func (s *SidecarSource) Path(file media.File) (string, error) {
	base := file.BasePath()
	candidates := make([]string, 0, 2*len(media.SubtitleExtensions))
	for _, ext := range media.SubtitleExtensions {
		candidates = append(candidates, base+ext)
	}
	if s.Language != "" {
		for _, ext := range media.SubtitleExtensions {
			candidates = append(candidates, base+"."+s.Language+ext)
		}
	}

	for _, p := range candidates {
		ok, err := fileutil.IsRegularFile(p)
		if err != nil {
			return "", fmt.Errorf("checking sidecar %s: %w", p, err)
		}
		if ok {
			return p, nil
		}
	}
	return "", nil
}

func (s *SidecarSource) Cues(ctx context.Context, file media.File) ([]Cue, error) {
	p, err := s.Path(file)
	if err != nil || p == "" {
		return nil, err
	}

	cues, err := ParseFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading sidecar %s: %w", p, err)
	}
	return cues, nil
}

// SidecarPath is where a fetched subtitle for file is persisted.
func SidecarPath(file media.File) string {
	return file.BasePath() + ".srt"
}
