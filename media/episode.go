package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// ErrNoEpisode is returned when a file name carries no season/episode marker.
var ErrNoEpisode = errors.New("could not extract season and episode number from file name")

type Episode struct {
	// Season is the season number of the episode.
	Season int `json:"season"`
	// Episode is the episode number within the season.
	Episode int `json:"episode"`
}

// Dir is the output directory name for the episode, e.g. "2x05".
func (e Episode) Dir() string {
	return fmt.Sprintf("%dx%02d", e.Season, e.Episode)
}

func (e Episode) String() string {
	return fmt.Sprintf("S%02dE%02d", e.Season, e.Episode)
}

// File is a candidate media file found under the source root.
type File struct {
	Path    string
	Episode Episode
}

// BasePath is the path without its extension. Sidecar subtitles share it.
func (f File) BasePath() string {
	return f.Path[:len(f.Path)-len(filepath.Ext(f.Path))]
}

var episodeRegex = regexp.MustCompile(`(?i)(?:\bS(\d{1,3})[ ._-]?E(\d{1,4})|\b(\d{1,2})x(\d{2,3})\b)`)

// ParseEpisode extracts the season and episode number from the base name of
// path. Both the SxxEyy and the NxMM forms are recognized.
func ParseEpisode(path string) (Episode, error) {
	matches := episodeRegex.FindStringSubmatch(filepath.Base(path))
	if matches == nil {
		return Episode{}, ErrNoEpisode
	}

	seasonStr, episodeStr := matches[1], matches[2]
	if seasonStr == "" {
		seasonStr, episodeStr = matches[3], matches[4]
	}

	season, err := strconv.Atoi(seasonStr)
	if err != nil {
		return Episode{}, fmt.Errorf("error converting season number to integer: %w", err)
	}

	episode, err := strconv.Atoi(episodeStr)
	if err != nil {
		return Episode{}, fmt.Errorf("error converting episode number to integer: %w", err)
	}

	return Episode{Season: season, Episode: episode}, nil
}
