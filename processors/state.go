package processor

import (
	"errors"
	"time"

	"github.com/jaym/datamaker/media"
)

// FileState is the progress of a single media file through the pipeline.
type FileState string

const (
	StateDiscovered    FileState = "discovered"
	StateEpisodeParsed FileState = "episode_parsed"
	StateCuesResolved  FileState = "cues_resolved"
	StateImagesEnsured FileState = "images_ensured"
	StateIndexed       FileState = "indexed"
	StateDone          FileState = "done"
	// StateErrored is final; it can be entered from any other state.
	StateErrored FileState = "errored"
)

// FileResult is what happened to one media file.
type FileResult struct {
	Path    string
	Episode media.Episode
	State   FileState
	// Source names the cue source that produced the cues, empty when none did.
	Source        string
	Cues          int
	ImagesCreated int
	ImagesSkipped int
	ImageErrors   int
	Err           error
}

func (r *FileResult) advance(state FileState) {
	if r.State == StateErrored {
		return
	}
	r.State = state
}

func (r *FileResult) fail(err error) {
	r.State = StateErrored
	r.Err = err
}

// Skipped reports whether the file was passed over because its name carries
// no episode number.
func (r FileResult) Skipped() bool {
	return r.State == StateErrored && errors.Is(r.Err, media.ErrNoEpisode)
}

// Summary describes a finished run.
type Summary struct {
	Files       []FileResult
	IndexPath   string
	Records     int
	CatalogPath string
	CatalogErr  error
	Duration    time.Duration
}

// Count returns the number of files that ended in state.
func (s *Summary) Count(state FileState) int {
	n := 0
	for _, f := range s.Files {
		if f.State == state {
			n++
		}
	}
	return n
}

// Skipped returns the number of files without an episode number.
func (s *Summary) Skipped() int {
	n := 0
	for _, f := range s.Files {
		if f.Skipped() {
			n++
		}
	}
	return n
}

// Failed returns the files that errored for a reason other than a missing
// episode number.
func (s *Summary) Failed() []FileResult {
	var failed []FileResult
	for _, f := range s.Files {
		if f.State == StateErrored && !f.Skipped() {
			failed = append(failed, f)
		}
	}
	return failed
}

// ImageErrors is the total number of frames that could not be extracted.
func (s *Summary) ImageErrors() int {
	n := 0
	for _, f := range s.Files {
		n += f.ImageErrors
	}
	return n
}
