package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/remko/go-mkvparse"
)

// Matroska track type for subtitle tracks.
const mkvTrackTypeSubtitle = 0x11

var matroskaExtensions = map[string]bool{
	".mkv":  true,
	".mka":  true,
	".mk3d": true,
	".webm": true,
}

// IsMatroska reports whether the file extension belongs to the Matroska family.
func IsMatroska(path string) bool {
	return matroskaExtensions[strings.ToLower(filepath.Ext(path))]
}

type trackCounter struct {
	mkvparse.DefaultHandler

	tracks    int
	subtitles int
}

func (c *trackCounter) HandleMasterBegin(id mkvparse.ElementID, info mkvparse.ElementInfo) (bool, error) {
	if id == mkvparse.TrackEntryElement {
		c.tracks++
	}
	return true, nil
}

func (c *trackCounter) HandleInteger(id mkvparse.ElementID, value int64, info mkvparse.ElementInfo) error {
	if id == mkvparse.TrackTypeElement && value == mkvTrackTypeSubtitle {
		c.subtitles++
	}
	return nil
}

// SubtitleTracks reads the track table of a Matroska file and returns the
// number of subtitle tracks it declares. Only the Tracks section is parsed.
func SubtitleTracks(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("probing tracks: %w", err)
	}
	defer file.Close()

	var counter trackCounter
	if err := mkvparse.ParseSections(file, &counter, mkvparse.TracksElement); err != nil {
		return 0, fmt.Errorf("probing tracks of %s: %w", path, err)
	}
	if counter.tracks == 0 {
		return 0, fmt.Errorf("probing tracks of %s: no track entries found", path)
	}

	return counter.subtitles, nil
}
