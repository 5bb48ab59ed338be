package subtitles

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asticode/go-astisub"
)

// NoTimestamp marks a cue whose start time is unknown.
const NoTimestamp time.Duration = -1

// Cue is a single subtitle line.
type Cue struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	// Text keeps the inline markup of the subtitle, e.g. "<i>Hello</i>".
	Text string `json:"text"`
}

// Valid reports whether the cue has a start timestamp.
func (c Cue) Valid() bool {
	return c.Start >= 0
}

// StartMillis is the start timestamp in milliseconds.
func (c Cue) StartMillis() int64 {
	return c.Start.Milliseconds()
}

// Parse decodes subtitles in the format implied by ext (".srt", ".vtt",
// ".ass" or ".ssa").
func Parse(r io.Reader, ext string) ([]Cue, error) {
	var (
		subs *astisub.Subtitles
		raw  []string
		err  error
	)
	switch strings.ToLower(ext) {
	case ".srt", "srt":
		var data []byte
		if data, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("reading subtitles: %w", err)
		}
		if subs, err = astisub.ReadFromSRT(bytes.NewReader(data)); err == nil {
			raw = srtBlockText(data)
		}
	case ".vtt", "vtt":
		subs, err = astisub.ReadFromWebVTT(r)
	case ".ass", ".ssa", "ass", "ssa":
		subs, err = astisub.ReadFromSSA(r)
	default:
		return nil, fmt.Errorf("unsupported subtitle format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing subtitles: %w", err)
	}

	// SRT cues keep their text verbatim; other formats are rendered back
	// from the parsed styles.
	if len(raw) != len(subs.Items) {
		raw = nil
	}
	cues := make([]Cue, 0, len(subs.Items))
	for i, item := range subs.Items {
		if item == nil {
			continue
		}
		var text string
		if raw != nil {
			text = raw[i]
		} else {
			text = itemMarkup(item)
		}
		cues = append(cues, Cue{
			Start: item.StartAt,
			End:   item.EndAt,
			Text:  text,
		})
	}
	return cues, nil
}

// ParseSRT decodes SRT data.
func ParseSRT(data []byte) ([]Cue, error) {
	return Parse(bytes.NewReader(data), ".srt")
}

// ParseFile decodes the subtitle file at path.
func ParseFile(path string) ([]Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f, filepath.Ext(path))
}

// itemMarkup renders the lines of a subtitle item back into SRT-style inline
// markup. Lines are separated by newlines.
func itemMarkup(item *astisub.Item) string {
	lines := make([]string, 0, len(item.Lines))
	for _, line := range item.Lines {
		parts := make([]string, 0, len(line.Items))
		for _, li := range line.Items {
			if li.Text == "" {
				continue
			}
			parts = append(parts, styled(li))
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " "))
		}
	}
	return strings.Join(lines, "\n")
}

func styled(li astisub.LineItem) string {
	text := li.Text
	sa := li.InlineStyle
	if sa == nil {
		return text
	}
	if sa.SRTUnderline {
		text = "<u>" + text + "</u>"
	}
	if sa.SRTBold {
		text = "<b>" + text + "</b>"
	}
	if sa.SRTItalics {
		text = "<i>" + text + "</i>"
	}
	if sa.SRTColor != nil {
		text = fmt.Sprintf("<font color=%q>%s</font>", *sa.SRTColor, text)
	}
	return text
}

// srtBlockText returns the raw text of every SRT block, one entry per timing
// line. Blocks are split the same way astisub splits them: the last line
// before a timing line is the next block's index, and blank lines around
// the text are dropped.
func srtBlockText(data []byte) []string {
	var (
		blocks [][]string
		cur    []string
	)
	flush := func(dropIndex bool) {
		if blocks == nil && cur == nil {
			return
		}
		if dropIndex && len(cur) > 0 && cur[len(cur)-1] != "" {
			cur = cur[:len(cur)-1]
		}
		for len(cur) > 0 && cur[len(cur)-1] == "" {
			cur = cur[:len(cur)-1]
		}
		for len(cur) > 0 && cur[0] == "" {
			cur = cur[1:]
		}
		if len(blocks) > 0 {
			blocks[len(blocks)-1] = cur
		}
	}

	text := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(string(data))
	text = strings.TrimPrefix(text, "\ufeff")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "-->") {
			flush(true)
			blocks = append(blocks, nil)
			cur = []string{}
			continue
		}
		cur = append(cur, line)
	}
	flush(false)

	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = strings.Join(b, "\n")
	}
	return texts
}
