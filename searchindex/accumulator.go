package searchindex

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/jaym/datamaker/fileutil"
	"github.com/jaym/datamaker/media"
	"github.com/jaym/datamaker/subtitles"
)

// Field configuration shared with the web front end's MiniSearch instance:
//
//	new MiniSearch({
//	  idField: "key",
//	  fields: ["text"],
//	  storeFields: ["id", "html", "season", "episode"],
//	})
//
// Changing any of it breaks clients built against earlier indexes.
const (
	IDField              = "key"
	SearchField          = "text"
	SerializationVersion = 2
)

var StoredFields = []string{"id", "html", "season", "episode"}

// Record is one indexed cue.
type Record struct {
	// ID is the cue start time in milliseconds.
	ID      int64  `json:"id"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
}

// Key identifies the record across episodes, e.g. "1x02/1000".
func (r Record) Key() string {
	return media.Episode{Season: r.Season, Episode: r.Episode}.Dir() + "/" + strconv.FormatInt(r.ID, 10)
}

// Accumulator collects records from concurrent file tasks. Records with the
// same key replace each other.
type Accumulator struct {
	mu      sync.Mutex
	records map[string]Record
}

func New() *Accumulator {
	return &Accumulator{records: make(map[string]Record)}
}

// Add stores r, replacing an earlier record with the same key.
func (a *Accumulator) Add(r Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[r.Key()] = r
}

// Fold turns every valid cue into a record for episode and returns how many
// were added. Cues without a start timestamp are skipped.
func (a *Accumulator) Fold(episode media.Episode, cues []subtitles.Cue) int {
	records := make([]Record, 0, len(cues))
	for _, cue := range cues {
		if !cue.Valid() {
			continue
		}
		records = append(records, Record{
			ID:      cue.StartMillis(),
			Text:    StripMarkup(cue.Text),
			HTML:    cue.Text,
			Season:  episode.Season,
			Episode: episode.Episode,
		})
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range records {
		a.records[r.Key()] = r
	}
	return len(records)
}

func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Records returns a snapshot ordered by season, episode and id.
func (a *Accumulator) Records() []Record {
	a.mu.Lock()
	records := make([]Record, 0, len(a.records))
	for _, r := range a.records {
		records = append(records, r)
	}
	a.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].Season != records[j].Season {
			return records[i].Season < records[j].Season
		}
		if records[i].Episode != records[j].Episode {
			return records[i].Episode < records[j].Episode
		}
		return records[i].ID < records[j].ID
	})
	return records
}

type storedFields struct {
	ID      int64  `json:"id"`
	HTML    string `json:"html"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
}

type indexEntry struct {
	term     string
	postings map[string]map[string]int
}

func (e indexEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.term, e.postings})
}

type serializedIndex struct {
	DocumentCount        int                     `json:"documentCount"`
	NextID               int                     `json:"nextId"`
	DocumentIDs          map[string]string       `json:"documentIds"`
	FieldIDs             map[string]int          `json:"fieldIds"`
	FieldLength          map[string][]int        `json:"fieldLength"`
	AverageFieldLength   []float64               `json:"averageFieldLength"`
	StoredFields         map[string]storedFields `json:"storedFields"`
	DirtCount            int                     `json:"dirtCount"`
	Index                []indexEntry            `json:"index"`
	SerializationVersion int                     `json:"serializationVersion"`
}

// MarshalJSON serializes the index in the MiniSearch JSON format. Documents
// are numbered in Records order, so equal content gives equal output.
func (a *Accumulator) MarshalJSON() ([]byte, error) {
	records := a.Records()

	out := serializedIndex{
		DocumentCount:        len(records),
		NextID:               len(records),
		DocumentIDs:          make(map[string]string, len(records)),
		FieldIDs:             map[string]int{SearchField: 0},
		FieldLength:          make(map[string][]int, len(records)),
		AverageFieldLength:   []float64{0},
		StoredFields:         make(map[string]storedFields, len(records)),
		Index:                []indexEntry{},
		SerializationVersion: SerializationVersion,
	}

	const fieldID = "0"
	postings := make(map[string]map[string]int)
	totalLength := 0
	for i, r := range records {
		shortID := strconv.Itoa(i)
		out.DocumentIDs[shortID] = r.Key()
		out.StoredFields[shortID] = storedFields{
			ID:      r.ID,
			HTML:    r.HTML,
			Season:  r.Season,
			Episode: r.Episode,
		}

		// The field length counts distinct words before lowercasing, the
		// way MiniSearch's addDocument does.
		words := splitWords(r.Text)
		distinct := make(map[string]struct{}, len(words))
		freqs := make(map[string]int)
		for _, word := range words {
			distinct[word] = struct{}{}
			freqs[strings.ToLower(word)]++
		}
		out.FieldLength[shortID] = []int{len(distinct)}
		totalLength += len(distinct)

		for term, tf := range freqs {
			docs, ok := postings[term]
			if !ok {
				docs = make(map[string]int)
				postings[term] = docs
			}
			docs[shortID] = tf
		}
	}
	if len(records) > 0 {
		out.AverageFieldLength[0] = float64(totalLength) / float64(len(records))
	}

	terms := make([]string, 0, len(postings))
	for term := range postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		out.Index = append(out.Index, indexEntry{
			term:     term,
			postings: map[string]map[string]int{fieldID: postings[term]},
		})
	}

	return json.Marshal(out)
}

// WriteTo writes the serialized index to w.
func (a *Accumulator) WriteTo(w io.Writer) (int64, error) {
	data, err := a.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("serializing search index: %w", err)
	}
	n, err := w.Write(data)
	return int64(n), err
}

// WriteFile atomically replaces the index artifact at path.
func (a *Accumulator) WriteFile(path string) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		_, err := a.WriteTo(w)
		return err
	})
}

// Tokenize splits text the way MiniSearch's default tokenizer does (on
// whitespace and punctuation) and lowercases every term.
func Tokenize(text string) []string {
	terms := splitWords(text)
	for i, w := range terms {
		terms[i] = strings.ToLower(w)
	}
	return terms
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || unicode.In(r, unicode.Z, unicode.P)
	})
}
