package metadata

type EpisodeMetadata struct {
	// Season is the season number of the episode.
	Season int `json:"season"`
	// Episode is the episode number of the episode.
	Episode int           `json:"episode"`
	Cues    []CueMetadata `json:"cues"`
}

type CueMetadata struct {
	// Start is the cue start time in milliseconds.
	Start        int64  `json:"start"`
	Text         string `json:"text"`
	HTML         string `json:"html"`
	StillKey     string `json:"still_key"`
	ThumbnailKey string `json:"thumbnail_key"`
}
