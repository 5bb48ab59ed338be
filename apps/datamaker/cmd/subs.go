package datamaker

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jaym/datamaker/media"
)

type subsOutput struct {
	Path    string        `json:"path"`
	Episode media.Episode `json:"episode"`
	Source  string        `json:"source"`
	Cues    []subsCue     `json:"cues"`
}

type subsCue struct {
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Text  string `json:"text"`
}

var subsCmd = &cobra.Command{
	Use:   "subs media_file",
	Short: "Resolve the subtitles of one file and print them as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := LoadConfig()
		cobra.CheckErr(err)

		episode, err := media.ParseEpisode(args[0])
		cobra.CheckErr(err)

		ctx := log.Logger.WithContext(cmd.Context())
		cues, source := newCueChain(cfg).Resolve(ctx, media.File{Path: args[0], Episode: episode})

		out := subsOutput{Path: args[0], Episode: episode, Source: source, Cues: []subsCue{}}
		for _, c := range cues {
			out.Cues = append(out.Cues, subsCue{
				Start: c.StartMillis(),
				End:   c.End.Milliseconds(),
				Text:  c.Text,
			})
		}
		// Pretty print the cues as json
		o, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(o))
	},
}

func init() {
	rootCmd.AddCommand(subsCmd)
}
