package datamaker

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jaym/datamaker/media"
	processor "github.com/jaym/datamaker/processors"
)

// renderSummary lays out one row per media file followed by the totals.
func renderSummary(summary *processor.Summary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"File", "Episode", "Source", "Cues", "Created", "Skipped", "Failed", "State"})

	var cues, created, skipped, failed int
	for _, f := range summary.Files {
		episode, state := "-", string(f.State)
		if f.Episode != (media.Episode{}) {
			episode = f.Episode.Dir()
		}
		if f.Skipped() {
			state = "skipped"
		} else if f.Err != nil {
			state = fmt.Sprintf("%s: %v", f.State, f.Err)
		}
		source := f.Source
		if source == "" {
			source = "-"
		}
		tw.AppendRow(table.Row{
			f.Path,
			episode,
			source,
			f.Cues,
			f.ImagesCreated,
			f.ImagesSkipped,
			f.ImageErrors,
			text.WrapSoft(state, 40),
		})
		cues += f.Cues
		created += f.ImagesCreated
		skipped += f.ImagesSkipped
		failed += f.ImageErrors
	}
	tw.AppendFooter(table.Row{
		strconv.Itoa(len(summary.Files)) + " files",
		"",
		"",
		cues,
		created,
		skipped,
		failed,
		fmt.Sprintf("%d done, %d skipped, %d failed", summary.Count(processor.StateDone), summary.Skipped(), len(summary.Failed())),
	})

	columnConfigs := make([]table.ColumnConfig, 0, 4)
	for i := 4; i <= 7; i++ {
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
