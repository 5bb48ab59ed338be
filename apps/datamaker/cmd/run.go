package datamaker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	processor "github.com/jaym/datamaker/processors"
	"github.com/jaym/datamaker/searchindex"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract frames for every subtitle line and build the search index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runPipeline(ctx, cmd, cfg)
	},
}

func runPipeline(ctx context.Context, cmd *cobra.Command, cfg *Config) error {
	chain := newCueChain(cfg)
	log.Info().Strs("sources", chain.Sources()).Msg("cue sources")

	p := processor.NewPreprocessor(cfg.PreprocessorConfig, chain, newFrameExtractor(cfg), searchindex.New())
	summary, err := p.Process(ctx)
	if summary != nil {
		cmd.Println(renderSummary(summary))
	}
	if err != nil {
		log.Error().Err(err).Msg("Run failed")
		return err
	}

	log.Info().
		Dur("duration", summary.Duration).
		Int("records", summary.Records).
		Str("index", summary.IndexPath).
		Msg("Run finished")
	return nil
}

func init() {
	runCmd.Flags().Int("concurrency", processor.DefaultConcurrency, "number of files processed at once")
	runCmd.Flags().String("image-ext", processor.DefaultImageExt, "image file extension, picks the encoder")
	runCmd.Flags().Bool("catalog", true, "also write an SQLite catalog for serve")
	viper.BindPFlag("concurrency", runCmd.Flags().Lookup("concurrency")) // nolint: errcheck
	viper.BindPFlag("image_ext", runCmd.Flags().Lookup("image-ext"))     // nolint: errcheck
	viper.BindPFlag("catalog", runCmd.Flags().Lookup("catalog"))         // nolint: errcheck

	rootCmd.AddCommand(runCmd)
}
