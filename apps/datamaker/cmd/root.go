package datamaker

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "datamaker",
	Short: "Turn a library of episodes into a searchable archive of subtitle frames",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd.ErrOrStderr(), viper.GetString("log_level"))
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	setDefaults(viper.GetViper())

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.datamaker.yaml)")
	rootCmd.PersistentFlags().String("source-dir", "data", "directory containing the episodes")
	rootCmd.PersistentFlags().String("target-dir", "out", "directory the archive is written to")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("source_dir", rootCmd.PersistentFlags().Lookup("source-dir")) // nolint: errcheck
	viper.BindPFlag("target_dir", rootCmd.PersistentFlags().Lookup("target-dir")) // nolint: errcheck
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))   // nolint: errcheck
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".datamaker")
	}

	bindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			log.Warn().Err(err).Msg("Failed to read config file")
		}
	}
}

// bindEnv maps every key to DATAMAKER_<KEY> with dots turned into
// underscores. DATAMAKER_DIR is still accepted for the source directory.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("DATAMAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("source_dir", "DATAMAKER_SOURCE_DIR", "DATAMAKER_DIR") // nolint: errcheck
}

// setupLogging points the global logger at w, human readable on a terminal
// and JSON otherwise. Every line carries the id of this run.
func setupLogging(w io.Writer, level string) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return err
		}
	}
	zerolog.SetGlobalLevel(lvl)

	out := w
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("run", uuid.NewString()).Logger()
	return nil
}
