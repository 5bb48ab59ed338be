package datamaker

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jaym/datamaker/api"
	"github.com/jaym/datamaker/metadata"
	"github.com/jaym/datamaker/objstore"
	processor "github.com/jaym/datamaker/processors"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the archive in the target directory over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		var catalog api.Catalog
		dbPath := filepath.Join(cfg.TargetDir, processor.CatalogFilename)
		if _, err := os.Stat(dbPath); err == nil {
			db, err := metadata.OpenDatabase(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			catalog = db
		} else {
			log.Warn().Str("path", dbPath).Msg("No catalog found, search is disabled")
		}

		srv := &http.Server{
			Addr:              cfg.Serve.Listen,
			Handler:           api.NewApiHandler(catalog, objstore.NewLocalFSObjectReader(cfg.TargetDir)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("Listening")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8991", "address to listen on")
	viper.BindPFlag("serve.listen", serveCmd.Flags().Lookup("addr")) // nolint: errcheck
}
