package datamaker

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jaym/datamaker/objstore"
)

var errNoBucket = errors.New("publish.bucket is not set")

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload the target directory to an S3 bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		if cfg.Publish.Bucket == "" {
			return errNoBucket
		}

		awsConfig := aws.NewConfig()
		if cfg.Publish.Region != "" {
			awsConfig = awsConfig.WithRegion(cfg.Publish.Region)
		}
		sess, err := session.NewSessionWithOptions(session.Options{
			Config:            *awsConfig,
			SharedConfigState: session.SharedConfigEnable,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := &objstore.S3ObjectStore{
			Client: s3.New(sess),
			Bucket: cfg.Publish.Bucket,
			Prefix: cfg.Publish.Prefix,
		}
		stats, err := objstore.Mirror(ctx, cfg.TargetDir, store, cfg.Concurrency)
		log.Info().
			Int64("uploaded", stats.Uploaded).
			Int64("skipped", stats.Skipped).
			Str("bucket", cfg.Publish.Bucket).
			Str("prefix", cfg.Publish.Prefix).
			Msg("Published archive")
		return err
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().String("bucket", "", "destination bucket")
	publishCmd.Flags().String("prefix", "", "key prefix inside the bucket")
	viper.BindPFlag("publish.bucket", publishCmd.Flags().Lookup("bucket")) // nolint: errcheck
	viper.BindPFlag("publish.prefix", publishCmd.Flags().Lookup("prefix")) // nolint: errcheck
}
