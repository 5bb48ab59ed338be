package datamaker

import (
	"time"

	"github.com/spf13/viper"

	"github.com/jaym/datamaker/opensubtitles"
	processor "github.com/jaym/datamaker/processors"
)

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

type PublishConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	Region string `mapstructure:"region"`
}

type OpenSubtitlesConfig struct {
	opensubtitles.Config `mapstructure:",squash"`
	// Language is the subtitle language to accept, e.g. "en" or "pt-BR".
	Language string `mapstructure:"language"`
	// Query is sent along with every search to narrow down the results.
	Query string `mapstructure:"query"`
}

type Config struct {
	processor.PreprocessorConfig `mapstructure:",squash"`

	FFmpegPath     string              `mapstructure:"ffmpeg"`
	CommandTimeout time.Duration       `mapstructure:"command_timeout"`
	LogLevel       string              `mapstructure:"log_level"`
	OpenSubtitles  OpenSubtitlesConfig `mapstructure:"opensubtitles"`
	Serve          ServerConfig        `mapstructure:"serve"`
	Publish        PublishConfig       `mapstructure:"publish"`
}

// setDefaults registers every key so that environment variables are picked
// up for it by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("source_dir", processor.DefaultSourceDir)
	v.SetDefault("target_dir", processor.DefaultTargetDir)
	v.SetDefault("image_ext", processor.DefaultImageExt)
	v.SetDefault("concurrency", processor.DefaultConcurrency)
	v.SetDefault("catalog", true)
	v.SetDefault("ffmpeg", processor.DefaultFFmpegPath)
	v.SetDefault("command_timeout", processor.DefaultCommandTimeout)
	v.SetDefault("log_level", "info")

	v.SetDefault("opensubtitles.api_key", "")
	v.SetDefault("opensubtitles.username", "")
	v.SetDefault("opensubtitles.password", "")
	v.SetDefault("opensubtitles.user_agent", opensubtitles.DefaultUserAgent)
	v.SetDefault("opensubtitles.base_url", opensubtitles.DefaultBaseURL)
	v.SetDefault("opensubtitles.language", "en")
	v.SetDefault("opensubtitles.query", "")

	v.SetDefault("serve.listen", ":8991")

	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.prefix", "")
	v.SetDefault("publish.region", "")
}

func LoadConfig() (*Config, error) {
	return loadConfig(viper.GetViper())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var config Config
	err := v.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}
