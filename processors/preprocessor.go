package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/jaym/datamaker/media"
	"github.com/jaym/datamaker/searchindex"
	"github.com/jaym/datamaker/subtitles"
)

const (
	DefaultSourceDir   = "data"
	DefaultTargetDir   = "out"
	DefaultConcurrency = 4

	IndexFilename   = "index.json"
	CatalogFilename = "catalog.db"
	LockFilename    = ".datamaker.lock"
)

// ErrLocked is returned when another run holds the target directory.
var ErrLocked = errors.New("target directory is locked by another run")

type PreprocessorConfig struct {
	SourceDir   string `mapstructure:"source_dir"`
	TargetDir   string `mapstructure:"target_dir"`
	ImageExt    string `mapstructure:"image_ext"`
	Concurrency int    `mapstructure:"concurrency"`
	// Catalog also writes an SQLite catalog of the indexed cues.
	Catalog bool `mapstructure:"catalog"`
}

// CueResolver finds the cues of a media file.
type CueResolver interface {
	Resolve(ctx context.Context, file media.File) ([]subtitles.Cue, string)
}

// ImageEnsurer makes sure an image exists at dest.
type ImageEnsurer interface {
	EnsureImage(ctx context.Context, mediaPath string, start time.Duration, dest string, width int) (bool, error)
}

// Preprocessor turns a source tree of episodes into per-cue images and a
// search index.
type Preprocessor struct {
	config PreprocessorConfig
	cues   CueResolver
	images ImageEnsurer
	index  *searchindex.Accumulator
}

func NewPreprocessor(cfg PreprocessorConfig, cues CueResolver, images ImageEnsurer, index *searchindex.Accumulator) *Preprocessor {
	if cfg.SourceDir == "" {
		cfg.SourceDir = DefaultSourceDir
	}
	if cfg.TargetDir == "" {
		cfg.TargetDir = DefaultTargetDir
	}
	cfg.ImageExt = strings.TrimPrefix(cfg.ImageExt, ".")
	if cfg.ImageExt == "" {
		cfg.ImageExt = DefaultImageExt
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if index == nil {
		index = searchindex.New()
	}
	return &Preprocessor{
		config: cfg,
		cues:   cues,
		images: images,
		index:  index,
	}
}

// Process runs every media file under the source directory through the
// pipeline and writes the index once all of them are finished. Failures of a
// single file are recorded in the summary and never stop the run; the
// returned error is only set when the run as a whole could not complete.
func (p *Preprocessor) Process(ctx context.Context) (*Summary, error) {
	started := time.Now()
	log.Info().
		Interface("config", p.config).
		Msg("processing files")

	err := os.MkdirAll(p.config.TargetDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("error creating target directory: %w", err)
	}

	lock := flock.New(filepath.Join(p.config.TargetDir, LockFilename))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("error locking target directory: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	defer lock.Unlock() // nolint: errcheck

	paths, err := media.Discover(p.config.SourceDir, func(path string, err error) {
		log.Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
	})
	if err != nil {
		return nil, fmt.Errorf("error walking source directory: %w", err)
	}
	paths = p.excludeTarget(paths)

	summary := &Summary{Files: make([]FileResult, len(paths))}
	tasks := pool.New().WithMaxGoroutines(p.config.Concurrency)
	for i, path := range paths {
		tasks.Go(func() {
			summary.Files[i] = p.processFile(ctx, path)
		})
	}
	tasks.Wait()

	summary.IndexPath = filepath.Join(p.config.TargetDir, IndexFilename)
	summary.Records = p.index.Len()
	if err := p.index.WriteFile(summary.IndexPath); err != nil {
		return summary, fmt.Errorf("error writing index: %w", err)
	}
	log.Info().Str("path", summary.IndexPath).Int("records", summary.Records).Msg("wrote index")

	if p.config.Catalog {
		catalogPath := filepath.Join(p.config.TargetDir, CatalogFilename)
		if err := p.writeCatalog(catalogPath); err != nil {
			// The index is the primary artifact; a missing catalog only
			// disables the search endpoint of serve.
			log.Error().Err(err).Str("path", catalogPath).Msg("failed to write catalog")
			summary.CatalogErr = err
		} else {
			summary.CatalogPath = catalogPath
		}
	}

	summary.Duration = time.Since(started)
	return summary, nil
}

// processFile never returns an error; whatever goes wrong ends up in the
// result.
func (p *Preprocessor) processFile(ctx context.Context, path string) (res FileResult) {
	res = FileResult{Path: path, State: StateDiscovered}
	logger := log.With().Str("path", path).Logger()

	defer func() {
		if r := recover(); r != nil {
			state := res.State
			res.fail(fmt.Errorf("panic: %v", r))
			logger.Error().Err(res.Err).Str("state", string(state)).Msg("file processing panicked")
		}
	}()

	if err := ctx.Err(); err != nil {
		res.fail(err)
		return res
	}

	episode, err := media.ParseEpisode(path)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping file")
		res.fail(err)
		return res
	}
	res.Episode = episode
	res.advance(StateEpisodeParsed)

	logger = logger.With().Int("season", episode.Season).Int("episode", episode.Episode).Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Msg("processing file")

	file := media.File{Path: path, Episode: episode}
	cues, source := p.cues.Resolve(ctx, file)
	valid := make([]subtitles.Cue, 0, len(cues))
	for _, cue := range cues {
		if cue.Valid() {
			valid = append(valid, cue)
		}
	}
	if dropped := len(cues) - len(valid); dropped > 0 {
		logger.Warn().Int("dropped", dropped).Msg("discarding cues without a start time")
	}
	res.Source = source
	res.Cues = len(valid)
	res.advance(StateCuesResolved)

	if len(valid) == 0 {
		logger.Warn().Msg("no subtitles found")
	} else if err := p.ensureImages(ctx, file, valid, &res); err != nil {
		logger.Error().Err(err).Msg("failed to make images")
		res.fail(err)
		return res
	}
	res.advance(StateImagesEnsured)

	p.index.Fold(episode, valid)
	res.advance(StateIndexed)

	logger.Info().
		Str("source", source).
		Int("cues", res.Cues).
		Int("created", res.ImagesCreated).
		Int("skipped", res.ImagesSkipped).
		Int("failed", res.ImageErrors).
		Msg("processed file")
	res.advance(StateDone)
	return res
}

// ensureImages makes the still and thumbnail of every cue. A failed frame is
// logged and counted; only a missing episode directory or cancellation stop
// the loop.
func (p *Preprocessor) ensureImages(ctx context.Context, file media.File, cues []subtitles.Cue, res *FileResult) error {
	logger := log.Ctx(ctx)

	episodeDir := filepath.Join(p.config.TargetDir, file.Episode.Dir())
	if err := os.MkdirAll(episodeDir, 0755); err != nil {
		return fmt.Errorf("error creating episode directory: %w", err)
	}

	for _, cue := range cues {
		for _, variant := range ImageVariants {
			if err := ctx.Err(); err != nil {
				return err
			}

			dest := filepath.Join(episodeDir, ImageName(cue.StartMillis(), variant.Kind, p.config.ImageExt))
			created, err := p.images.EnsureImage(ctx, file.Path, cue.Start, dest, variant.Width)
			switch {
			case err != nil:
				res.ImageErrors++
				event := logger.Error().Err(err).Str("image", dest)
				var cmdErr *CommandError
				if errors.As(err, &cmdErr) {
					event = event.Str("stderr", cmdErr.Stderr)
				}
				event.Msg("failed to extract frame")
			case created:
				res.ImagesCreated++
				logger.Debug().Str("image", dest).Msg("created image")
			default:
				res.ImagesSkipped++
				logger.Debug().Str("image", dest).Msg("image exists")
			}
		}
	}
	return nil
}

// excludeTarget drops files under the target directory, which may live inside
// the source tree.
func (p *Preprocessor) excludeTarget(paths []string) []string {
	target, err := filepath.Abs(p.config.TargetDir)
	if err != nil {
		return paths
	}
	source, err := filepath.Abs(p.config.SourceDir)
	if err != nil || target == source || !strings.HasPrefix(target, source+string(filepath.Separator)) {
		return paths
	}

	kept := paths[:0]
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err == nil && strings.HasPrefix(abs, target+string(filepath.Separator)) {
			continue
		}
		kept = append(kept, path)
	}
	return kept
}
