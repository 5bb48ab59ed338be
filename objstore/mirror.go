package objstore

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// ObjectWriter is the destination of a Mirror.
type ObjectWriter interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) error
}

type MirrorStats struct {
	Uploaded int64
	Skipped  int64
}

// Mirror uploads every file under root to dst, keyed by its slash separated
// path relative to root. Files in subdirectories are immutable once written
// and skipped when dst already has them; top level files such as the index
// are always uploaded. Hidden and temporary files are left out.
func Mirror(ctx context.Context, root string, dst ObjectWriter, concurrency int) (MirrorStats, error) {
	var keys []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasSuffix(d.Name(), ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return MirrorStats{}, fmt.Errorf("error walking %s: %w", root, err)
	}

	if concurrency <= 0 {
		concurrency = 1
	}
	var uploaded, skipped atomic.Int64
	uploads := pool.New().WithContext(ctx).WithMaxGoroutines(concurrency)
	for _, key := range keys {
		uploads.Go(func(ctx context.Context) error {
			immutable := strings.Contains(key, "/")
			if immutable {
				ok, err := dst.Exists(ctx, key)
				if err != nil {
					return err
				}
				if ok {
					skipped.Add(1)
					return nil
				}
			}

			if err := upload(ctx, dst, root, key); err != nil {
				log.Error().Err(err).Str("key", key).Msg("Failed to upload object")
				return err
			}
			log.Debug().Str("key", key).Msg("uploaded object")
			uploaded.Add(1)
			return nil
		})
	}
	err = uploads.Wait()

	return MirrorStats{Uploaded: uploaded.Load(), Skipped: skipped.Load()}, err
}

func upload(ctx context.Context, dst ObjectWriter, root string, key string) error {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(key)))
	if err != nil {
		return err
	}
	defer f.Close()

	return dst.Put(ctx, key, f, mime.TypeByExtension(filepath.Ext(key)))
}
