package objstore

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrObjectNotFound is returned by Open for keys with no object behind them.
var ErrObjectNotFound = errors.New("object not found")

type ObjectReader interface {
	Open(key string) (io.ReadCloser, error)
}

type LocalFSObjectReader struct {
	basePath string
}

func NewLocalFSObjectReader(basePath string) *LocalFSObjectReader {
	return &LocalFSObjectReader{basePath: basePath}
}

func (r *LocalFSObjectReader) Open(key string) (io.ReadCloser, error) {
	clean, ok := CleanKey(key)
	if !ok {
		return nil, ErrObjectNotFound
	}
	f, err := os.Open(filepath.Join(r.basePath, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close() // nolint: errcheck
		return nil, err
	}
	if !st.Mode().IsRegular() {
		f.Close() // nolint: errcheck
		return nil, ErrObjectNotFound
	}
	return f, nil
}

// CleanKey normalizes a slash separated key. Keys that would leave the store
// root or name a hidden file are rejected.
func CleanKey(key string) (string, bool) {
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "" {
		return "", false
	}
	for _, part := range strings.Split(clean, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	return clean, true
}
