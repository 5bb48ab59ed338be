// Adapted from
// https://trac.opensubtitles.org/projects/opensubtitles/wiki/HashSourceCodes#GO

package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const ChunkSize = 65536 // 64k

// Hash computes the OpenSubtitles "moviehash" of the file at path: the file
// size plus the little-endian uint64 sum of its first and last 64k.
func Hash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("computing mediahash: %w", err)
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("computing mediahash: %w", err)
	}
	if sz := fi.Size(); sz < ChunkSize {
		return "", fmt.Errorf(
			"computing mediahash: file is too small: "+
				"must be at least %d bytes; found %d bytes",
			ChunkSize,
			sz,
		)
	}

	// Read head and tail blocks.
	buf := make([]byte, ChunkSize*2)
	if err := readChunk(file, 0, buf[:ChunkSize]); err != nil {
		return "", fmt.Errorf("computing mediahash: %w", err)
	}
	if err := readChunk(file, fi.Size()-ChunkSize, buf[ChunkSize:]); err != nil {
		return "", fmt.Errorf("computing mediahash: %w", err)
	}

	var nums [(ChunkSize * 2) / 8]uint64
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &nums); err != nil {
		return "", fmt.Errorf("computing mediahash: %w", err)
	}

	h := uint64(fi.Size())
	for _, num := range nums {
		h += num
	}

	return fmt.Sprintf("%016x", h), nil
}

func readChunk(file io.ReaderAt, offset int64, buf []byte) error {
	n, err := file.ReadAt(buf, offset)
	if err != nil && !(err == io.EOF && n == len(buf)) {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("invalid read %v", n)
	}
	return nil
}
