package media

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestHash(t *testing.T) {
	dir := t.TempDir()

	zeros := filepath.Join(dir, "zeros.mkv")
	if err := os.WriteFile(zeros, make([]byte, 2*ChunkSize), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Hash(zeros)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if got != "0000000000020000" {
		t.Fatalf("unexpected hash for zero file: %s", got)
	}

	// A single word in the head block is added to the size.
	data := make([]byte, 3*ChunkSize)
	binary.LittleEndian.PutUint64(data[0:8], 0x10)
	binary.LittleEndian.PutUint64(data[len(data)-8:], 0x01)
	marked := filepath.Join(dir, "marked.mkv")
	if err := os.WriteFile(marked, data, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = Hash(marked)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if got != "0000000000030011" {
		t.Fatalf("unexpected hash for marked file: %s", got)
	}
}

func TestHashTooSmall(t *testing.T) {
	small := filepath.Join(t.TempDir(), "small.mkv")
	if err := os.WriteFile(small, []byte("tiny"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Hash(small); err == nil {
		t.Fatal("expected error for file smaller than a chunk")
	}
}
