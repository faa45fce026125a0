package carve

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	nfatomic "github.com/natefinch/atomic"
)

// RecoveredFile is a fully-resolved carving result, ready for extraction.
// Fragments is 1 for a direct Pair or 2 for a BGC splice, in which case
// Second is the post-gap fragment concatenated after First on write.
type RecoveredFile struct {
	Sequence   uint64
	Format     Format
	First      Range
	Second     *Range
	Validation ValidationStatus
	Unsafe     bool // validation was skipped (--unsafe-mode)
}

// SourceOffset is the declared start of the recovered extent.
func (rf RecoveredFile) SourceOffset() uint64 { return rf.First.Offset }

// Length is the total recovered byte length across all fragments.
func (rf RecoveredFile) Length() uint64 {
	n := rf.First.Length
	if rf.Second != nil {
		n += rf.Second.Length
	}
	return n
}

// Writer is the Extraction Writer: the only component that creates files in
// the output directory. It re-reads declared ranges from the source (never
// from Scanner buffers) and flushes each file to durable storage before
// reporting success.
type Writer struct {
	src       io.ReaderAt
	outputDir string
	seq       atomic.Uint64
}

// NewWriter returns a Writer extracting from src into outputDir, which must
// already exist.
func NewWriter(src io.ReaderAt, outputDir string) *Writer {
	return &Writer{src: src, outputDir: outputDir}
}

// NextSequence reserves and returns the next monotonically increasing
// sequence number, reflecting header offset order when the caller drives
// extraction in that order.
func (w *Writer) NextSequence() uint64 {
	return w.seq.Add(1)
}

// Extract re-reads rf's ranges from the source and durably writes them to
// <output>/<format>_<sequence>_<hex offset>.<ext>. Writes never overwrite an
// existing file; on collision a numeric suffix is appended.
func (w *Writer) Extract(rf RecoveredFile) (path string, err error) {
	name := fmt.Sprintf("%s_%06d_%08x.%s", rf.Format, rf.Sequence, rf.SourceOffset(), rf.Format.Ext())
	path = filepath.Join(w.outputDir, name)
	path, err = w.reserveName(path)
	if err != nil {
		return "", err
	}

	r, err := w.fragmentReader(rf)
	if err != nil {
		return "", fmt.Errorf("carve: writer: %w", err)
	}

	if err := nfatomic.WriteFile(path, r); err != nil {
		return "", fmt.Errorf("carve: writer: failed to extract %s: %w", path, err)
	}
	return path, nil
}

// reserveName appends a numeric suffix until it finds a path that does not
// already exist in the output directory, which the Writer alone owns.
func (w *Writer) reserveName(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	} else if err != nil {
		return "", err
	}

	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
}

func (w *Writer) fragmentReader(rf RecoveredFile) (io.Reader, error) {
	first := io.NewSectionReader(w.src, int64(rf.First.Offset), int64(rf.First.Length))
	if rf.Second == nil {
		return first, nil
	}
	second := io.NewSectionReader(w.src, int64(rf.Second.Offset), int64(rf.Second.Length))
	return io.MultiReader(first, second), nil
}
