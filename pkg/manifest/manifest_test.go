package manifest_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ostafen/diglet/pkg/manifest"
	"github.com/stretchr/testify/require"
)

func TestWriterWritesNewlineDelimitedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")

	w, err := manifest.Create(path)
	require.NoError(t, err)

	entries := []manifest.Entry{
		{Sequence: 1, Format: "jpeg", SourceOffset: 100, Length: 500, Fragments: 1, Validation: "passed", Path: "out/000001.jpg"},
		{Sequence: 2, Format: "png", SourceOffset: 2000, Length: 900, Fragments: 2, SecondOffset: 5000, SecondLength: 300, Validation: "partially_valid", Unsafe: true, Path: "out/000002.png"},
	}
	for _, e := range entries {
		require.NoError(t, w.Write(e))
	}
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, bytes.Count(data, []byte("\n")))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := manifest.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, entries, got)
}

func TestReadAllOnEmptyFile(t *testing.T) {
	got, err := manifest.ReadAll(bytes.NewReader(nil))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEntrySecondFieldsOmittedForSingleFragment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	w, err := manifest.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(manifest.Entry{Sequence: 1, Format: "jpeg", Fragments: 1, Path: "a.jpg"}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "second_offset")
	require.NotContains(t, string(data), "second_length")
}
