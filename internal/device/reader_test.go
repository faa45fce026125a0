package device_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ostafen/diglet/internal/device"
	"github.com/stretchr/testify/require"
)

func writeTempImage(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "image.dd")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestReader_ReadNextSequential(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}
	path := writeTempImage(t, data)

	r, err := device.Open(path, device.Options{})
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, uint64(len(data)), r.Size())

	buf := make([]byte, 1024)
	total := 0
	for {
		n, err := r.ReadNext(buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		total += n
	}
	require.Equal(t, len(data), total)
}

func TestReader_ReadRangeRandomAccess(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	path := writeTempImage(t, data)

	r, err := device.Open(path, device.Options{})
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 5)
	n, err := r.ReadRange(4, buf)
	require.NoError(t, err)
	require.Equal(t, "quick", string(buf[:n]))
}

func TestReader_OpenMissingFile(t *testing.T) {
	_, err := device.Open("/nonexistent/path/to/image.dd", device.Options{})
	require.ErrorIs(t, err, device.ErrNotFound)
}

func TestReader_SkipAdvancesPosition(t *testing.T) {
	data := make([]byte, 64)
	path := writeTempImage(t, data)

	r, err := device.Open(path, device.Options{})
	require.NoError(t, err)
	defer r.Close()

	r.Skip(32)
	require.Equal(t, uint64(32), r.Position())
}
