package carve

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShannonEntropy(t *testing.T) {
	require.Equal(t, 0.0, ShannonEntropy(nil))
	require.Equal(t, 0.0, ShannonEntropy(bytes.Repeat([]byte{0x41}, 256)))

	uniform := make([]byte, 256)
	for i := range uniform {
		uniform[i] = byte(i)
	}
	require.InDelta(t, 8.0, ShannonEntropy(uniform), 1e-9)
}

func TestEntropyTrackBoundaryAt(t *testing.T) {
	track := &entropyTrack{}
	track.add(0, 7.9)
	track.add(4096, 7.8)
	track.add(8192, 1.0)

	require.True(t, track.boundaryAt(4096))
	require.False(t, track.boundaryAt(0))
}

func TestEntropyTrackBoundaryAtMissingSamples(t *testing.T) {
	track := &entropyTrack{}
	require.False(t, track.boundaryAt(0))

	track.add(100, 7.0)
	require.False(t, track.boundaryAt(0))
}
