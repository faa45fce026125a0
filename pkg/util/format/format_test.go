package format_test

import (
	"testing"

	"github.com/ostafen/diglet/pkg/util/format"
	"github.com/stretchr/testify/require"
)

func TestParseBytes(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1024", 1024},
		{"256MB", 256 << 20},
		{"4GiB", 4 << 30},
		{"4GB", 4 << 30},
		{"1KB", 1 << 10},
		{"2TB", 2 << 40},
		{"  512mb  ", 512 << 20},
		{"1.5M", (1 << 20) + (1 << 19)},
	}
	for _, c := range cases {
		got, err := format.ParseBytes(c.in)
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, got, c.in)
	}
}

func TestParseBytesErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "MB", "12XB", "abc123"} {
		_, err := format.ParseBytes(in)
		require.Error(t, err, in)
	}
}

func TestFormatBytes(t *testing.T) {
	require.Equal(t, "0B", format.FormatBytes(0))
	require.Equal(t, "1KB", format.FormatBytes(1024))
	require.Equal(t, "1MB", format.FormatBytes(1<<20))
	require.Equal(t, "1.50MB", format.FormatBytes(1<<20+1<<19))
}
