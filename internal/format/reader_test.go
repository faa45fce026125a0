package format_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/ostafen/diglet/internal/format"
	"github.com/stretchr/testify/require"
)

func pngChunk(typ string, data []byte) []byte {
	buf := make([]byte, 0, 8+len(data)+4)

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	buf = append(buf, length...)
	buf = append(buf, []byte(typ)...)
	buf = append(buf, data...)

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	sum := make([]byte, 4)
	binary.BigEndian.PutUint32(sum, crc.Sum32())
	buf = append(buf, sum...)
	return buf
}

func buildPNG(chunks ...[]byte) []byte {
	buf := []byte("\x89PNG\r\n\x1a\n")
	for _, c := range chunks {
		buf = append(buf, c...)
	}
	return buf
}

func TestValidateJPEG(t *testing.T) {
	t.Run("passed on clean SOI/SOS/EOI", func(t *testing.T) {
		data := []byte{0xff, 0xd8, 0xff, 0xda, 0x00, 0x02, 0xff, 0xd9}
		status, n := format.ValidateJPEG(format.NewReaderFrom(bytes.NewReader(data)))
		require.Equal(t, format.Passed, status)
		require.EqualValues(t, len(data), n)
	})

	t.Run("partially valid when truncated after SOS", func(t *testing.T) {
		data := []byte{0xff, 0xd8, 0xff, 0xda, 0x00, 0x02}
		status, _ := format.ValidateJPEG(format.NewReaderFrom(bytes.NewReader(data)))
		require.Equal(t, format.PartiallyValid, status)
	})

	t.Run("rejected without an SOI marker", func(t *testing.T) {
		data := []byte{0x00, 0x00, 0xff, 0xd9}
		status, _ := format.ValidateJPEG(format.NewReaderFrom(bytes.NewReader(data)))
		require.Equal(t, format.Rejected, status)
	})
}

func TestValidatePNG(t *testing.T) {
	t.Run("passed on IHDR/IDAT/IEND with correct CRCs", func(t *testing.T) {
		data := buildPNG(
			pngChunk("IHDR", make([]byte, 13)),
			pngChunk("IDAT", nil),
			pngChunk("IEND", nil),
		)
		status, n := format.ValidatePNG(format.NewReaderFrom(bytes.NewReader(data)))
		require.Equal(t, format.Passed, status)
		require.EqualValues(t, len(data), n)
	})

	t.Run("partially valid when truncated before IEND", func(t *testing.T) {
		data := buildPNG(
			pngChunk("IHDR", make([]byte, 13)),
			pngChunk("IDAT", nil),
		)
		status, _ := format.ValidatePNG(format.NewReaderFrom(bytes.NewReader(data)))
		require.Equal(t, format.PartiallyValid, status)
	})

	t.Run("rejected on a bad signature", func(t *testing.T) {
		data := append([]byte("NOTPNG00"), pngChunk("IHDR", make([]byte, 13))...)
		status, _ := format.ValidatePNG(format.NewReaderFrom(bytes.NewReader(data)))
		require.Equal(t, format.Rejected, status)
	})

	t.Run("rejected on a corrupted CRC", func(t *testing.T) {
		chunk := pngChunk("IHDR", make([]byte, 13))
		chunk[len(chunk)-1] ^= 0xff // flip a bit in the checksum
		data := buildPNG(chunk)
		status, _ := format.ValidatePNG(format.NewReaderFrom(bytes.NewReader(data)))
		require.Equal(t, format.Rejected, status)
	})
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "passed", format.Passed.String())
	require.Equal(t, "partially_valid", format.PartiallyValid.String())
	require.Equal(t, "rejected", format.Rejected.String())
}
