package carve

import (
	"io"

	"github.com/ostafen/diglet/internal/format"
	"github.com/ostafen/diglet/pkg/reader"
)

// ValidationStatus mirrors format.Status under the carve package's own
// naming, since the Validator is where the spec's Passed/PartiallyValid/
// Rejected vocabulary is authoritative.
type ValidationStatus = format.Status

const (
	Rejected       = format.Rejected
	PartiallyValid = format.PartiallyValid
	Passed         = format.Passed
)

// Range is a byte extent on the source device, as used by the Validator and
// the Writer.
type Range struct {
	Offset uint64
	Length uint64
}

// Validator is a pure function of the declared byte range(s) and format: it
// re-reads the source via a ReaderAt (never the Scanner's buffers) and
// walks the JPEG marker stream or PNG chunk stream.
type Validator struct {
	src io.ReaderAt
}

// NewValidator returns a Validator that re-reads from src.
func NewValidator(src io.ReaderAt) *Validator {
	return &Validator{src: src}
}

// Validate walks a single contiguous range.
func (v *Validator) Validate(rng Range, format_ Format) (ValidationStatus, uint64) {
	return v.validateReader(io.NewSectionReader(v.src, int64(rng.Offset), int64(rng.Length)), format_)
}

// ValidateGather walks a two-fragment gather-list, as BGC requires: the
// bytes of first followed immediately by the bytes of second, as if the gap
// between them had been spliced out.
func (v *Validator) ValidateGather(first, second Range, format_ Format) (ValidationStatus, uint64) {
	r1 := io.NewSectionReader(v.src, int64(first.Offset), int64(first.Length))
	r2 := io.NewSectionReader(v.src, int64(second.Offset), int64(second.Length))
	multi := reader.NewMultiReadSeeker(
		[]io.ReadSeeker{r1, r2},
		[]int64{int64(first.Length), int64(second.Length)},
	)
	return v.validateReader(multi, format_)
}

func (v *Validator) validateReader(src io.Reader, f Format) (ValidationStatus, uint64) {
	r := format.NewReaderFrom(src)
	switch f {
	case JPEG:
		return format.ValidateJPEG(r)
	case PNG:
		return format.ValidatePNG(r)
	default:
		return Rejected, 0
	}
}
