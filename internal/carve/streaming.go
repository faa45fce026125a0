package carve

import (
	"context"
	"fmt"

	"github.com/ostafen/diglet/internal/device"
)

// StreamingEngine implements the Fast path: a single forward walk that opens
// an in-flight context on a header match and closes it on the first
// compatible footer within MaxFileSize, validating and extracting in place.
// It never computes entropy boundaries, never attempts BGC, and never
// performs a global assignment; it trades recovery rate on fragmented media
// for roughly 2x the throughput of the multi-pass engine.
type StreamingEngine struct {
	scanner  *Scanner
	writer   *Writer
	formats  []Format
	maxSize  map[Format]uint64
	unsafe   bool
	counters *Counters
}

// NewStreamingEngine builds a Fast-path engine over the given formats.
func NewStreamingEngine(scanner *Scanner, writer *Writer, formats []Format, unsafe bool, counters *Counters) *StreamingEngine {
	maxSize := make(map[Format]uint64, len(formats))
	for _, f := range formats {
		maxSize[f] = DefaultMaxFileSize(f)
	}
	return &StreamingEngine{scanner: scanner, writer: writer, formats: formats, maxSize: maxSize, unsafe: unsafe, counters: counters}
}

type inFlight struct {
	header Candidate
}

// Run walks r once, extracting files as headers and footers are paired in
// stream order, and appends a manifest.Entry-shaped RecoveredFile for each
// one to onFile.
func (e *StreamingEngine) Run(ctx context.Context, r *device.Reader, validator *Validator, onFile func(RecoveredFile)) error {
	open := make(map[Format]*inFlight, len(e.formats))

	overlap := e.scanner.maxSigLen - 1
	if overlap < 0 {
		overlap = 0
	}
	buf := make([]byte, e.scanner.chunkSize+overlap)
	carry := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.ReadNext(buf[carry:])
		if err != nil {
			return fmt.Errorf("carve: fast path read failed: %w", err)
		}
		if n == 0 {
			return nil
		}

		total := carry + n
		base := r.Position() - uint64(total)
		chunk := buf[:total]

		for i := 0; i < len(chunk); i++ {
			offset := base + uint64(i)

			// A header with no footer found within MaxFileSize is discarded
			// (§4.8): since offsets only increase, once the distance from an
			// open header exceeds its format's limit it can never produce a
			// valid pair, so drop it here rather than leaving it open forever
			// and silently blocking recovery of every later file of that
			// format.
			for _, f := range e.formats {
				if fctx := open[f]; fctx != nil && offset-fctx.header.Offset > e.maxSize[f] {
					open[f] = nil
				}
			}

			end := i + e.scanner.maxSigLen
			if end > len(chunk) {
				end = len(chunk)
			}
			e.scanner.table.Walk(chunk[i:end], func(kind SignatureKind) bool {
				f := kind.Format()
				if kind.IsHeader() {
					if open[f] == nil {
						open[f] = &inFlight{header: Candidate{Offset: offset, Kind: kind, Confidence: confidence(chunk, i, kind)}}
						if e.counters != nil {
							e.counters.AddHeaderFound(f)
						}
					}
					return false
				}

				if e.counters != nil {
					e.counters.AddFooterFound(f)
				}
				fctx := open[f]
				if fctx == nil {
					return false
				}
				if offset <= fctx.header.Offset || offset-fctx.header.Offset > e.maxSize[f] {
					return false
				}

				length := offset - fctx.header.Offset + footerLength(f)
				rng := Range{Offset: fctx.header.Offset, Length: length}

				status := Passed
				if !e.unsafe {
					status, _ = validator.Validate(rng, f)
				}
				if status == Rejected {
					return false
				}

				rf := RecoveredFile{
					Sequence:   e.writer.NextSequence(),
					Format:     f,
					First:      rng,
					Validation: status,
					Unsafe:     e.unsafe,
				}
				open[f] = nil
				onFile(rf)
				return false
			})
		}

		if e.counters != nil {
			e.counters.AddBytesProcessed(uint64(n))
		}

		if overlap > 0 && total >= overlap {
			copy(buf[:overlap], chunk[total-overlap:])
			carry = overlap
		} else {
			carry = 0
		}
	}
}
