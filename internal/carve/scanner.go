package carve

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/ostafen/diglet/internal/device"
	"github.com/ostafen/diglet/pkg/table"
)

// DefaultChunkSize is the size of a scan unit read from the Block Reader.
const DefaultChunkSize = 16 << 20

// DefaultScannerWorkers caps the scanner worker pool at 8 the way the spec
// requires, regardless of how many cores the host reports.
func DefaultScannerWorkers() int {
	if n := runtime.NumCPU(); n < 8 {
		return n
	}
	return 8
}

// Scanner is the streaming signature detector: it walks a Block Reader in
// fixed, overlapping chunks and emits Candidates into a CandidateIndex. It
// is the only component that touches the bulk of the device.
type Scanner struct {
	sigs      []Signature
	table     *table.PrefixTable[SignatureKind]
	maxSigLen int
	chunkSize int
	workers   int
	logger    *slog.Logger
}

// NewScanner builds a Scanner over sigs, indexing them into a PrefixTable
// for multi-pattern matching.
func NewScanner(sigs []Signature, workers int, logger *slog.Logger) *Scanner {
	t := table.New[SignatureKind]()
	for _, s := range sigs {
		t.Insert(s.Pattern, s.Kind)
	}
	if workers <= 0 {
		workers = DefaultScannerWorkers()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		sigs:      sigs,
		table:     t,
		maxSigLen: MaxSignatureLength(sigs),
		chunkSize: DefaultChunkSize,
		workers:   workers,
		logger:    logger,
	}
}

type scanChunk struct {
	base uint64 // absolute device offset of buf[0]
	buf  []byte
}

type scanResult struct {
	idx *CandidateIndex
	err error
}

// Scan walks r from its current position to end-of-device, dispatching
// chunks to a worker pool and merging their partial indexes. Scan order is
// always sequential; a caller holding partition hints from internal/disk
// may use them to decide which device to scan first, but the scanner itself
// runs identically with or without them.
func (s *Scanner) Scan(ctx context.Context, r *device.Reader, counters *Counters, onProgress *progressThrottle) (*CandidateIndex, error) {
	overlap := s.maxSigLen - 1
	if overlap < 0 {
		overlap = 0
	}

	jobs := make(chan scanChunk, 2*s.workers)
	results := make(chan scanResult, 2*s.workers)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobs {
				idx := s.scanChunk(chunk)
				results <- scanResult{idx: idx}
			}
		}()
	}

	// Reader goroutine: pulls aligned chunks and feeds the worker pool,
	// blocking (and thus providing backpressure) when the queue is full.
	readErrCh := make(chan error, 1)
	go func() {
		defer close(jobs)
		readErrCh <- s.readChunks(ctx, r, overlap, counters, jobs)
	}()

	// Merge goroutine: collects partial indexes as workers finish. Closing
	// results once every worker has returned lets this loop terminate.
	mergeResultCh := make(chan *CandidateIndex, 1)
	go func() {
		idx := NewCandidateIndex()
		for res := range results {
			if res.err != nil {
				continue
			}
			idx.Merge(res.idx)
		}
		mergeResultCh <- idx
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	readErr := <-readErrCh
	idx := <-mergeResultCh
	idx.Finalize()

	if readErr != nil {
		return idx, readErr
	}
	if ctx.Err() != nil {
		return idx, ctx.Err()
	}
	return idx, nil
}

func (s *Scanner) readChunks(ctx context.Context, r *device.Reader, overlap int, counters *Counters, jobs chan<- scanChunk) error {
	buf := make([]byte, s.chunkSize+overlap)
	carry := 0 // bytes of overlap carried from the previous chunk, at buf[0:carry]

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.ReadNext(buf[carry:])
		if err != nil {
			var unreadable *device.DeviceUnreadableError
			if ok := asDeviceUnreadable(err, &unreadable); ok {
				return unreadable
			}
			return fmt.Errorf("carve: scan read failed: %w", err)
		}
		if n == 0 {
			return nil
		}

		total := carry + n
		base := r.Position() - uint64(total)

		chunkBuf := make([]byte, total)
		copy(chunkBuf, buf[:total])

		jobs <- scanChunk{base: base, buf: chunkBuf}

		if counters != nil {
			counters.AddBytesProcessed(uint64(n))
		}

		if overlap > 0 && total >= overlap {
			copy(buf[:overlap], chunkBuf[total-overlap:])
			carry = overlap
		} else {
			carry = 0
		}
	}
}

func asDeviceUnreadable(err error, target **device.DeviceUnreadableError) bool {
	if du, ok := err.(*device.DeviceUnreadableError); ok {
		*target = du
		return true
	}
	return false
}

// scanChunk runs the multi-pattern matcher and entropy sampler over a single
// chunk, returning the Candidates found. Candidates near chunk boundaries
// may be emitted by two adjacent chunks; CandidateIndex.Finalize dedups by
// (kind, offset).
func (s *Scanner) scanChunk(chunk scanChunk) *CandidateIndex {
	idx := NewCandidateIndex()
	buf := chunk.buf

	var track entropyTrack
	for off := 0; off+DefaultEntropyWindow <= len(buf); off += DefaultEntropyWindow {
		window := buf[off : off+DefaultEntropyWindow]
		track.add(chunk.base+uint64(off), ShannonEntropy(window))
	}

	for i := range buf {
		end := i + s.maxSigLen
		if end > len(buf) {
			end = len(buf)
		}
		s.table.Walk(buf[i:end], func(kind SignatureKind) bool {
			c := Candidate{
				Offset:     chunk.base + uint64(i),
				Kind:       kind,
				Confidence: confidence(buf, i, kind),
			}
			if !kind.IsHeader() {
				c.EntropyBoundary = track.boundaryAt(c.Offset)
			}
			idx.Add(c)
			return false // a position matches at most one signature
		})
	}
	return idx
}

// confidence scores a match by its immediate byte context, per §4.2.
func confidence(buf []byte, i int, kind SignatureKind) float32 {
	switch kind {
	case HeaderJPEG:
		if i+3 < len(buf) && jpegMarkerBoost[buf[i+3]] {
			return 0.9
		}
		return 0.6
	case FooterJPEG:
		if i > 0 && buf[i-1] != 0xFF {
			return 0.85
		}
		return 0.5
	case HeaderPNG:
		return 0.95
	case FooterPNG:
		return 0.9
	default:
		return 0.5
	}
}
