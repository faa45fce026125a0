package carve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ostafen/diglet/internal/device"
	"github.com/ostafen/diglet/internal/disk"
)

// Options configures one engine run, matching the external invocation
// contract: source path, output directory, formats, mode, and the optional
// tuning flags.
type Options struct {
	SourcePath    string
	OutputDir     string
	Formats       []Format
	Mode          Mode
	UnsafeMode    bool
	Debug         bool
	MaxFileSize   map[Format]uint64 // zero value per-format falls back to DefaultMaxFileSize
	BGCBudgetMs   int
	WorkerThreads int
	OnProgress    ProgressFunc
	// OnFile, when non-nil, is invoked once per durably-written recovered
	// file, in extraction order, with the path the Extraction Writer gave
	// it. Callers use this to append to a manifest or DFXML report without
	// re-deriving RecoveredFile data from disk.
	OnFile func(RecoveredFile, string)
	Logger *slog.Logger

	// Hints, when non-nil, is a scan-order collaborator discovered from
	// partition/boot-sector metadata (internal/disk.DiscoverHints). It is
	// informational only: the scanner runs a full sequential pass either
	// way (spec invariant: carving must succeed with zero hints).
	Hints *disk.Hints
}

func (o Options) maxSizeFor(f Format) uint64 {
	if o.MaxFileSize != nil {
		if v, ok := o.MaxFileSize[f]; ok && v > 0 {
			return v
		}
	}
	return DefaultMaxFileSize(f)
}

func (o Options) bgcBudget() time.Duration {
	if o.BGCBudgetMs <= 0 {
		return DefaultBGCBudget
	}
	return time.Duration(o.BGCBudgetMs) * time.Millisecond
}

// Stats summarizes a completed run for the Completed{stats} exit condition.
type Stats struct {
	FilesExtracted   uint64
	OrphansRecovered uint64
	OrphansFailed    uint64
	ElapsedMs        int64
}

// Engine drives the multi-pass carving pipeline through its state machine:
// Idle -> Scanning -> Indexed -> Matching -> Validating -> Extracting ->
// OrphanRecovery -> Done, with Aborted reachable from any state on fatal
// I/O or cancellation.
type Engine struct {
	opts     Options
	state    State
	counters *Counters
	logger   *slog.Logger
}

// NewEngine validates opts and returns an idle Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.SourcePath == "" {
		return nil, &ConfigError{Msg: "source path is required"}
	}
	if opts.OutputDir == "" {
		return nil, &ConfigError{Msg: "output directory is required"}
	}
	if len(opts.Formats) == 0 {
		return nil, &ConfigError{Msg: "at least one format must be selected"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{opts: opts, state: StateIdle, counters: NewCounters(time.Now()), logger: logger}, nil
}

func (e *Engine) transition(s State) {
	e.logger.Debug("carve: state transition", "from", e.state.String(), "to", s.String())
	e.state = s
}

// Run executes one full pass of the engine to completion or abort.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	throttle := newProgressThrottle(e.opts.OnProgress)

	r, err := device.Open(e.opts.SourcePath, device.Options{Logger: e.logger})
	if err != nil {
		e.transition(StateAborted)
		return Stats{}, fmt.Errorf("carve: opening source: %w", err)
	}
	defer r.Close()

	e.counters.SetBytesTotal(r.Size())

	if e.opts.Hints != nil {
		e.logger.Info("carve: using partition scan-order hints",
			"used_extents", len(e.opts.Hints.UsedExtents),
			"free_extents", len(e.opts.Hints.FreeExtents))
	}

	if e.opts.Mode == ModeFast {
		return e.runFast(ctx, r, throttle)
	}
	return e.runMultiPass(ctx, r, throttle)
}

func (e *Engine) runFast(ctx context.Context, r *device.Reader, throttle *progressThrottle) (Stats, error) {
	sigs := signaturesFor(e.opts.Formats)
	scanner := NewScanner(sigs, e.opts.WorkerThreads, e.logger)
	writer := NewWriter(r.ReaderAt(), e.opts.OutputDir)
	validator := NewValidator(r.ReaderAt())

	e.transition(StateScanning)
	engine := NewStreamingEngine(scanner, writer, e.opts.Formats, e.opts.UnsafeMode, e.counters)
	for _, f := range e.opts.Formats {
		engine.maxSize[f] = e.opts.maxSizeFor(f)
	}

	var extractErr error
	err := engine.Run(ctx, r, validator, func(rf RecoveredFile) {
		if extractErr == nil {
			extractErr = e.extractAll(writer, []RecoveredFile{rf})
		}
		throttle.emit(e.counters.Snapshot(), false)
	})
	if err != nil {
		e.transition(StateAborted)
		return Stats{}, e.classifyAbort(err)
	}

	if extractErr != nil {
		e.transition(StateAborted)
		return Stats{}, extractErr
	}

	e.transition(StateDone)
	snap := e.counters.Snapshot()
	throttle.emit(snap, true)
	return Stats{FilesExtracted: snap.FilesExtracted, ElapsedMs: snap.ElapsedMs}, nil
}

func (e *Engine) runMultiPass(ctx context.Context, r *device.Reader, throttle *progressThrottle) (Stats, error) {
	sigs := signaturesFor(e.opts.Formats)
	scanner := NewScanner(sigs, e.opts.WorkerThreads, e.logger)
	validator := NewValidator(r.ReaderAt())
	writer := NewWriter(r.ReaderAt(), e.opts.OutputDir)

	e.transition(StateScanning)
	e.counters.SetPass(1)
	idx, err := scanner.Scan(ctx, r, e.counters, throttle)
	if err != nil {
		e.transition(StateAborted)
		return Stats{}, e.classifyAbort(err)
	}
	e.countCandidates(idx)

	e.transition(StateIndexed)

	e.transition(StateMatching)
	e.counters.SetPass(2)
	var allRecovered []RecoveredFile
	var allOrphanHeaders, allOrphanFooters []Candidate

	for _, f := range e.opts.Formats {
		maxSize := e.opts.maxSizeFor(f)
		pairs, orphans := BuildAssignment(idx, f, maxSize, DefaultWeights())
		e.counters.AddPairsMatched(uint64(len(pairs)))
		allOrphanHeaders = append(allOrphanHeaders, orphans...)

		e.transition(StateValidating)
		recovered, rejected := e.validateAll(validator, f, pairs)
		allRecovered = append(allRecovered, recovered...)
		allOrphanHeaders = append(allOrphanHeaders, rejected...)

		allOrphanFooters = append(allOrphanFooters, unmatchedFooters(idx, f, pairs)...)
	}

	e.transition(StateExtracting)
	sort.SliceStable(allRecovered, func(i, j int) bool {
		return allRecovered[i].SourceOffset() < allRecovered[j].SourceOffset()
	})
	for i := range allRecovered {
		allRecovered[i].Sequence = writer.NextSequence()
	}
	if err := e.extractAll(writer, allRecovered); err != nil {
		e.transition(StateAborted)
		return Stats{}, err
	}

	e.transition(StateOrphanRecovery)
	e.counters.SetPass(3)
	bgc := NewBGC(validator, e.maxOrphanSize(), e.opts.bgcBudget())
	results := bgc.Recover(ctx, allOrphanHeaders, allOrphanFooters)

	var bgcFiles []RecoveredFile
	for _, res := range results {
		if !res.Recovered {
			e.counters.AddOrphansFailed(1)
			continue
		}
		e.counters.AddOrphansRecovered(1)
		second := res.Second
		bgcFiles = append(bgcFiles, RecoveredFile{
			Sequence:   writer.NextSequence(),
			Format:     res.Header.Kind.Format(),
			First:      res.First,
			Second:     &second,
			Validation: Passed,
		})
	}
	if err := e.extractAll(writer, bgcFiles); err != nil {
		e.transition(StateAborted)
		return Stats{}, err
	}

	e.transition(StateDone)
	snap := e.counters.Snapshot()
	throttle.emit(snap, true)
	return Stats{
		FilesExtracted:   snap.FilesExtracted,
		OrphansRecovered: snap.OrphansRecovered,
		OrphansFailed:    snap.OrphansFailed,
		ElapsedMs:        snap.ElapsedMs,
	}, nil
}

func (e *Engine) maxOrphanSize() uint64 {
	var max uint64
	for _, f := range e.opts.Formats {
		if v := e.opts.maxSizeFor(f); v > max {
			max = v
		}
	}
	return max
}

// validateAll runs the Structural Validator over pairs on a bounded worker
// pool, since validation of one pair is independent of every other (§5
// "Validate / extract ... run on the same pool"). Results are collected
// indexed by the pair's position so the caller sees the same per-pair
// outcome it would from a sequential pass; only the interleaving of the
// underlying re-reads is concurrent.
func (e *Engine) validateAll(validator *Validator, f Format, pairs []Pair) (recovered []RecoveredFile, rejectedHeaders []Candidate) {
	type outcome struct {
		recovered *RecoveredFile
		rejected  *Candidate
	}
	results := make([]outcome, len(pairs))

	jobs := make(chan int, len(pairs))
	for i := range pairs {
		jobs <- i
	}
	close(jobs)

	workers := DefaultScannerWorkers()
	if workers > len(pairs) {
		workers = len(pairs)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				p := pairs[i]
				rng := Range{Offset: p.Header.Offset, Length: p.Length() + footerLength(f)}
				status := Passed
				if !e.opts.UnsafeMode {
					status, _ = validator.Validate(rng, f)
				}
				if status == Rejected {
					h := p.Header
					results[i] = outcome{rejected: &h}
					continue
				}
				rf := RecoveredFile{
					Format:     f,
					First:      rng,
					Validation: status,
					Unsafe:     e.opts.UnsafeMode,
				}
				results[i] = outcome{recovered: &rf}
			}
		}()
	}
	wg.Wait()

	for _, r := range results {
		switch {
		case r.recovered != nil:
			recovered = append(recovered, *r.recovered)
		case r.rejected != nil:
			rejectedHeaders = append(rejectedHeaders, *r.rejected)
		}
	}
	return recovered, rejectedHeaders
}

// extractAll durably writes every RecoveredFile via the Writer on a bounded
// worker pool (§5: writing is per-file-independent and runs on the same
// pool as validation). The Writer's sequence numbers were already assigned
// in header-offset order before this runs, so extraction order does not
// affect the manifest's content, only the order lines are appended in
// (§8 "Determinism" permits comparing manifests after sorting by sequence).
// onFile and the shared counters are invoked under a mutex, since the
// caller's manifest/DFXML writers are not safe for concurrent use.
func (e *Engine) extractAll(writer *Writer, files []RecoveredFile) error {
	if len(files) == 0 {
		return nil
	}

	jobs := make(chan int, len(files))
	for i := range files {
		jobs <- i
	}
	close(jobs)

	workers := DefaultScannerWorkers()
	if workers > len(files) {
		workers = len(files)
	}

	var mu sync.Mutex
	var firstErr error
	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rf := files[i]
				path, err := writer.Extract(rf)

				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = &ResourceExhaustionError{Path: e.opts.OutputDir, Err: err}
					}
					mu.Unlock()
					continue
				}
				e.counters.AddFilesExtracted(1)
				if e.opts.OnFile != nil {
					e.opts.OnFile(rf, path)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}

func (e *Engine) classifyAbort(err error) error {
	var du *device.DeviceUnreadableError
	if asDeviceUnreadable(err, &du) {
		return &AbortedError{Reason: AbortDeviceUnreadable, Offset: du.Offset, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AbortedError{Reason: AbortCancelled, Err: err}
	}
	return &AbortedError{Reason: AbortDeviceUnreadable, Err: err}
}

func (e *Engine) countCandidates(idx *CandidateIndex) {
	e.counters.headersJPEG.Store(uint64(idx.Count(HeaderJPEG)))
	e.counters.headersPNG.Store(uint64(idx.Count(HeaderPNG)))
	e.counters.footersJPEG.Store(uint64(idx.Count(FooterJPEG)))
	e.counters.footersPNG.Store(uint64(idx.Count(FooterPNG)))
}

func signaturesFor(formats []Format) []Signature {
	want := make(map[Format]bool, len(formats))
	for _, f := range formats {
		want[f] = true
	}
	var sigs []Signature
	for _, s := range BuiltinSignatures() {
		if want[s.Kind.Format()] {
			sigs = append(sigs, s)
		}
	}
	return sigs
}

// unmatchedFooters returns the footers of format f not claimed by any pair.
func unmatchedFooters(idx *CandidateIndex, f Format, pairs []Pair) []Candidate {
	taken := make(map[uint64]bool, len(pairs))
	for _, p := range pairs {
		taken[p.Footer.Offset] = true
	}
	var orphans []Candidate
	for _, ftr := range idx.Footers(f) {
		if !taken[ftr.Offset] {
			orphans = append(orphans, ftr)
		}
	}
	return orphans
}
