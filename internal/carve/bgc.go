package carve

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultBGCBudget is the per-orphan wall-clock budget: exceeding it marks
// the orphan Failed rather than continuing the gap search indefinitely.
const DefaultBGCBudget = 250 * time.Millisecond

// BGCResult is the outcome of attempting to recover one orphan header via
// bifragment gap carving.
type BGCResult struct {
	Header    Candidate
	Recovered bool
	First     Range
	Second    Range
	Footer    Candidate
}

// gapLadder returns the geometric ladder of offsets BGC explores for a gap
// boundary, per §4.6: 4 KiB, 16 KiB, 64 KiB, 256 KiB, ... up to limit.
func gapLadder(limit uint64) []uint64 {
	var ladder []uint64
	for step := uint64(4 << 10); step < limit; step *= 4 {
		ladder = append(ladder, step)
	}
	if limit > 0 {
		ladder = append(ladder, limit)
	}
	return ladder
}

// BGC recovers orphan headers by splicing two fragments around a
// hypothesized overwritten gap. Orphan headers compete for the same footer
// pool; a footer already claimed by an earlier (lower header offset) orphan
// is not reused, resolving contention first-come per the spec's chosen
// tie-break.
type BGC struct {
	validator *Validator
	maxSize   uint64
	budget    time.Duration
}

// NewBGC returns a BGC engine validating candidate splices with v.
func NewBGC(v *Validator, maxSize uint64, budget time.Duration) *BGC {
	if budget <= 0 {
		budget = DefaultBGCBudget
	}
	return &BGC{validator: v, maxSize: maxSize, budget: budget}
}

// Recover attempts BGC on every orphan header against the pool of orphan
// footers (candidates unmatched by the Pairing Solver). Each orphan's gap
// search is independent and budget-bound (§4.6), so the bulk of the work
// runs on a bounded worker pool, orphan-parallel per §5; only the footer
// contention rule — first-come by ascending header offset (§9) — is
// resolved afterward in a cheap, single-threaded reconciliation pass, so
// the result stays deterministic for a fixed input and worker count
// regardless of goroutine scheduling. It returns one BGCResult per orphan
// header attempted.
func (b *BGC) Recover(ctx context.Context, orphanHeaders, orphanFooters []Candidate) []BGCResult {
	headers := append([]Candidate(nil), orphanHeaders...)
	sort.Slice(headers, func(i, j int) bool { return headers[i].Offset < headers[j].Offset })

	noExclusions := map[uint64]bool(nil)
	proposals := make([]BGCResult, len(headers))

	jobs := make(chan int, len(headers))
	for i := range headers {
		jobs <- i
	}
	close(jobs)

	workers := DefaultScannerWorkers()
	if workers > len(headers) {
		workers = len(headers)
	}
	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				h := headers[i]
				select {
				case <-ctx.Done():
					proposals[i] = BGCResult{Header: h, Recovered: false}
					continue
				default:
				}
				proposals[i] = b.recoverOne(h, orphanFooters, noExclusions)
			}
		}()
	}
	wg.Wait()

	// Reconcile footer contention in ascending header-offset order: the
	// first orphan to claim a footer keeps it; a later orphan proposing
	// the same footer is re-searched once with it excluded, since the
	// parallel pass above had no visibility into other orphans' claims.
	footerClaimed := make(map[uint64]bool, len(orphanFooters))
	results := make([]BGCResult, len(headers))
	for i, h := range headers {
		res := proposals[i]
		if !res.Recovered {
			results[i] = res
			continue
		}
		if !footerClaimed[res.Footer.Offset] {
			footerClaimed[res.Footer.Offset] = true
			results[i] = res
			continue
		}

		select {
		case <-ctx.Done():
			results[i] = BGCResult{Header: h, Recovered: false}
			continue
		default:
		}
		retry := b.recoverOne(h, orphanFooters, footerClaimed)
		if retry.Recovered {
			footerClaimed[retry.Footer.Offset] = true
		}
		results[i] = retry
	}
	return results
}

func (b *BGC) recoverOne(h Candidate, orphanFooters []Candidate, footerClaimed map[uint64]bool) BGCResult {
	deadline := time.Now().Add(b.budget)
	format_ := h.Kind.Format()

	candidates := make([]Candidate, 0, len(orphanFooters))
	for _, f := range orphanFooters {
		if footerClaimed[f.Offset] {
			continue
		}
		if f.Offset > h.Offset && f.Offset-h.Offset <= b.maxSize {
			candidates = append(candidates, f)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Offset < candidates[j].Offset })

	for _, f := range candidates {
		if time.Now().After(deadline) {
			break
		}

		footerLen := footerLength(format_)
		limit := f.Offset
		ladder := gapLadder(limit - h.Offset)

		for _, gapStart := range ladder {
			if time.Now().After(deadline) {
				break
			}
			start := h.Offset + gapStart
			if start >= f.Offset {
				continue
			}
			for _, gapLen := range ladder {
				if time.Now().After(deadline) {
					break
				}
				gapEnd := start + gapLen
				if gapEnd > f.Offset {
					gapEnd = f.Offset
				}
				if gapEnd <= start {
					continue
				}

				first := Range{Offset: h.Offset, Length: start - h.Offset}
				second := Range{Offset: gapEnd, Length: f.Offset + footerLen - gapEnd}

				status, _ := b.validator.ValidateGather(first, second, format_)
				if status == Passed {
					return BGCResult{Header: h, Recovered: true, First: first, Second: second, Footer: f}
				}
			}
		}
	}
	return BGCResult{Header: h, Recovered: false}
}

func footerLength(f Format) uint64 {
	if f == JPEG {
		return 2
	}
	return 8
}
