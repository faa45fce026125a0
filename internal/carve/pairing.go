package carve

import (
	"sort"
	"sync"
)

// Weights controls the relative contribution of each scoring term in
// edge weight computation. Defaults match §4.4.
type Weights struct {
	Confidence float32
	Proximity  float32
	Entropy    float32
	Size       float32
}

// DefaultWeights returns the spec's default scoring weights.
func DefaultWeights() Weights {
	return Weights{Confidence: 0.4, Proximity: 0.25, Entropy: 0.25, Size: 0.10}
}

// Pair is a matched header/footer extent produced by the Solver.
type Pair struct {
	Header Candidate
	Footer Candidate
	Score  float32
	Format Format
}

func (p Pair) Length() uint64 {
	return p.Footer.Offset - p.Header.Offset
}

// score computes the edge weight between h and f per §4.4, rule 2.
func score(h, f Candidate, maxSize uint64, w Weights) float32 {
	conf := (h.Confidence + f.Confidence) / 2

	dist := float64(f.Offset - h.Offset)
	proximity := float32(1.0 / (1.0 + dist/float64(maxSize)))

	var entropyTerm float32
	if f.EntropyBoundary {
		entropyTerm = 1.0
	}

	sizePenalty := sizePenaltyOf(f.Offset-h.Offset, maxSize)

	return w.Confidence*conf + w.Proximity*proximity + w.Entropy*entropyTerm - w.Size*sizePenalty
}

// sizePenaltyOf penalizes implausibly tiny or implausibly large files,
// normalized to roughly [0, 1].
func sizePenaltyOf(size, maxSize uint64) float32 {
	const tinyFloor = 256 // bytes; below this a "file" is almost certainly noise
	if size < tinyFloor {
		return 1.0
	}
	ratio := float32(size) / float32(maxSize)
	if ratio > 1 {
		return 1.0
	}
	// Penalize both extremes of the plausible size range, lightly.
	return ratio * ratio * 0.3
}

// edge is a candidate header-footer connection prior to solving.
type edge struct {
	hi, fi int // indices into the band's local header/footer slices
	w      float32
}

// band is a connected component of the header-footer proximity graph:
// every header/footer in it may connect only to other members, so it can
// be solved independently of every other band (§4.4).
type band struct {
	headers []Candidate
	footers []Candidate
}

// buildBands partitions headers and footers (both sorted by offset) into
// locality bands: headers connect to any footer within maxSize following
// them, and two headers sharing a reachable footer join the same band.
func buildBands(headers, footers []Candidate, maxSize uint64) []band {
	type item struct {
		offset   uint64
		isHeader bool
		idx      int
	}
	items := make([]item, 0, len(headers)+len(footers))
	for i, h := range headers {
		items = append(items, item{offset: h.Offset, isHeader: true, idx: i})
	}
	for i, f := range footers {
		items = append(items, item{offset: f.Offset, isHeader: false, idx: i})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].offset < items[j].offset })

	var bands []band
	var curHeaders, curFooters []int
	var reach uint64
	open := false

	flush := func() {
		if !open {
			return
		}
		b := band{}
		for _, i := range curHeaders {
			b.headers = append(b.headers, headers[i])
		}
		for _, i := range curFooters {
			b.footers = append(b.footers, footers[i])
		}
		if len(b.headers) > 0 && len(b.footers) > 0 {
			bands = append(bands, b)
		}
		curHeaders, curFooters = nil, nil
		open = false
	}

	for _, it := range items {
		if open && it.offset > reach {
			flush()
		}
		if it.isHeader {
			curHeaders = append(curHeaders, it.idx)
			r := headers[it.idx].Offset + maxSize
			if !open || r > reach {
				reach = r
			}
			open = true
		} else if open {
			curFooters = append(curFooters, it.idx)
		}
	}
	flush()
	return bands
}

// solveBand runs Hungarian assignment over one band's induced subgraph,
// returning the Pairs it matched and the header indices left unmatched.
func solveBand(b band, format Format, maxSize uint64, w Weights) (pairs []Pair, orphanHeaders []Candidate) {
	weight := make([][]float64, len(b.headers))
	for i, h := range b.headers {
		weight[i] = make([]float64, len(b.footers))
		for j, f := range b.footers {
			if f.Offset <= h.Offset || f.Offset-h.Offset > maxSize {
				continue
			}
			weight[i][j] = float64(score(h, f, maxSize, w))
		}
	}

	assignment := hungarianMaxWeight(weight)

	footerTaken := make([]bool, len(b.footers))
	for i, h := range b.headers {
		j := assignment[i]
		if j < 0 {
			orphanHeaders = append(orphanHeaders, h)
			continue
		}
		f := b.footers[j]
		footerTaken[j] = true
		pairs = append(pairs, Pair{
			Header: h,
			Footer: f,
			Score:  float32(weight[i][j]),
			Format: format,
		})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Header.Offset != pairs[j].Header.Offset {
			return pairs[i].Header.Offset < pairs[j].Header.Offset
		}
		return pairs[i].Footer.Offset < pairs[j].Footer.Offset
	})
	sort.Slice(orphanHeaders, func(i, j int) bool { return orphanHeaders[i].Offset < orphanHeaders[j].Offset })

	return pairs, orphanHeaders
}

// BuildAssignment solves the Pairing Solver's contract for one format: it
// partitions candidates into locality bands and solves each with the
// Hungarian algorithm, yielding an optimal-per-band, near-optimal-overall
// Assignment plus the orphan headers left over for BGC. Bands are
// independent (§4.4), so they are solved by a work-stealing pool of
// bounded size, mirroring the Scanner's job-queue pattern (§5 "Match
// pass"); the final global sort below makes the result independent of
// whichever order the pool happens to finish bands in.
func BuildAssignment(idx *CandidateIndex, format Format, maxSize uint64, w Weights) (pairs []Pair, orphans []Candidate) {
	headers := idx.Headers(format)
	footers := idx.Footers(format)

	bands := buildBands(headers, footers, maxSize)

	type bandResult struct {
		pairs   []Pair
		orphans []Candidate
	}
	results := make([]bandResult, len(bands))

	jobs := make(chan int, len(bands))
	for i := range bands {
		jobs <- i
	}
	close(jobs)

	workers := DefaultScannerWorkers()
	if workers > len(bands) {
		workers = len(bands)
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for bi := range jobs {
				p, o := solveBand(bands[bi], format, maxSize, w)
				results[bi] = bandResult{pairs: p, orphans: o}
			}
		}()
	}
	wg.Wait()

	inBand := make(map[uint64]bool, len(headers))
	for bi, r := range results {
		pairs = append(pairs, r.pairs...)
		orphans = append(orphans, r.orphans...)
		for _, h := range bands[bi].headers {
			inBand[h.Offset] = true
		}
	}

	// Headers that never reached a band (no reachable footer at all) are
	// orphans too.
	for _, h := range headers {
		if !inBand[h.Offset] {
			orphans = append(orphans, h)
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Header.Offset != pairs[j].Header.Offset {
			return pairs[i].Header.Offset < pairs[j].Header.Offset
		}
		return pairs[i].Footer.Offset < pairs[j].Footer.Offset
	})
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Offset < orphans[j].Offset })
	return pairs, orphans
}
