package carve

import "sort"

// Candidate is an immutable record of a Signature match at an absolute
// device offset. Created only by the Scanner.
type Candidate struct {
	Offset          uint64
	Kind            SignatureKind
	Confidence      float32
	EntropyBoundary bool
}

// CandidateIndex stores Candidates sorted strictly ascending by offset,
// partitioned by kind. It is built single-writer during the scan pass and
// read-only thereafter.
type CandidateIndex struct {
	byKind [4][]Candidate
}

// NewCandidateIndex returns an empty index.
func NewCandidateIndex() *CandidateIndex {
	return &CandidateIndex{}
}

// Add appends c to its kind's sequence. Callers must call Finalize once all
// Candidates from every scanner worker have been merged, before querying.
func (idx *CandidateIndex) Add(c Candidate) {
	idx.byKind[c.Kind] = append(idx.byKind[c.Kind], c)
}

// Merge folds another index's candidates into idx, used to combine the
// per-worker partial indexes produced by parallel chunk scanning.
func (idx *CandidateIndex) Merge(other *CandidateIndex) {
	for k := range other.byKind {
		idx.byKind[k] = append(idx.byKind[k], other.byKind[k]...)
	}
}

// Finalize sorts every kind's sequence by offset and removes any duplicate
// (kind, offset) pairs introduced by overlapping chunk boundaries.
func (idx *CandidateIndex) Finalize() {
	for k := range idx.byKind {
		seq := idx.byKind[k]
		sort.Slice(seq, func(i, j int) bool { return seq[i].Offset < seq[j].Offset })
		idx.byKind[k] = dedupByOffset(seq)
	}
}

func dedupByOffset(seq []Candidate) []Candidate {
	if len(seq) == 0 {
		return seq
	}
	out := seq[:1]
	for _, c := range seq[1:] {
		if c.Offset != out[len(out)-1].Offset {
			out = append(out, c)
		}
	}
	return out
}

func headerKind(f Format) SignatureKind {
	if f == JPEG {
		return HeaderJPEG
	}
	return HeaderPNG
}

func footerKind(f Format) SignatureKind {
	if f == JPEG {
		return FooterJPEG
	}
	return FooterPNG
}

// Headers returns the sorted header Candidates for format.
func (idx *CandidateIndex) Headers(f Format) []Candidate {
	return idx.byKind[headerKind(f)]
}

// Footers returns the sorted footer Candidates for format.
func (idx *CandidateIndex) Footers(f Format) []Candidate {
	return idx.byKind[footerKind(f)]
}

// FootersIn returns the subrange of Footers(f) whose offset lies in
// (lo, hi], via binary search over the sorted sequence.
func (idx *CandidateIndex) FootersIn(f Format, lo, hi uint64) []Candidate {
	footers := idx.Footers(f)
	start := sort.Search(len(footers), func(i int) bool { return footers[i].Offset > lo })
	end := sort.Search(len(footers), func(i int) bool { return footers[i].Offset > hi })
	if start >= end {
		return nil
	}
	return footers[start:end]
}

// Count returns the total number of candidates of kind k.
func (idx *CandidateIndex) Count(k SignatureKind) int {
	return len(idx.byKind[k])
}
