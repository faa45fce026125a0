package carve

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestBuildAssignmentPairsClosestFooterPerHeader(t *testing.T) {
	idx := NewCandidateIndex()
	idx.Add(Candidate{Offset: 0, Kind: HeaderJPEG, Confidence: 1})
	idx.Add(Candidate{Offset: 1000, Kind: FooterJPEG, Confidence: 1})
	idx.Add(Candidate{Offset: 5000, Kind: HeaderJPEG, Confidence: 1})
	idx.Add(Candidate{Offset: 6000, Kind: FooterJPEG, Confidence: 1})
	idx.Finalize()

	pairs, orphans := BuildAssignment(idx, JPEG, 100000, DefaultWeights())
	require.Empty(t, orphans)
	require.Len(t, pairs, 2)

	want := []Pair{
		{Header: Candidate{Offset: 0, Kind: HeaderJPEG, Confidence: 1}, Footer: Candidate{Offset: 1000, Kind: FooterJPEG, Confidence: 1}, Format: JPEG},
		{Header: Candidate{Offset: 5000, Kind: HeaderJPEG, Confidence: 1}, Footer: Candidate{Offset: 6000, Kind: FooterJPEG, Confidence: 1}, Format: JPEG},
	}
	if diff := cmp.Diff(want, pairs, cmp.Comparer(func(a, b Pair) bool {
		return a.Header == b.Header && a.Footer == b.Footer && a.Format == b.Format
	})); diff != "" {
		t.Errorf("unexpected assignment (-want +got):\n%s", diff)
	}
}

func TestBuildAssignmentOrphanWithNoReachableFooter(t *testing.T) {
	idx := NewCandidateIndex()
	idx.Add(Candidate{Offset: 0, Kind: HeaderJPEG, Confidence: 1})
	idx.Add(Candidate{Offset: 500, Kind: FooterJPEG, Confidence: 1})
	idx.Add(Candidate{Offset: 100000, Kind: HeaderJPEG, Confidence: 1}) // out of reach of any footer
	idx.Finalize()

	pairs, orphans := BuildAssignment(idx, JPEG, 1000, DefaultWeights())
	require.Len(t, pairs, 1)
	require.Len(t, orphans, 1)
	require.EqualValues(t, 100000, orphans[0].Offset)
}

func TestBuildAssignmentSharedFooterResolvedByWeight(t *testing.T) {
	idx := NewCandidateIndex()
	// Two headers compete for the same single reachable footer; the header
	// closer to it should win the match, leaving the other an orphan.
	idx.Add(Candidate{Offset: 0, Kind: HeaderJPEG, Confidence: 1})
	idx.Add(Candidate{Offset: 100, Kind: HeaderJPEG, Confidence: 1})
	idx.Add(Candidate{Offset: 200, Kind: FooterJPEG, Confidence: 1})
	idx.Finalize()

	pairs, orphans := BuildAssignment(idx, JPEG, 100000, DefaultWeights())
	require.Len(t, pairs, 1)
	require.Len(t, orphans, 1)
	require.EqualValues(t, 100, pairs[0].Header.Offset)
	require.EqualValues(t, 0, orphans[0].Offset)
}
