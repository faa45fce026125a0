package carve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHungarianMaxWeightSquare(t *testing.T) {
	weight := [][]float64{
		{1, 2},
		{3, 4},
	}
	result := hungarianMaxWeight(weight)
	require.Len(t, result, 2)

	total := 0.0
	seen := make(map[int]bool)
	for i, j := range result {
		if j < 0 {
			continue
		}
		require.False(t, seen[j], "column %d matched twice", j)
		seen[j] = true
		total += weight[i][j]
	}
	require.Equal(t, 5.0, total) // both perfect matchings (0-0,1-1) and (0-1,1-0) sum to 5
}

func TestHungarianMaxWeightRejectsNonPositive(t *testing.T) {
	weight := [][]float64{
		{0, 0},
	}
	result := hungarianMaxWeight(weight)
	require.Equal(t, []int{-1}, result)
}

func TestHungarianMaxWeightRectangular(t *testing.T) {
	weight := [][]float64{
		{5, 1, 0},
		{0, 0, 9},
	}
	result := hungarianMaxWeight(weight)
	require.Len(t, result, 2)

	assigned := make(map[int]bool)
	for _, j := range result {
		if j < 0 {
			continue
		}
		require.False(t, assigned[j])
		assigned[j] = true
	}

	total := 0.0
	for i, j := range result {
		if j >= 0 {
			total += weight[i][j]
		}
	}
	require.Equal(t, 14.0, total) // row0->col0 (5) + row1->col2 (9)
}

func TestHungarianMaxWeightEmpty(t *testing.T) {
	require.Nil(t, hungarianMaxWeight(nil))
}
