package carve

import "math"

// hungarianMaxWeight solves maximum-weight bipartite matching over a dense
// cost matrix via the Kuhn-Munkres (Hungarian) algorithm, O(n^3) in the
// larger side's dimension. weight[i][j] is the score of matching row i to
// column j; a row or column may be left unmatched. Rows are headers,
// columns are footers within one locality band — bands are kept small by
// construction (§4.4), which is what keeps the cubic cost affordable.
//
// Returns, for each row index, the matched column index or -1 if unmatched.
func hungarianMaxWeight(weight [][]float64) []int {
	n := len(weight)
	if n == 0 {
		return nil
	}
	m := len(weight[0])

	// Pad to a square matrix; padding cells carry zero weight so they are
	// never preferred over a real match (all real weights here are >= 0).
	size := n
	if m > size {
		size = m
	}
	cost := make([][]float64, size)
	for i := range cost {
		cost[i] = make([]float64, size)
		for j := range cost[i] {
			if i < n && j < m {
				// Minimize negative weight to turn this into a max-weight solve.
				cost[i][j] = -weight[i][j]
			}
		}
	}

	rowMatch, _ := hungarianMinCost(cost)

	result := make([]int, n)
	for i := range result {
		result[i] = -1
	}
	for i := 0; i < n; i++ {
		j := rowMatch[i]
		if j >= 0 && j < m && weight[i][j] > 0 {
			result[i] = j
		}
	}
	return result
}

// hungarianMinCost is the classical O(n^3) primal-dual Hungarian algorithm
// for a square cost matrix, using the Jonker-Volgenant style potential
// update. Returns the row->column assignment and its total cost.
func hungarianMinCost(cost [][]float64) ([]int, float64) {
	n := len(cost)
	const inf = math.MaxFloat64 / 2

	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1) // p[j] = row matched to column j (1-indexed), 0 = unmatched
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = inf
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	rowMatch := make([]int, n)
	for i := range rowMatch {
		rowMatch[i] = -1
	}
	total := 0.0
	for j := 1; j <= n; j++ {
		if p[j] != 0 {
			rowMatch[p[j]-1] = j - 1
			total += cost[p[j]-1][j-1]
		}
	}
	return rowMatch, total
}
