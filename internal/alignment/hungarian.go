package alignment

import (
	"errors"
	"fmt"
	"math"

	"github.com/rawblock/coref-scorer/internal/logger"
)

// Optimal Alignment (rectangular assignment problem)
//
// Given an n×m cost matrix, find a one-to-one partial matching of size
// min(n, m) minimising the total cost. Excess rows or columns stay unmatched.
//
// Implementation: Kuhn–Munkres with row/column potentials and augmenting
// shortest paths. The matrix is transposed when n > m so the outer loop runs
// over the smaller dimension:
//   - Time:  O(k²·K) with k = min(n, m), K = max(n, m)
//   - Space: O(K)
//
// This is the scaling bottleneck of CEAF for documents with very many
// entities; sizes above largeInstanceWarn are logged.

// largeInstanceWarn is the smaller dimension above which a solve is logged.
const largeInstanceWarn = 2000

var (
	// ErrNonFinite indicates a NaN or infinite cell in the cost matrix.
	ErrNonFinite = errors.New("alignment: non-finite cost")

	// ErrRagged indicates rows of different lengths.
	ErrRagged = errors.New("alignment: ragged cost matrix")
)

// Solver solves the rectangular assignment problem, minimising total cost.
// rows[i] is matched to cols[i]; rows is ascending.
type Solver interface {
	Solve(cost [][]float64) (rows, cols []int, err error)
}

// SolverFunc adapts a plain function to the Solver interface.
type SolverFunc func(cost [][]float64) (rows, cols []int, err error)

// Solve calls f(cost).
func (f SolverFunc) Solve(cost [][]float64) ([]int, []int, error) {
	return f(cost)
}

// Hungarian is the default Solver.
type Hungarian struct{}

// Solve implements Solver.
func (Hungarian) Solve(cost [][]float64) (rows, cols []int, err error) {
	n, m, err := validate(cost)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 || m == 0 {
		return []int{}, []int{}, nil
	}

	if min(n, m) > largeInstanceWarn {
		logger.Warn("[Alignment] Large assignment instance, expect cubic runtime", "rows", n, "cols", m)
	}

	if n > m {
		colOfRow := solveTall(transpose(cost, n, m))
		// colOfRow is indexed by original column; invert it
		rowToCol := make([]int, n)
		for i := range rowToCol {
			rowToCol[i] = -1
		}
		for c, r := range colOfRow {
			rowToCol[r] = c
		}
		return pairs(rowToCol)
	}
	return pairs(solveTall(cost))
}

// Solve runs the default Hungarian solver.
func Solve(cost [][]float64) (rows, cols []int, err error) {
	return Hungarian{}.Solve(cost)
}

// MaxWeight finds the alignment maximising the total of score and returns the
// matched pairs together with that total, summed from score in row order.
// A nil solver selects Hungarian.
func MaxWeight(score [][]float64, solver Solver) (rows, cols []int, total float64, err error) {
	if solver == nil {
		solver = Hungarian{}
	}
	cost := make([][]float64, len(score))
	for i, row := range score {
		cost[i] = make([]float64, len(row))
		for j, v := range row {
			cost[i][j] = -v
		}
	}

	rows, cols, err = solver.Solve(cost)
	if err != nil {
		return nil, nil, 0, err
	}
	if len(rows) != len(cols) {
		return nil, nil, 0, fmt.Errorf("alignment: solver returned %d rows and %d cols", len(rows), len(cols))
	}
	for k := range rows {
		total += score[rows[k]][cols[k]]
	}
	return rows, cols, total, nil
}

// validate checks shape and finiteness and returns the dimensions.
func validate(cost [][]float64) (n, m int, err error) {
	n = len(cost)
	if n == 0 {
		return 0, 0, nil
	}
	m = len(cost[0])
	for i, row := range cost {
		if len(row) != m {
			return 0, 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrRagged, i, len(row), m)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, fmt.Errorf("%w: cell (%d, %d) = %v", ErrNonFinite, i, j, v)
			}
		}
	}
	return n, m, nil
}

// solveTall solves an n×m problem with n <= m and returns the column matched
// to each row.
func solveTall(cost [][]float64) []int {
	n, m := len(cost), len(cost[0])
	inf := math.Inf(1)

	// 1-indexed potentials; column 0 is a virtual source
	u := make([]float64, n+1)
	v := make([]float64, m+1)
	p := make([]int, m+1)   // p[j] = row matched to column j (0 = free)
	way := make([]int, m+1) // way[j] = previous column on the augmenting path
	minv := make([]float64, m+1)
	used := make([]bool, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := 0
			for j := 1; j <= m; j++ {
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
			for j := 0; j <= m; j++ {
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

		// Augment along the path back to the virtual source
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	rowToCol := make([]int, n)
	for j := 1; j <= m; j++ {
		if p[j] != 0 {
			rowToCol[p[j]-1] = j - 1
		}
	}
	return rowToCol
}

func transpose(cost [][]float64, n, m int) [][]float64 {
	t := make([][]float64, m)
	for j := range t {
		t[j] = make([]float64, n)
		for i := 0; i < n; i++ {
			t[j][i] = cost[i][j]
		}
	}
	return t
}

// pairs converts a row→column mapping (-1 = unmatched) to parallel slices.
func pairs(rowToCol []int) (rows, cols []int, err error) {
	rows = make([]int, 0, len(rowToCol))
	cols = make([]int, 0, len(rowToCol))
	for r, c := range rowToCol {
		if c < 0 {
			continue
		}
		rows = append(rows, r)
		cols = append(cols, c)
	}
	return rows, cols, nil
}
