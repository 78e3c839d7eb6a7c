package alignment

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"
)

// bruteForceMin enumerates every injective assignment of the smaller side.
func bruteForceMin(cost [][]float64) float64 {
	n := len(cost)
	if n == 0 {
		return 0
	}
	m := len(cost[0])
	if n > m {
		t := transpose(cost, n, m)
		return bruteForceMin(t)
	}
	best := math.Inf(1)
	used := make([]bool, m)
	var rec func(i int, acc float64)
	rec = func(i int, acc float64) {
		if i == n {
			best = min(best, acc)
			return
		}
		for j := 0; j < m; j++ {
			if used[j] {
				continue
			}
			used[j] = true
			rec(i+1, acc+cost[i][j])
			used[j] = false
		}
	}
	rec(0, 0)
	return best
}

func totalCost(cost [][]float64, rows, cols []int) float64 {
	sum := 0.0
	for k := range rows {
		sum += cost[rows[k]][cols[k]]
	}
	return sum
}

func TestSolve_Square(t *testing.T) {
	cost := [][]float64{
		{4, 1, 3},
		{2, 0, 5},
		{3, 2, 2},
	}
	rows, cols, err := Solve(cost)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := totalCost(cost, rows, cols); got != 5 {
		t.Errorf("Expected optimal cost 5. Got: %f", got)
	}
	if !slices.Equal(rows, []int{0, 1, 2}) {
		t.Errorf("Expected rows in ascending order. Got: %v", rows)
	}
}

func TestSolve_Rectangular(t *testing.T) {
	tests := []struct {
		name string
		cost [][]float64
		want float64
		size int
	}{
		{"wide", [][]float64{{1, 5, 0}, {2, 0, 9}}, 0, 2},
		{"tall", [][]float64{{7}, {3}, {5}}, 3, 1},
		{"tall two columns", [][]float64{{1, 2}, {0, 4}, {5, 0}}, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, cols, err := Solve(tt.cost)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(rows) != tt.size || len(cols) != tt.size {
				t.Fatalf("Expected %d pairs. Got: rows=%v cols=%v", tt.size, rows, cols)
			}
			if got := totalCost(tt.cost, rows, cols); got != tt.want {
				t.Errorf("Expected cost %f. Got: %f", tt.want, got)
			}
			if !slices.IsSorted(rows) {
				t.Errorf("Expected ascending rows. Got: %v", rows)
			}
		})
	}
}

func TestSolve_Empty(t *testing.T) {
	for _, cost := range [][][]float64{nil, {}, {{}, {}}} {
		rows, cols, err := Solve(cost)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(rows) != 0 || len(cols) != 0 {
			t.Errorf("Expected empty alignment for %v. Got: %v %v", cost, rows, cols)
		}
	}
}

func TestSolve_Errors(t *testing.T) {
	_, _, err := Solve([][]float64{{1, math.NaN()}, {0, 1}})
	if !errors.Is(err, ErrNonFinite) {
		t.Errorf("Expected ErrNonFinite for NaN. Got: %v", err)
	}

	_, _, err = Solve([][]float64{{1, 2}, {math.Inf(-1), 1}})
	if !errors.Is(err, ErrNonFinite) {
		t.Errorf("Expected ErrNonFinite for -Inf. Got: %v", err)
	}

	_, _, err = Solve([][]float64{{1, 2}, {3}})
	if !errors.Is(err, ErrRagged) {
		t.Errorf("Expected ErrRagged. Got: %v", err)
	}
}

func TestSolve_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))

	for trial := 0; trial < 200; trial++ {
		n, m := 1+rng.IntN(6), 1+rng.IntN(6)
		cost := make([][]float64, n)
		for i := range cost {
			cost[i] = make([]float64, m)
			for j := range cost[i] {
				cost[i][j] = float64(rng.IntN(20)) - 5
			}
		}

		rows, cols, err := Solve(cost)
		if err != nil {
			t.Fatalf("trial %d: unexpected error: %v", trial, err)
		}
		if len(rows) != min(n, m) {
			t.Fatalf("trial %d: expected %d pairs. Got: %d", trial, min(n, m), len(rows))
		}
		seen := map[int]bool{}
		for _, c := range cols {
			if seen[c] {
				t.Fatalf("trial %d: column %d matched twice", trial, c)
			}
			seen[c] = true
		}
		if got, want := totalCost(cost, rows, cols), bruteForceMin(cost); got != want {
			t.Fatalf("trial %d: expected optimum %f. Got: %f\n%v", trial, want, got, cost)
		}
	}
}

func TestMaxWeight(t *testing.T) {
	score := [][]float64{
		{2, 0},
		{0, 1},
		{1, 0},
	}
	rows, cols, total, err := MaxWeight(score, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("Expected total 3. Got: %f", total)
	}
	if !slices.Equal(rows, []int{0, 1}) || !slices.Equal(cols, []int{0, 1}) {
		t.Errorf("Expected pairs (0,0) (1,1). Got: rows=%v cols=%v", rows, cols)
	}
}

func TestMaxWeight_CustomSolverError(t *testing.T) {
	boom := errors.New("boom")
	failing := SolverFunc(func([][]float64) ([]int, []int, error) { return nil, nil, boom })

	if _, _, _, err := MaxWeight([][]float64{{1}}, failing); !errors.Is(err, boom) {
		t.Errorf("Expected solver error to propagate. Got: %v", err)
	}
}
