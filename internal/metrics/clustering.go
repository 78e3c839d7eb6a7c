package metrics

import (
	"math"

	"github.com/rawblock/coref-scorer/pkg/models"
)

// Partition agreement measures.
//
// Unlike the coreference metrics these compare two partitions of the SAME
// universe, so both are restricted to the mentions the key and the response
// have in common. They are reported next to the CoNLL metrics and do not
// enter the composite.

// sharedMargins returns the overlap cells plus the key and response cluster
// sizes restricted to the shared universe, and the size of that universe.
func sharedMargins(key, response models.Clustering) (t *contingency, rowSums, colSums []int, n int) {
	t = newContingency(key, response)
	rowSums = make([]int, len(t.keySizes))
	colSums = make([]int, len(t.responseSizes))
	for i := range t.byKey {
		for _, cell := range t.byKey[i] {
			rowSums[i] += cell.common
			colSums[cell.other] += cell.common
			n += cell.common
		}
	}
	return t, rowSums, colSums, n
}

// AdjustedRandIndex computes the Adjusted Rand Index (ARI) between the key and
// the response over their shared mentions.
//
// ARI = (RI - Expected_RI) / (Max_RI - Expected_RI)
// where RI = (a + b) / C(n, 2)
//
//	a = number of pairs in same cluster in both partitions
//	b = number of pairs in different clusters in both partitions
//
// Values range from -1 (worse than random) to 1 (perfect agreement). 0 = random.
// Fewer than two shared mentions give 0.
func AdjustedRandIndex(key, response models.Clustering) float64 {
	t, rowSums, colSums, n := sharedMargins(key, response)
	if n < 2 {
		return 0.0
	}

	sumNijC2 := 0.0
	for i := range t.byKey {
		for _, cell := range t.byKey[i] {
			sumNijC2 += comb2(cell.common)
		}
	}

	sumAiC2 := 0.0
	for _, a := range rowSums {
		sumAiC2 += comb2(a)
	}

	sumBjC2 := 0.0
	for _, b := range colSums {
		sumBjC2 += comb2(b)
	}

	expectedIndex := (sumAiC2 * sumBjC2) / comb2(n)
	maxIndex := 0.5 * (sumAiC2 + sumBjC2)

	denominator := maxIndex - expectedIndex
	if math.Abs(denominator) < 1e-12 {
		return 1.0 // Both partitions trivial and identical
	}

	return (sumNijC2 - expectedIndex) / denominator
}

// VariationOfInformation computes the VI distance in bits between the key and
// the response over their shared mentions.
//
// VI(K, R) = H(K|R) + H(R|K)
//
// Lower is better. 0 = identical partitions.
func VariationOfInformation(key, response models.Clustering) float64 {
	t, rowSums, colSums, n := sharedMargins(key, response)
	if n < 2 {
		return 0.0
	}
	nf := float64(n)

	// H(K|R) = -Σ_ij (n_ij/n) log(n_ij / b_j)
	// H(R|K) = -Σ_ij (n_ij/n) log(n_ij / a_i)
	vi := 0.0
	for i := range t.byKey {
		for _, cell := range t.byKey[i] {
			pij := float64(cell.common) / nf
			vi -= pij * math.Log2(float64(cell.common)/float64(colSums[cell.other]))
			vi -= pij * math.Log2(float64(cell.common)/float64(rowSums[i]))
		}
	}
	return vi
}
