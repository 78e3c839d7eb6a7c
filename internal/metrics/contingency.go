package metrics

import (
	"slices"

	"github.com/rawblock/coref-scorer/pkg/models"
)

// overlap is one non-zero cell of the contingency table.
type overlap struct {
	other  int // index of the cluster on the other side
	common int // number of shared mentions
}

// contingency is a sparse key × response overlap table. Every metric is built
// from it: recall reads it as is, precision reads its transpose.
//
// Mentions present on one side only have no cell; metrics treat them as
// singleton fragments of the cluster they belong to.
type contingency struct {
	keySizes      []int
	responseSizes []int
	byKey         [][]overlap // byKey[i] sorted by response index
	byResponse    [][]overlap // byResponse[j] sorted by key index
}

func newContingency(key, response models.Clustering) *contingency {
	owner := make(map[models.Mention]int, response.Size())
	for j, cluster := range response {
		for _, m := range cluster {
			if _, dup := owner[m]; !dup {
				owner[m] = j
			}
		}
	}

	t := &contingency{
		keySizes:      make([]int, len(key)),
		responseSizes: make([]int, len(response)),
		byKey:         make([][]overlap, len(key)),
		byResponse:    make([][]overlap, len(response)),
	}
	for j, cluster := range response {
		t.responseSizes[j] = len(cluster)
	}

	counts := make(map[int]int)
	for i, cluster := range key {
		t.keySizes[i] = len(cluster)
		clear(counts)
		for _, m := range cluster {
			if j, ok := owner[m]; ok {
				counts[j]++
			}
		}
		cells := make([]overlap, 0, len(counts))
		for j, c := range counts {
			cells = append(cells, overlap{other: j, common: c})
		}
		slices.SortFunc(cells, func(a, b overlap) int { return a.other - b.other })
		t.byKey[i] = cells
		for _, cell := range cells {
			t.byResponse[cell.other] = append(t.byResponse[cell.other], overlap{other: i, common: cell.common})
		}
	}
	return t
}

// transpose swaps the roles of key and response without copying cells.
func (t *contingency) transpose() *contingency {
	return &contingency{
		keySizes:      t.responseSizes,
		responseSizes: t.keySizes,
		byKey:         t.byResponse,
		byResponse:    t.byKey,
	}
}

// covered returns how many mentions of key cluster i appear in the response.
func (t *contingency) covered(i int) int {
	n := 0
	for _, cell := range t.byKey[i] {
		n += cell.common
	}
	return n
}

// score assembles a Score from recall and precision with the zero-guarded F1.
func score(recall, precision float64) models.Score {
	return models.Score{Recall: recall, Precision: precision, F1: f1(recall, precision)}
}

func f1(recall, precision float64) float64 {
	if recall+precision == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// ratio divides, returning 0 for a zero denominator.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// comb2 computes C(n, 2) = n*(n-1)/2
func comb2(n int) float64 {
	if n < 2 {
		return 0
	}
	return float64(n) * float64(n-1) / 2.0
}
