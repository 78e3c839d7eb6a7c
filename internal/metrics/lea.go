package metrics

import "github.com/rawblock/coref-scorer/pkg/models"

// LEA computes the link-based entity-aware score (Moosavi and Strube, 2016).
//
// R = Σ_k |k|·res(k) / Σ_k |k|,   res(k) = Σ_r link(k∩r) / link(k)
//
// with link(n) = n(n−1)/2. A singleton key cluster has no links; it resolves
// to 1 when the same mention is also a singleton in the response and to 0
// otherwise. P swaps key and response.
func LEA(key, response models.Clustering) models.Score {
	t := newContingency(key, response)
	return score(leaRecall(t), leaRecall(t.transpose()))
}

func leaRecall(t *contingency) float64 {
	num, den := 0.0, 0
	for i, size := range t.keySizes {
		if size == 0 {
			continue
		}
		num += float64(size) * resolution(t, i)
		den += size
	}
	return ratio(num, float64(den))
}

// resolution is the fraction of key cluster i's links found in the response.
func resolution(t *contingency, i int) float64 {
	size := t.keySizes[i]
	if size == 1 {
		cells := t.byKey[i]
		if len(cells) == 1 && t.responseSizes[cells[0].other] == 1 {
			return 1
		}
		return 0
	}

	found := 0.0
	for _, cell := range t.byKey[i] {
		found += comb2(cell.common)
	}
	return found / comb2(size)
}
