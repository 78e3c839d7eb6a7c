package metrics

import "github.com/rawblock/coref-scorer/pkg/models"

// MUC computes the link-based MUC score (Vilain et al., 1995).
//
// R = Σ_k (|k| − |p(k, R)|) / Σ_k (|k| − 1)
//
// where p(k, R) is the partition of k induced by the response: one part per
// response cluster k overlaps, plus one singleton per mention of k the
// response does not contain. P is the same with key and response swapped.
// A side made only of singletons has a zero denominator and scores 0.
func MUC(key, response models.Clustering) models.Score {
	t := newContingency(key, response)
	return score(mucRecall(t), mucRecall(t.transpose()))
}

func mucRecall(t *contingency) float64 {
	num, den := 0, 0
	for i, size := range t.keySizes {
		if size == 0 {
			continue
		}
		parts := len(t.byKey[i]) + size - t.covered(i)
		num += size - parts
		den += size - 1
	}
	return ratio(float64(num), float64(den))
}
