package metrics

import "github.com/rawblock/coref-scorer/pkg/models"

// BCubed computes the mention-based B³ score (Bagga and Baldwin, 1998).
//
// R = Σ_k Σ_r |k∩r|² / |k|  /  Σ_k |k|
//
// P swaps key and response.
func BCubed(key, response models.Clustering) models.Score {
	t := newContingency(key, response)
	return score(bcubedRecall(t), bcubedRecall(t.transpose()))
}

func bcubedRecall(t *contingency) float64 {
	num, den := 0.0, 0
	for i, size := range t.keySizes {
		if size == 0 {
			continue
		}
		for _, cell := range t.byKey[i] {
			num += float64(cell.common*cell.common) / float64(size)
		}
		den += size
	}
	return ratio(num, float64(den))
}
