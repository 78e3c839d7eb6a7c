package metrics

import (
	"fmt"

	"github.com/rawblock/coref-scorer/internal/alignment"
	"github.com/rawblock/coref-scorer/pkg/models"
)

// Similarity scores a key cluster against a response cluster from the size of
// their intersection and their own sizes.
type Similarity func(common, keySize, responseSize int) float64

// MentionSimilarity is φ3: the number of shared mentions.
func MentionSimilarity(common, _, _ int) float64 {
	return float64(common)
}

// EntitySimilarity is φ4, the Dice coefficient 2|k∩r| / (|k| + |r|).
func EntitySimilarity(common, keySize, responseSize int) float64 {
	if keySize+responseSize == 0 {
		return 0
	}
	return 2 * float64(common) / float64(keySize+responseSize)
}

// CEAF computes the Constrained Entity-Alignment F-measure (Luo, 2005) for the
// given similarity. The best one-to-one alignment A of key to response
// clusters is found with solver (Hungarian when nil), then
//
//	R = Σ_k sim(k, A(k)) / Σ_k sim(k, k)
//	P = Σ_k sim(k, A(k)) / Σ_r sim(r, r)
//
// The only possible error comes from the solver.
func CEAF(key, response models.Clustering, sim Similarity, solver alignment.Solver) (models.Score, error) {
	t := newContingency(key, response)

	matrix := make([][]float64, len(t.keySizes))
	for i, keySize := range t.keySizes {
		row := make([]float64, len(t.responseSizes))
		for j, responseSize := range t.responseSizes {
			row[j] = sim(0, keySize, responseSize)
		}
		for _, cell := range t.byKey[i] {
			row[cell.other] = sim(cell.common, keySize, t.responseSizes[cell.other])
		}
		matrix[i] = row
	}

	total := 0.0
	if len(t.keySizes) > 0 && len(t.responseSizes) > 0 {
		var err error
		_, _, total, err = alignment.MaxWeight(matrix, solver)
		if err != nil {
			return models.Score{}, fmt.Errorf("ceaf alignment: %w", err)
		}
	}

	keySelf := 0.0
	for _, size := range t.keySizes {
		keySelf += sim(size, size, size)
	}
	responseSelf := 0.0
	for _, size := range t.responseSizes {
		responseSelf += sim(size, size, size)
	}
	return score(ratio(total, keySelf), ratio(total, responseSelf)), nil
}

// CEAFm is CEAF with the mention-based similarity φ3.
func CEAFm(key, response models.Clustering) models.Score {
	return mustCEAF(key, response, MentionSimilarity)
}

// CEAFe is CEAF with the entity-based similarity φ4.
func CEAFe(key, response models.Clustering) models.Score {
	return mustCEAF(key, response, EntitySimilarity)
}

// mustCEAF panics on alignment failure. The built-in similarities always
// produce finite rectangular matrices, so an error here is a bug.
func mustCEAF(key, response models.Clustering, sim Similarity) models.Score {
	s, err := CEAF(key, response, sim, nil)
	if err != nil {
		panic(err)
	}
	return s
}
