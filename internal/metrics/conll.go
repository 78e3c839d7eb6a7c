package metrics

import "github.com/rawblock/coref-scorer/pkg/models"

// ConllScore is the CoNLL-2012 composite: the unweighted mean of the MUC, B³
// and CEAF-e F1 scores.
func ConllScore(mucF1, bcubedF1, ceafeF1 float64) float64 {
	return (mucF1 + bcubedF1 + ceafeF1) / 3
}

// CoNLL2012 scores response against key and returns the composite.
func CoNLL2012(key, response models.Clustering) float64 {
	return ConllScore(
		MUC(key, response).F1,
		BCubed(key, response).F1,
		CEAFe(key, response).F1,
	)
}
