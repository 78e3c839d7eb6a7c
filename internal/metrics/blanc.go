package metrics

import (
	"cmp"
	"slices"

	"github.com/rawblock/coref-scorer/pkg/models"
)

// BLANC (Recasens and Hovy, 2011; Luo et al., 2014 for imperfect mentions)
//
// Every unordered pair of mentions of a clustering's universe is either a
// coreference link (same cluster) or a non-coreference link. With C_k, N_k the
// key's link sets and C_r, N_r the response's:
//
//	R_c = |C_k∩C_r| / |C_k|    P_c = |C_k∩C_r| / |C_r|
//	R_n = |N_k∩N_r| / |N_k|    P_n = |N_k∩N_r| / |N_r|
//
// The score is the mean of both components. When either side has no
// coreference links the coreference component is (1, 1, 1) if both are empty
// and (0, 0, 0) otherwise; the same holds for non-coreference links. If the
// key has no coreference links only the non-coreference component is
// returned, and if it has no non-coreference links only the coreference one.
//
// Two strategies compute the same six counts:
//   - BLANCSlow enumerates every pair. O(n²) time and memory.
//   - BLANCFast derives them from cluster overlap sizes. O(n + cells).
//
// Both share blancFromCounts, so they agree bit for bit.

// BLANC is the default BLANC implementation.
func BLANC(key, response models.Clustering) models.Score {
	return BLANCFast(key, response)
}

// blancCounts holds the link counts BLANC needs.
type blancCounts struct {
	keyCoref, keyNonCoref           int // |C_k|, |N_k|
	responseCoref, responseNonCoref int // |C_r|, |N_r|
	trueCoref, trueNonCoref         int // |C_k∩C_r|, |N_k∩N_r|
}

// BLANCFast computes BLANC from the contingency table.
//
// Over the mentions U shared by both sides, a pair is non-coreferent in both
// clusterings unless one of them links it, so by inclusion–exclusion
//
//	|N_k∩N_r| = C(|U|, 2) − Σ_k C(|k∩U|, 2) − Σ_r C(|r∩U|, 2) + Σ C(n_kr, 2)
func BLANCFast(key, response models.Clustering) models.Score {
	t := newContingency(key, response)

	var c blancCounts
	keyUniverse, shared := 0, 0
	keyShared, bothLinked := 0, 0
	for i, size := range t.keySizes {
		keyUniverse += size
		c.keyCoref += pairs(size)
		covered := 0
		for _, cell := range t.byKey[i] {
			covered += cell.common
			bothLinked += pairs(cell.common)
		}
		shared += covered
		keyShared += pairs(covered)
	}
	c.keyNonCoref = pairs(keyUniverse) - c.keyCoref

	responseUniverse, responseShared := 0, 0
	for j, size := range t.responseSizes {
		responseUniverse += size
		c.responseCoref += pairs(size)
		covered := 0
		for _, cell := range t.byResponse[j] {
			covered += cell.common
		}
		responseShared += pairs(covered)
	}
	c.responseNonCoref = pairs(responseUniverse) - c.responseCoref

	c.trueCoref = bothLinked
	c.trueNonCoref = pairs(shared) - keyShared - responseShared + bothLinked

	return blancFromCounts(c)
}

type mentionPair struct{ a, b models.Mention }

// BLANCSlow computes BLANC by enumerating every mention pair of each
// clustering's universe.
func BLANCSlow(key, response models.Clustering) models.Score {
	keyLinks := linksOf(key)
	responseLinks := linksOf(response)

	var c blancCounts
	for p, coref := range keyLinks {
		if coref {
			c.keyCoref++
		} else {
			c.keyNonCoref++
		}
		other, ok := responseLinks[p]
		if !ok {
			continue
		}
		switch {
		case coref && other:
			c.trueCoref++
		case !coref && !other:
			c.trueNonCoref++
		}
	}
	for _, coref := range responseLinks {
		if coref {
			c.responseCoref++
		} else {
			c.responseNonCoref++
		}
	}
	return blancFromCounts(c)
}

// linksOf maps every pair of the clustering's sorted universe to whether it
// is a coreference link.
func linksOf(c models.Clustering) map[mentionPair]bool {
	owner := make(map[models.Mention]int, c.Size())
	for i, cluster := range c {
		for _, m := range cluster {
			if _, dup := owner[m]; !dup {
				owner[m] = i
			}
		}
	}
	universe := make([]models.Mention, 0, len(owner))
	for m := range owner {
		universe = append(universe, m)
	}
	slices.SortFunc(universe, cmp.Compare[models.Mention])

	links := make(map[mentionPair]bool, pairs(len(universe)))
	for x := 0; x < len(universe); x++ {
		for y := x + 1; y < len(universe); y++ {
			a, b := universe[x], universe[y]
			links[mentionPair{a, b}] = owner[a] == owner[b]
		}
	}
	return links
}

func blancFromCounts(c blancCounts) models.Score {
	coref := blancComponent(c.trueCoref, c.keyCoref, c.responseCoref)
	nonCoref := blancComponent(c.trueNonCoref, c.keyNonCoref, c.responseNonCoref)

	if c.keyCoref == 0 {
		return nonCoref
	}
	if c.keyNonCoref == 0 {
		return coref
	}
	return models.Score{
		Recall:    (coref.Recall + nonCoref.Recall) / 2,
		Precision: (coref.Precision + nonCoref.Precision) / 2,
		F1:        (coref.F1 + nonCoref.F1) / 2,
	}
}

// blancComponent scores one link category.
func blancComponent(common, key, response int) models.Score {
	if key == 0 || response == 0 {
		if key == response {
			return models.Score{Recall: 1, Precision: 1, F1: 1}
		}
		return models.Score{}
	}
	return score(float64(common)/float64(key), float64(common)/float64(response))
}

// pairs is the integer C(n, 2).
func pairs(n int) int {
	return n * (n - 1) / 2
}
