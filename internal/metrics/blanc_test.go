package metrics

import (
	"math/rand/v2"
	"testing"

	"github.com/rawblock/coref-scorer/pkg/models"
)

func TestBLANC_FastMatchesSlow(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 42))

	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.IntN(300)
		key := randomClustering(rng, 0, n, 1+rng.IntN(n))

		// Response universe overlaps the key's but is shifted, so each side
		// has mentions the other lacks.
		shift := rng.IntN(n/4 + 1)
		m := 1 + rng.IntN(n)
		response := randomClustering(rng, shift, m, 1+rng.IntN(m))

		fast := BLANCFast(key, response)
		slow := BLANCSlow(key, response)
		if fast != slow {
			t.Fatalf("trial %d: fast and slow BLANC differ\nfast %+v\nslow %+v", trial, fast, slow)
		}
	}
}

func TestBLANC_Literature_FastMatchesSlow(t *testing.T) {
	if f, s := BLANCFast(literatureKey(), literatureResponse()), BLANCSlow(literatureKey(), literatureResponse()); f != s {
		t.Errorf("Expected identical scores. Got fast=%+v slow=%+v", f, s)
	}
}

func TestBLANC_DegenerateCases(t *testing.T) {
	one := models.Score{Recall: 1, Precision: 1, F1: 1}
	zero := models.Score{}

	tests := []struct {
		name     string
		key      models.Clustering
		response models.Clustering
		want     models.Score
	}{
		{
			// C_k empty: only the non-coreference component counts
			name:     "all singletons both sides",
			key:      models.Clustering{{"a"}, {"b"}, {"c"}},
			response: models.Clustering{{"a"}, {"b"}, {"c"}},
			want:     one,
		},
		{
			// C_k empty, N_r empty: non-coreference component is zero
			name:     "singleton key against merged response",
			key:      models.Clustering{{"a"}, {"b"}},
			response: models.Clustering{{"a", "b"}},
			want:     zero,
		},
		{
			// N_k empty: only the coreference component counts
			name:     "single key entity",
			key:      models.Clustering{{"a", "b", "c"}},
			response: models.Clustering{{"a", "b", "c"}},
			want:     one,
		},
		{
			// N_k empty, C_r empty: coreference component is zero
			name:     "single key entity split into singletons",
			key:      models.Clustering{{"a", "b"}},
			response: models.Clustering{{"a"}, {"b"}},
			want:     zero,
		},
		{
			name:     "single mention",
			key:      models.Clustering{{"a"}},
			response: models.Clustering{{"a"}},
			want:     one,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fast := BLANCFast(tt.key, tt.response)
			slow := BLANCSlow(tt.key, tt.response)
			if fast != tt.want {
				t.Errorf("Expected fast %+v. Got: %+v", tt.want, fast)
			}
			if slow != tt.want {
				t.Errorf("Expected slow %+v. Got: %+v", tt.want, slow)
			}
		})
	}
}

func TestBLANC_ResponseWithoutCorefLinks(t *testing.T) {
	// C_k non-empty, C_r empty: coreference component 0, non-coreference scored
	key := models.Clustering{{"a", "b"}, {"c"}}
	response := models.Clustering{{"a"}, {"b"}, {"c"}}

	got := BLANC(key, response)
	// N_k = {ac, bc}, N_r = {ab, ac, bc}: R_n = 1, P_n = 2/3
	wantR := (0 + 1.0) / 2
	wantP := (0 + 2.0/3.0) / 2
	wantF := (0 + f1(1, 2.0/3.0)) / 2
	if !near(got.Recall, wantR) || !near(got.Precision, wantP) || !near(got.F1, wantF) {
		t.Errorf("Expected (%f, %f, %f). Got: %+v", wantR, wantP, wantF, got)
	}
}
