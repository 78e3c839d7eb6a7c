package metrics

import (
	"math"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/rawblock/coref-scorer/internal/alignment"
	"github.com/rawblock/coref-scorer/pkg/models"
)

const eps = 1e-9

func literatureKey() models.Clustering {
	return models.Clustering{{"a", "b", "c"}, {"d", "e", "f", "g"}}
}

func literatureResponse() models.Clustering {
	return models.Clustering{{"a", "b"}, {"c", "d"}, {"f", "g", "h", "i"}}
}

// randomClustering assigns mentions first..first+n-1 to up to k clusters and
// drops the empty ones.
func randomClustering(rng *rand.Rand, first, n, k int) models.Clustering {
	buckets := make([]models.Cluster, k)
	for i := 0; i < n; i++ {
		b := rng.IntN(k)
		buckets[b] = append(buckets[b], models.Mention(strconv.Itoa(first+i)))
	}
	var out models.Clustering
	for _, c := range buckets {
		if len(c) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func withoutSingletons(c models.Clustering) models.Clustering {
	var out models.Clustering
	for _, cluster := range c {
		if len(cluster) > 1 {
			out = append(out, cluster)
		}
	}
	return out
}

func near(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestLiteratureExample(t *testing.T) {
	tests := []struct {
		name   string
		metric Func
		want   models.Score
	}{
		{"MUC", MUC, models.Score{Recall: 0.4, Precision: 0.4, F1: 0.4}},
		{"B3", BCubed, score(35.0/84.0, 0.5)},
		{"CEAF_m", CEAFm, score(4.0/7.0, 0.5)},
		{"CEAF_e", CEAFe, score(0.65, (4.0/5.0+1.0/2.0)/3.0)},
		{"BLANC", BLANC, models.Score{
			Recall:    (2.0/9.0 + 8.0/12.0) / 2,
			Precision: (2.0/8.0 + 8.0/20.0) / 2,
			F1:        (f1(2.0/9.0, 2.0/8.0) + f1(8.0/12.0, 8.0/20.0)) / 2,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.metric(literatureKey(), literatureResponse())
			if !near(got.Recall, tt.want.Recall) || !near(got.Precision, tt.want.Precision) || !near(got.F1, tt.want.F1) {
				t.Errorf("Expected %+v. Got: %+v", tt.want, got)
			}
		})
	}
}

func TestLiteratureExample_RoundedValues(t *testing.T) {
	key, response := literatureKey(), literatureResponse()

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"B3 F1", BCubed(key, response).F1, 0.45},
		{"CEAF_m F1", CEAFm(key, response).F1, 0.53},
		{"CEAF_e F1", CEAFe(key, response).F1, 0.52},
		{"BLANC F1", BLANC(key, response).F1, 0.37},
		{"CoNLL-2012", CoNLL2012(key, response), 0.46},
	}
	for _, c := range checks {
		if math.Round(c.got*100)/100 != c.want {
			t.Errorf("Expected %s to round to %.2f. Got: %f", c.name, c.want, c.got)
		}
	}
}

func TestMetricsDoNotMutateInputs(t *testing.T) {
	key, response := literatureKey(), literatureResponse()
	for _, m := range All() {
		m.Func(key, response)
	}
	if key.Size() != 7 || key[0][2] != "c" || response.Size() != 8 || response[2][3] != "i" {
		t.Errorf("Expected inputs untouched. Got key=%v response=%v", key, response)
	}
}

func TestPerfectScore(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	perfect := models.Score{Recall: 1, Precision: 1, F1: 1}

	for trial := 0; trial < 100; trial++ {
		n := 1 + rng.IntN(256)
		c := randomClustering(rng, 0, n, 1+rng.IntN(n))

		for _, m := range All() {
			if m.Name == NameMUC {
				continue
			}
			if got := m.Func(c, c); got != perfect {
				t.Fatalf("trial %d: expected %s self-score (1, 1, 1). Got: %+v", trial, m.Name, got)
			}
		}

		if nc := withoutSingletons(c); len(nc) > 0 {
			if got := MUC(nc, nc); got != perfect {
				t.Fatalf("trial %d: expected MUC self-score (1, 1, 1). Got: %+v", trial, got)
			}
		}
	}
}

func TestEmptyInputs(t *testing.T) {
	for _, m := range All() {
		got := m.Func(nil, nil)
		want := models.Score{}
		if m.Name == NameBLANC {
			want = models.Score{Recall: 1, Precision: 1, F1: 1}
		}
		if got != want {
			t.Errorf("Expected %s on empty inputs to be %+v. Got: %+v", m.Name, want, got)
		}
		if got := m.Func(literatureKey(), nil); got.Recall != 0 || got.Precision != 0 || got.F1 != 0 {
			t.Errorf("Expected %s against an empty response to be 0. Got: %+v", m.Name, got)
		}
	}
}

func TestMUC_AllSingletons(t *testing.T) {
	key := models.Clustering{{"a"}, {"b"}, {"c"}}
	response := models.Clustering{{"a", "b"}, {"c"}}

	got := MUC(key, response)
	if got.Recall != 0 || got.F1 != 0 {
		t.Errorf("Expected zero recall for an all-singleton key. Got: %+v", got)
	}
	if got.Precision != 0 {
		t.Errorf("Expected zero precision: the response link is not in the key. Got: %f", got.Precision)
	}
}

func TestLEA_Singletons(t *testing.T) {
	key := models.Clustering{{"a"}, {"b", "c"}}

	resolved := LEA(key, models.Clustering{{"a"}, {"b", "c"}})
	if resolved.Recall != 1 {
		t.Errorf("Expected a singleton matched by a singleton to resolve. Got: %+v", resolved)
	}

	merged := LEA(key, models.Clustering{{"a", "b", "c"}})
	// key: a unresolved (0·1), {b,c} fully resolved (1·2) → R = 2/3
	// response: {a,b,c} has 3 links, 1 found → P = 1/3
	if !near(merged.Recall, 2.0/3.0) || !near(merged.Precision, 1.0/3.0) {
		t.Errorf("Expected R=2/3 P=1/3. Got: %+v", merged)
	}
}

func TestCEAF_MonotoneUnderAddedOverlap(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 4))

	for trial := 0; trial < 100; trial++ {
		n := 4 + rng.IntN(40)
		key := randomClustering(rng, 0, n, 1+rng.IntN(n))
		// Response covers only a prefix of the key's mentions
		covered := 1 + rng.IntN(n-1)
		response := randomClustering(rng, 0, covered, 1+rng.IntN(covered))

		before := CEAFm(key, response).Recall

		// Add one uncovered key mention to a response cluster
		extended := response.Clone()
		j := rng.IntN(len(extended))
		extended[j] = append(extended[j], models.Mention(strconv.Itoa(covered)))

		if after := CEAFm(key, extended).Recall; after < before {
			t.Fatalf("trial %d: CEAF_m recall decreased from %f to %f", trial, before, after)
		}
	}
}

func TestCEAF_SolverErrorPropagates(t *testing.T) {
	failing := alignment.SolverFunc(func([][]float64) ([]int, []int, error) {
		return nil, nil, alignment.ErrNonFinite
	})
	_, err := CEAF(literatureKey(), literatureResponse(), MentionSimilarity, failing)
	if err == nil {
		t.Fatalf("Expected the solver error to propagate")
	}
}

func TestConllScore(t *testing.T) {
	if got := ConllScore(0.3, 0.6, 0.9); !near(got, 0.6) {
		t.Errorf("Expected mean 0.6. Got: %f", got)
	}
}

func TestRegistry(t *testing.T) {
	want := []string{"MUC", "B³", "CEAF_m", "CEAF_e", "BLANC", "LEA"}
	names := Names()
	if len(names) != len(want) {
		t.Fatalf("Expected %d metrics. Got: %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected metric %d to be %s. Got: %s", i, want[i], names[i])
		}
	}

	for alias, canonical := range map[string]string{
		"b_cubed": "B³", "BCUBED": "B³", "B³": "B³", "ceaf_e": "CEAF_e", " lea ": "LEA", "CEAF_m": "CEAF_m",
	} {
		m, ok := Lookup(alias)
		if !ok || m.Name != canonical {
			t.Errorf("Expected %q to resolve to %s. Got: %q (found=%v)", alias, canonical, m.Name, ok)
		}
	}
	if _, ok := Lookup("rouge"); ok {
		t.Errorf("Expected unknown metric lookup to fail")
	}
}
