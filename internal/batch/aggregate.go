package batch

import (
	"github.com/rawblock/coref-scorer/internal/metrics"
	"github.com/rawblock/coref-scorer/pkg/models"
)

// Aggregate combines per-document reports into a corpus-level summary.
//
// For every metric, recall is averaged with the key mention counts as
// weights, precision with the response mention counts and F1 with their sum.
// The composite is recomputed from the aggregated MUC, B³ and CEAF-e F1.
// Metric order follows the first report.
func Aggregate(reports []*models.Report) *models.AggregateReport {
	out := &models.AggregateReport{
		Documents: reports,
		Metrics:   []models.MetricResult{},
	}
	if len(reports) == 0 {
		return out
	}

	for _, m := range reports[0].Metrics {
		var r, p, f, wr, wp, wf float64
		for _, report := range reports {
			s, ok := report.Metric(m.Name)
			if !ok {
				continue
			}
			g, sys := float64(report.KeyMentions), float64(report.ResponseMentions)
			r += s.Recall * g
			p += s.Precision * sys
			f += s.F1 * (g + sys)
			wr += g
			wp += sys
			wf += g + sys
		}
		out.Metrics = append(out.Metrics, models.MetricResult{
			Name: m.Name,
			Score: models.Score{
				Recall:    weighted(r, wr),
				Precision: weighted(p, wp),
				F1:        weighted(f, wf),
			},
		})
	}

	muc, okM := metricOf(out.Metrics, metrics.NameMUC)
	b3, okB := metricOf(out.Metrics, metrics.NameB3)
	ceafe, okC := metricOf(out.Metrics, metrics.NameCEAFe)
	if okM && okB && okC {
		out.CoNLL = metrics.ConllScore(muc.F1, b3.F1, ceafe.F1)
		return out
	}

	// Composite inputs not selected: weight the per-document composites
	var c, w float64
	for _, report := range reports {
		weight := float64(report.KeyMentions + report.ResponseMentions)
		c += report.CoNLL * weight
		w += weight
	}
	out.CoNLL = weighted(c, w)
	return out
}

func weighted(sum, weight float64) float64 {
	if weight == 0 {
		return 0
	}
	return sum / weight
}

func metricOf(results []models.MetricResult, name string) (models.Score, bool) {
	for _, m := range results {
		if m.Name == name {
			return m.Score, true
		}
	}
	return models.Score{}, false
}
