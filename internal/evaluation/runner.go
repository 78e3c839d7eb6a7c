package evaluation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rawblock/coref-scorer/pkg/models"
)

// ReportStore persists scoring reports.
type ReportStore interface {
	SaveReport(ctx context.Context, report *models.Report) error
}

// DefaultDivergence is the CoNLL difference above which a comparison is
// reported as divergent.
const DefaultDivergence = 1e-6

// Runner scores a candidate system side by side with a production system on
// the same key. Candidate results never replace production ones; they are
// logged and, when a store is configured, persisted for later review.
type Runner struct {
	evaluator  *Evaluator
	store      ReportStore
	divergence float64
}

// Comparison captures the diff between production and candidate scores.
type Comparison struct {
	Document   string         `json:"document"`
	Production *models.Report `json:"production"`
	Candidate  *models.Report `json:"candidate"`
	DeltaCoNLL float64        `json:"deltaConll"`
	Diverged   bool           `json:"diverged"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// NewRunner creates a runner. store may be nil.
func NewRunner(evaluator *Evaluator, store ReportStore) *Runner {
	return &Runner{
		evaluator:  evaluator,
		store:      store,
		divergence: DefaultDivergence,
	}
}

// SetDivergenceThreshold changes the CoNLL difference reported as divergent.
func (r *Runner) SetDivergenceThreshold(threshold float64) {
	r.divergence = math.Abs(threshold)
}

// Compare scores both responses against key and persists both reports.
func (r *Runner) Compare(ctx context.Context, document string, key, production, candidate models.Clustering) (*Comparison, error) {
	prodReport, err := r.evaluator.Evaluate(ctx, document+"#production", key, production)
	if err != nil {
		return nil, fmt.Errorf("production: %w", err)
	}
	candReport, err := r.evaluator.Evaluate(ctx, document+"#candidate", key, candidate)
	if err != nil {
		return nil, fmt.Errorf("candidate: %w", err)
	}

	result := &Comparison{
		Document:   document,
		Production: prodReport,
		Candidate:  candReport,
		DeltaCoNLL: candReport.CoNLL - prodReport.CoNLL,
		CreatedAt:  time.Now().UTC(),
	}
	result.Diverged = math.Abs(result.DeltaCoNLL) > r.divergence

	// Log divergences for monitoring
	if result.Diverged {
		r.evaluator.log.Warn("[Runner] DIVERGENCE",
			"document", document,
			"prodConll", prodReport.CoNLL,
			"candidateConll", candReport.CoNLL,
			"delta", result.DeltaCoNLL)
		for _, m := range prodReport.Metrics {
			if c, ok := candReport.Metric(m.Name); ok && c.F1 != m.Score.F1 {
				r.evaluator.log.Debug("[Runner] Metric divergence", "document", document, "metric", m.Name, "prodF1", m.Score.F1, "candidateF1", c.F1)
			}
		}
	}

	if r.store != nil {
		if err := r.store.SaveReport(ctx, prodReport); err != nil {
			return result, fmt.Errorf("persist production report: %w", err)
		}
		if err := r.store.SaveReport(ctx, candReport); err != nil {
			return result, fmt.Errorf("persist candidate report: %w", err)
		}
	}

	return result, nil
}
