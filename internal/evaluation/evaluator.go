package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rawblock/coref-scorer/internal/clustering"
	"github.com/rawblock/coref-scorer/internal/metrics"
	"github.com/rawblock/coref-scorer/pkg/models"
)

var (
	// ErrUnknownMetric is returned by New for a metric name the registry does not know.
	ErrUnknownMetric = errors.New("evaluation: unknown metric")

	// ErrMetricPanic wraps a panic raised inside a metric.
	ErrMetricPanic = errors.New("evaluation: metric panicked")
)

// Evaluator scores response clusterings against key clusterings with a fixed
// set of metrics. It is safe for concurrent use.
type Evaluator struct {
	reconcile bool
	parallel  bool
	metrics   []metrics.Metric
	log       *log.Logger
	observe   func(string, time.Duration)
}

// New creates an Evaluator.
func New(opts ...Option) (*Evaluator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	selected := metrics.All()
	if len(cfg.metrics) > 0 {
		selected = make([]metrics.Metric, 0, len(cfg.metrics))
		for _, name := range cfg.metrics {
			m, ok := metrics.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
			}
			selected = append(selected, m)
		}
	}

	return &Evaluator{
		reconcile: cfg.reconcile,
		parallel:  cfg.parallel,
		metrics:   selected,
		log:       cfg.logger,
		observe:   cfg.observe,
	}, nil
}

// MetricNames returns the names of the configured metrics in report order.
func (e *Evaluator) MetricNames() []string {
	names := make([]string, len(e.metrics))
	for i, m := range e.metrics {
		names[i] = m.Name
	}
	return names
}

// Reconciles reports whether the key is extended with response-only mentions.
func (e *Evaluator) Reconciles() bool {
	return e.reconcile
}

// Evaluate scores response against key and returns the report. Neither input
// is modified.
func (e *Evaluator) Evaluate(ctx context.Context, name string, key, response models.Clustering) (*models.Report, error) {
	start := time.Now()

	if e.reconcile {
		key = clustering.Reconcile(key, response)
	}

	results := make([]models.MetricResult, len(e.metrics))
	var err error
	if e.parallel {
		err = e.evaluateParallel(ctx, key, response, results)
	} else {
		err = e.evaluateSequential(ctx, key, response, results)
	}
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ID:      uuid.New(),
		Name:    name,
		Metrics: results,
		Agreement: &models.Agreement{
			AdjustedRandIndex:      metrics.AdjustedRandIndex(key, response),
			VariationOfInformation: metrics.VariationOfInformation(key, response),
		},
		KeyMentions:      key.Size(),
		ResponseMentions: response.Size(),
		Reconciled:       e.reconcile,
		CreatedAt:        time.Now().UTC(),
	}
	report.CoNLL = conll(report, key, response)

	e.log.Debug("[Evaluation] Document scored",
		"name", name,
		"conll", report.CoNLL,
		"keyMentions", report.KeyMentions,
		"responseMentions", report.ResponseMentions,
		"elapsed", time.Since(start))
	return report, nil
}

func (e *Evaluator) evaluateSequential(ctx context.Context, key, response models.Clustering, results []models.MetricResult) error {
	for i, m := range e.metrics {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := e.run(m, key, response)
		if err != nil {
			return err
		}
		results[i] = models.MetricResult{Name: m.Name, Score: s}
	}
	return nil
}

// evaluateParallel runs one goroutine per metric; each writes only its own slot.
func (e *Evaluator) evaluateParallel(ctx context.Context, key, response models.Clustering, results []models.MetricResult) error {
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range e.metrics {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := e.run(m, key, response)
			if err != nil {
				return err
			}
			results[i] = models.MetricResult{Name: m.Name, Score: s}
			return nil
		})
	}
	return g.Wait()
}

// run calls the metric and converts a panic into ErrMetricPanic.
func (e *Evaluator) run(m metrics.Metric, key, response models.Clustering) (s models.Score, err error) {
	if e.observe != nil {
		start := time.Now()
		defer func() { e.observe(m.Name, time.Since(start)) }()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrMetricPanic, m.Name, r)
		}
	}()
	return m.Func(key, response), nil
}

// conll returns the composite, reusing the report's MUC, B³ and CEAF-e scores
// and computing whichever of them was not selected.
func conll(report *models.Report, key, response models.Clustering) float64 {
	f1 := func(name string, fn metrics.Func) float64 {
		if s, ok := report.Metric(name); ok {
			return s.F1
		}
		return fn(key, response).F1
	}
	return metrics.ConllScore(
		f1(metrics.NameMUC, metrics.MUC),
		f1(metrics.NameB3, metrics.BCubed),
		f1(metrics.NameCEAFe, metrics.CEAFe),
	)
}
