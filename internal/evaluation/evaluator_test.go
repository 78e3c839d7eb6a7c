package evaluation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawblock/coref-scorer/internal/logger"
	"github.com/rawblock/coref-scorer/internal/metrics"
	"github.com/rawblock/coref-scorer/pkg/models"
)

func literature() (models.Clustering, models.Clustering) {
	return models.Clustering{{"a", "b", "c"}, {"d", "e", "f", "g"}},
		models.Clustering{{"a", "b"}, {"c", "d"}, {"f", "g", "h", "i"}}
}

func TestEvaluate_RegistryOrderAndComposite(t *testing.T) {
	key, response := literature()
	e, err := New(WithReconcile(false), WithLogger(logger.Discard()))
	require.NoError(t, err)

	report, err := e.Evaluate(context.Background(), "doc", key, response)
	require.NoError(t, err)

	names := make([]string, len(report.Metrics))
	for i, m := range report.Metrics {
		names[i] = m.Name
	}
	assert.Equal(t, metrics.Names(), names)
	assert.InDelta(t, metrics.CoNLL2012(key, response), report.CoNLL, 1e-12)
	assert.Equal(t, 7, report.KeyMentions)
	assert.Equal(t, 8, report.ResponseMentions)
	assert.False(t, report.Reconciled)
	assert.NotNil(t, report.Agreement)
	assert.Equal(t, "doc", report.Name)

	muc, ok := report.Metric("MUC")
	require.True(t, ok)
	assert.InDelta(t, 0.4, muc.F1, 1e-12)
}

func TestEvaluate_ReconcileAddsResponseMentions(t *testing.T) {
	key, response := literature()
	e, err := New(WithLogger(logger.Discard()))
	require.NoError(t, err)

	report, err := e.Evaluate(context.Background(), "doc", key, response)
	require.NoError(t, err)

	// h and i are added to the key as singletons
	assert.Equal(t, 9, report.KeyMentions)
	assert.True(t, report.Reconciled)
	assert.Len(t, key, 2, "key must not be modified")

	reconciled := append(key.Clone(), models.Cluster{"h"}, models.Cluster{"i"})
	b3, _ := report.Metric("B³")
	assert.Equal(t, metrics.BCubed(reconciled, response), b3)
}

func TestEvaluate_ParallelMatchesSequential(t *testing.T) {
	key, response := literature()
	seq, err := New(WithLogger(logger.Discard()))
	require.NoError(t, err)
	par, err := New(WithParallel(true), WithLogger(logger.Discard()))
	require.NoError(t, err)

	a, err := seq.Evaluate(context.Background(), "doc", key, response)
	require.NoError(t, err)
	b, err := par.Evaluate(context.Background(), "doc", key, response)
	require.NoError(t, err)

	assert.Equal(t, a.Metrics, b.Metrics)
	assert.Equal(t, a.CoNLL, b.CoNLL)
}

func TestEvaluate_ConcurrentCallers(t *testing.T) {
	key, response := literature()
	e, err := New(WithParallel(true), WithLogger(logger.Discard()))
	require.NoError(t, err)
	want, err := e.Evaluate(context.Background(), "doc", key, response)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Evaluate(context.Background(), "doc", key, response)
			if assert.NoError(t, err) {
				assert.Equal(t, want.Metrics, got.Metrics)
			}
		}()
	}
	wg.Wait()
}

func TestNew_MetricSelection(t *testing.T) {
	e, err := New(WithMetrics("lea", "b_cubed"), WithLogger(logger.Discard()))
	require.NoError(t, err)
	assert.Equal(t, []string{"LEA", "B³"}, e.MetricNames())

	// The composite is still available when its inputs are not selected
	key, response := literature()
	report, err := e.Evaluate(context.Background(), "doc", key, response)
	require.NoError(t, err)
	assert.Len(t, report.Metrics, 2)
	assert.InDelta(t, metrics.CoNLL2012(clusteringReconciled(key, response), response), report.CoNLL, 1e-12)

	_, err = New(WithMetrics("rouge"))
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func clusteringReconciled(key, response models.Clustering) models.Clustering {
	return append(key.Clone(), models.Cluster{"h"}, models.Cluster{"i"})
}

func TestEvaluate_CancelledContext(t *testing.T) {
	key, response := literature()
	e, err := New(WithLogger(logger.Discard()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Evaluate(ctx, "doc", key, response)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_PanicBecomesError(t *testing.T) {
	boom := metrics.Metric{Name: "boom", Func: func(_, _ models.Clustering) models.Score { panic("bad") }}
	_, err := (&Evaluator{}).run(boom, nil, nil)
	assert.ErrorIs(t, err, ErrMetricPanic)

	e := &Evaluator{parallel: true, metrics: []metrics.Metric{boom}, log: logger.Discard()}
	_, err = e.Evaluate(context.Background(), "doc", nil, nil)
	assert.True(t, errors.Is(err, ErrMetricPanic))
}

func TestEvaluate_ObserverSeesEveryMetric(t *testing.T) {
	key, response := literature()

	var mu sync.Mutex
	seen := map[string]int{}
	e, err := New(
		WithLogger(logger.Discard()),
		WithParallel(true),
		WithObserver(func(name string, elapsed time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			seen[name]++
			assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		}),
	)
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "doc", key, response)
	require.NoError(t, err)

	for _, name := range e.MetricNames() {
		assert.Equal(t, 1, seen[name], name)
	}
}
