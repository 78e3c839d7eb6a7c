package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawblock/coref-scorer/internal/evaluation"
	"github.com/rawblock/coref-scorer/internal/logger"
	"github.com/rawblock/coref-scorer/internal/metrics"
	"github.com/rawblock/coref-scorer/pkg/models"
)

const (
	goldDoc = `{"type": "clusters", "clusters": {"0": ["a", "b", "c"], "1": ["d", "e", "f", "g"]}}`
	sysDoc  = `{"type": "clusters", "clusters": {"0": ["a", "b"], "1": ["c", "d"], "2": ["f", "g", "h", "i"]}}`
	goldB   = `{"type": "graph", "mentions": ["x", "y", "z"], "links": [["x", "y"]]}`
	sysB    = `{"type": "graph", "mentions": ["x", "y", "z"], "links": [["x", "y"], ["y", "z"]]}`
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func newScanner(t *testing.T, store evaluation.ReportStore, alert func(DocumentScored)) *Scanner {
	t.Helper()
	e, err := evaluation.New(evaluation.WithLogger(logger.Discard()))
	require.NoError(t, err)
	s := NewScanner(e, store, alert)
	s.SetLogger(logger.Discard())
	return s
}

func TestPairFiles(t *testing.T) {
	keyDir := writeFiles(t, map[string]string{"doc1.gold.json": goldDoc, "doc2.json": goldB, "zzz.json": goldB})
	responseDir := writeFiles(t, map[string]string{"doc1.json": sysDoc, "doc2.json": sysB})
	require.NoError(t, os.Mkdir(filepath.Join(responseDir, "nested"), 0o755))

	pairs, err := PairFiles(keyDir, responseDir)
	require.NoError(t, err)

	require.Len(t, pairs, 2)
	assert.Equal(t, "doc1", pairs[0].Name)
	assert.Equal(t, filepath.Join(keyDir, "doc1.gold.json"), pairs[0].KeyPath)
	assert.Equal(t, filepath.Join(keyDir, "doc2.json"), pairs[1].KeyPath)
}

func TestPairFiles_NoMatchingKey(t *testing.T) {
	keyDir := writeFiles(t, map[string]string{"doc1.json": goldDoc})
	responseDir := writeFiles(t, map[string]string{"other.json": sysDoc})

	_, err := PairFiles(keyDir, responseDir)
	assert.ErrorIs(t, err, ErrNoMatchingKey)
}

type memoryStore struct {
	mu      sync.Mutex
	reports []*models.Report
}

func (m *memoryStore) SaveReport(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func TestScanner_Run(t *testing.T) {
	keyDir := writeFiles(t, map[string]string{"a.json": goldDoc, "b.json": goldB})
	responseDir := writeFiles(t, map[string]string{"a.json": sysDoc, "b.json": sysB})

	var mu sync.Mutex
	var alerts []DocumentScored
	store := &memoryStore{}
	s := newScanner(t, store, func(a DocumentScored) {
		mu.Lock()
		defer mu.Unlock()
		alerts = append(alerts, a)
	})
	s.SetWorkers(2)

	result, err := s.Run(context.Background(), keyDir, responseDir)
	require.NoError(t, err)

	require.Len(t, result.Documents, 2)
	assert.Equal(t, "a", result.Documents[0].Name)
	assert.Len(t, store.reports, 2)
	assert.Len(t, alerts, 2)

	progress := s.GetProgress()
	assert.False(t, progress.IsRunning)
	assert.Equal(t, int64(2), progress.Scanned)
	assert.Equal(t, int64(2), progress.Total)
	assert.Zero(t, progress.Failed)

	names := make([]string, len(result.Metrics))
	for i, m := range result.Metrics {
		names[i] = m.Name
	}
	assert.Equal(t, metrics.Names(), names)

	last, lastErr := s.LastResult()
	assert.NoError(t, lastErr)
	assert.Same(t, result, last)
}

func TestScanner_FailedDocumentIsSkipped(t *testing.T) {
	keyDir := writeFiles(t, map[string]string{"a.json": goldDoc, "b.json": `{"type": "tree"}`})
	responseDir := writeFiles(t, map[string]string{"a.json": sysDoc, "b.json": sysB})

	var alerts []DocumentScored
	s := newScanner(t, nil, func(a DocumentScored) { alerts = append(alerts, a) })

	result, err := s.Run(context.Background(), keyDir, responseDir)
	require.NoError(t, err)

	assert.Len(t, result.Documents, 1)
	assert.Equal(t, int64(1), s.GetProgress().Failed)
	require.Len(t, alerts, 2)
	assert.NotEmpty(t, alerts[1].Error)
}

func TestScanner_AlreadyRunning(t *testing.T) {
	keyDir := writeFiles(t, map[string]string{"a.json": goldDoc})
	responseDir := writeFiles(t, map[string]string{"a.json": sysDoc})
	s := newScanner(t, nil, nil)

	s.isRunning.Store(true)
	_, err := s.Run(context.Background(), keyDir, responseDir)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.ErrorIs(t, s.Start(context.Background(), keyDir, responseDir), ErrAlreadyRunning)
}

func TestScanner_Start(t *testing.T) {
	keyDir := writeFiles(t, map[string]string{"a.json": goldDoc, "b.json": goldB})
	responseDir := writeFiles(t, map[string]string{"a.json": sysDoc, "b.json": sysB})
	s := newScanner(t, nil, nil)

	require.NoError(t, s.Start(context.Background(), keyDir, responseDir))
	require.Eventually(t, func() bool {
		p := s.GetProgress()
		return !p.IsRunning && p.Scanned == 2
	}, 5*time.Second, 10*time.Millisecond)

	result, err := s.LastResult()
	require.NoError(t, err)
	assert.Len(t, result.Documents, 2)
}

func TestScanner_CancelledContext(t *testing.T) {
	keyDir := writeFiles(t, map[string]string{"a.json": goldDoc})
	responseDir := writeFiles(t, map[string]string{"a.json": sysDoc})
	s := newScanner(t, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := s.Run(ctx, keyDir, responseDir)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Documents)
}

func TestAggregate_Weighting(t *testing.T) {
	reports := []*models.Report{
		{
			KeyMentions: 2, ResponseMentions: 6,
			Metrics: []models.MetricResult{
				{Name: "MUC", Score: models.Score{Recall: 1, Precision: 0, F1: 0}},
				{Name: "B³", Score: models.Score{Recall: 1, Precision: 1, F1: 1}},
				{Name: "CEAF_e", Score: models.Score{Recall: 1, Precision: 1, F1: 1}},
			},
		},
		{
			KeyMentions: 6, ResponseMentions: 2,
			Metrics: []models.MetricResult{
				{Name: "MUC", Score: models.Score{Recall: 0, Precision: 1, F1: 1}},
				{Name: "B³", Score: models.Score{Recall: 0, Precision: 0, F1: 0}},
				{Name: "CEAF_e", Score: models.Score{Recall: 1, Precision: 1, F1: 1}},
			},
		},
	}

	agg := Aggregate(reports)
	require.Len(t, agg.Metrics, 3)

	muc := agg.Metrics[0].Score
	assert.InDelta(t, 0.25, muc.Recall, 1e-12)    // 2/8
	assert.InDelta(t, 0.25, muc.Precision, 1e-12) // 2/8
	assert.InDelta(t, 0.5, muc.F1, 1e-12)         // 8/16

	assert.InDelta(t, (0.5+0.5+1)/3, agg.CoNLL, 1e-12)
}

func TestAggregate_Empty(t *testing.T) {
	agg := Aggregate(nil)
	assert.Empty(t, agg.Metrics)
	assert.Zero(t, agg.CoNLL)
}
