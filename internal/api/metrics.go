package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scoreRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coref_score_requests_total",
			Help: "Scoring requests by result (ok, invalid, error).",
		},
		[]string{"result"},
	)

	scoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coref_score_duration_seconds",
			Help:    "Wall time to score one document pair.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		},
	)

	metricDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coref_metric_duration_seconds",
			Help:    "Wall time of a single metric computation.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"metric"},
	)

	batchDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coref_batch_documents_total",
			Help: "Documents processed by batch scans, by result (scored, failed).",
		},
		[]string{"result"},
	)

	streamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coref_stream_clients",
			Help: "Connected websocket stream clients.",
		},
	)
)

// ObserveMetric records one metric computation. It is wired into evaluators
// with evaluation.WithObserver.
func ObserveMetric(metric string, elapsed time.Duration) {
	metricDuration.WithLabelValues(metric).Observe(elapsed.Seconds())
}
