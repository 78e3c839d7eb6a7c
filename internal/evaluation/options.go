package evaluation

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/rawblock/coref-scorer/internal/logger"
)

// Option configures an Evaluator.
type Option func(*config)

type config struct {
	reconcile bool
	parallel  bool
	metrics   []string
	logger    *log.Logger
	observe   func(metric string, elapsed time.Duration)
}

func defaultConfig() config {
	return config{
		reconcile: true,
		logger:    logger.Default(),
	}
}

// WithReconcile controls whether response-only mentions are added to the key
// as singletons before scoring (default: true).
func WithReconcile(on bool) Option {
	return func(c *config) {
		c.reconcile = on
	}
}

// WithParallel evaluates the metrics concurrently (default: false).
func WithParallel(on bool) Option {
	return func(c *config) {
		c.parallel = on
	}
}

// WithMetrics restricts evaluation to the named metrics, in the given order.
// Names are resolved with metrics.Lookup (default: every registered metric).
func WithMetrics(names ...string) Option {
	return func(c *config) {
		if len(names) > 0 {
			c.metrics = append([]string(nil), names...)
		}
	}
}

// WithLogger sets the logger (default: logger.Default()).
func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers a callback receiving the wall time of every metric
// computation. It may be called from several goroutines in parallel mode.
func WithObserver(fn func(metric string, elapsed time.Duration)) Option {
	return func(c *config) {
		c.observe = fn
	}
}
