package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/rawblock/coref-scorer/internal/evaluation"
	"github.com/rawblock/coref-scorer/internal/input"
	"github.com/rawblock/coref-scorer/internal/logger"
	"github.com/rawblock/coref-scorer/pkg/models"
)

// Scanner scores every document pair of a key directory and a response
// directory, persists the reports when a store is configured and emits an
// alert per scored document.
type Scanner struct {
	evaluator *evaluation.Evaluator
	store     evaluation.ReportStore
	alertFunc func(alert DocumentScored) // Optional broadcast callback, called from worker goroutines
	log       *log.Logger
	workers   int

	// Progress tracking (atomic for safe concurrent reads)
	current    atomic.Value // string
	scanned    atomic.Int64
	total      atomic.Int64
	failed     atomic.Int64
	isRunning  atomic.Bool
	cancelMu   sync.Mutex
	cancelScan context.CancelFunc
	resultMu   sync.Mutex
	lastResult *models.AggregateReport
	lastErr    error
}

// DocumentScored is the notification emitted after each document.
type DocumentScored struct {
	Name             string  `json:"name"`
	ReportID         string  `json:"reportId,omitempty"`
	CoNLL            float64 `json:"conll"`
	KeyMentions      int     `json:"keyMentions"`
	ResponseMentions int     `json:"responseMentions"`
	Error            string  `json:"error,omitempty"`
	Scanned          int64   `json:"scanned"`
	Total            int64   `json:"total"`
	Timestamp        string  `json:"timestamp"`
}

// Progress represents the scanner's current state for the API.
type Progress struct {
	IsRunning bool   `json:"isRunning"`
	Current   string `json:"current"`
	Scanned   int64  `json:"scanned"`
	Total     int64  `json:"total"`
	Failed    int64  `json:"failed"`
}

// NewScanner creates a scanner. store and alertFunc may be nil.
func NewScanner(evaluator *evaluation.Evaluator, store evaluation.ReportStore, alertFunc func(DocumentScored)) *Scanner {
	s := &Scanner{
		evaluator: evaluator,
		store:     store,
		alertFunc: alertFunc,
		log:       logger.Default(),
		workers:   1,
	}
	s.current.Store("")
	return s
}

// SetLogger replaces the scanner's logger.
func (s *Scanner) SetLogger(l *log.Logger) {
	if l != nil {
		s.log = l
	}
}

// SetWorkers sets how many documents are scored concurrently (default 1).
func (s *Scanner) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// GetProgress returns the current scanning progress (thread-safe).
func (s *Scanner) GetProgress() Progress {
	return Progress{
		IsRunning: s.isRunning.Load(),
		Current:   s.current.Load().(string),
		Scanned:   s.scanned.Load(),
		Total:     s.total.Load(),
		Failed:    s.failed.Load(),
	}
}

// LastResult returns the outcome of the most recent finished scan.
func (s *Scanner) LastResult() (*models.AggregateReport, error) {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()
	return s.lastResult, s.lastErr
}

// Run scores the directories synchronously and returns the aggregate.
func (s *Scanner) Run(ctx context.Context, keyDir, responseDir string) (*models.AggregateReport, error) {
	pairs, err := PairFiles(keyDir, responseDir)
	if err != nil {
		return nil, err
	}
	if !s.isRunning.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer s.isRunning.Store(false)

	return s.scan(ctx, pairs)
}

// Start pairs the files, then scores them in the background. Pairing errors
// and ErrAlreadyRunning are returned immediately; the aggregate is available
// from LastResult once the scan ends.
func (s *Scanner) Start(ctx context.Context, keyDir, responseDir string) error {
	pairs, err := PairFiles(keyDir, responseDir)
	if err != nil {
		return err
	}
	if !s.isRunning.CompareAndSwap(false, true) {
		s.log.Warn("[Batch] Scan already in progress, ignoring duplicate request")
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelMu.Lock()
	s.cancelScan = cancel
	s.cancelMu.Unlock()

	go func() {
		defer s.isRunning.Store(false)
		defer cancel()
		_, _ = s.scan(ctx, pairs)
	}()
	return nil
}

// Stop cancels a scan started with Start.
func (s *Scanner) Stop() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancelScan != nil {
		s.cancelScan()
	}
}

func (s *Scanner) scan(ctx context.Context, pairs []Pair) (*models.AggregateReport, error) {
	s.scanned.Store(0)
	s.failed.Store(0)
	s.total.Store(int64(len(pairs)))
	s.current.Store("")
	started := time.Now()

	s.log.Info("[Batch] Starting scan", "documents", len(pairs), "workers", s.workers)

	reports := make([]*models.Report, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range pairs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.current.Store(p.Name)
			report, err := s.scoreOne(gctx, p)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				s.failed.Add(1)
				s.log.Error("[Batch] Document failed", "document", p.Name, "err", err)
				s.emit(DocumentScored{Name: p.Name, Error: err.Error()})
				return nil
			}
			reports[i] = report
			s.emit(DocumentScored{
				Name:             p.Name,
				ReportID:         report.ID.String(),
				CoNLL:            report.CoNLL,
				KeyMentions:      report.KeyMentions,
				ResponseMentions: report.ResponseMentions,
			})
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	scored := make([]*models.Report, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			scored = append(scored, r)
		}
	}
	result := Aggregate(scored)

	s.resultMu.Lock()
	s.lastResult, s.lastErr = result, err
	s.resultMu.Unlock()

	if err != nil {
		s.log.Warn("[Batch] Scan cancelled", "scanned", s.scanned.Load(), "total", len(pairs), "err", err)
		return result, err
	}
	s.log.Info("[Batch] Scan complete",
		"scanned", s.scanned.Load(),
		"failed", s.failed.Load(),
		"conll", result.CoNLL,
		"elapsed", time.Since(started))
	return result, nil
}

// scoreOne loads, scores and persists a single pair.
func (s *Scanner) scoreOne(ctx context.Context, p Pair) (*models.Report, error) {
	key, err := input.LoadFile(p.KeyPath)
	if err != nil {
		return nil, err
	}
	response, err := input.LoadFile(p.ResponsePath)
	if err != nil {
		return nil, err
	}

	report, err := s.evaluator.Evaluate(ctx, p.Name, key, response)
	if err != nil {
		return nil, err
	}
	s.scanned.Add(1)

	if s.store != nil {
		if err := s.store.SaveReport(ctx, report); err != nil {
			s.log.Error("[Batch] DB persist error", "document", p.Name, "err", err)
		}
	}
	return report, nil
}

func (s *Scanner) emit(alert DocumentScored) {
	if s.alertFunc == nil {
		return
	}
	alert.Scanned = s.scanned.Load()
	alert.Total = s.total.Load()
	alert.Timestamp = time.Now().Format(time.RFC3339)
	s.alertFunc(alert)
}

// String renders progress for log lines and the CLI.
func (p Progress) String() string {
	return fmt.Sprintf("%d/%d scanned, %d failed", p.Scanned, p.Total, p.Failed)
}
