package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/coref-scorer/internal/logger"
	"github.com/rawblock/coref-scorer/pkg/models"
)

// schemaSQL is compiled into the binary at build time so schema init works
// from any working directory.
//
//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("db: report not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	logger.Info("[DB] Connected to PostgreSQL")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}

	logger.Info("[DB] Scoring schema initialized")
	return nil
}

// SaveReport persists a report and its metric rows in one transaction.
// Saving the same report id again replaces it.
func (s *PostgresStore) SaveReport(ctx context.Context, report *models.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ari, vi *float64
	if report.Agreement != nil {
		ari = &report.Agreement.AdjustedRandIndex
		vi = &report.Agreement.VariationOfInformation
	}
	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	insertRunSQL := `
		INSERT INTO scoring_runs
			(id, name, conll, ari, vi, key_mentions, response_mentions, reconciled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			conll = EXCLUDED.conll,
			ari = EXCLUDED.ari,
			vi = EXCLUDED.vi,
			key_mentions = EXCLUDED.key_mentions,
			response_mentions = EXCLUDED.response_mentions,
			reconciled = EXCLUDED.reconciled;
	`
	_, err = tx.Exec(ctx, insertRunSQL,
		report.ID,
		report.Name,
		report.CoNLL,
		ari,
		vi,
		report.KeyMentions,
		report.ResponseMentions,
		report.Reconciled,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scoring_runs: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM metric_scores WHERE run_id = $1`, report.ID); err != nil {
		return fmt.Errorf("failed to clear metric_scores: %w", err)
	}

	if len(report.Metrics) > 0 {
		batch := &pgx.Batch{}
		for i, m := range report.Metrics {
			batch.Queue(`
				INSERT INTO metric_scores (run_id, position, metric, recall, precision, f1)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				report.ID, i, m.Name, m.Score.Recall, m.Score.Precision, m.Score.F1)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert metric_scores: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetReport loads a report by id.
func (s *PostgresStore) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	report := &models.Report{ID: id}
	var ari, vi *float64

	err := s.pool.QueryRow(ctx, `
		SELECT name, conll, ari, vi, key_mentions, response_mentions, reconciled, created_at
		FROM scoring_runs WHERE id = $1`, id,
	).Scan(&report.Name, &report.CoNLL, &ari, &vi,
		&report.KeyMentions, &report.ResponseMentions, &report.Reconciled, &report.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if ari != nil && vi != nil {
		report.Agreement = &models.Agreement{AdjustedRandIndex: *ari, VariationOfInformation: *vi}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT metric, recall, precision, f1
		FROM metric_scores WHERE run_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report.Metrics = []models.MetricResult{}
	for rows.Next() {
		var m models.MetricResult
		if err := rows.Scan(&m.Name, &m.Score.Recall, &m.Score.Precision, &m.Score.F1); err != nil {
			return nil, err
		}
		report.Metrics = append(report.Metrics, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return report, nil
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	CoNLL            float64   `json:"conll"`
	KeyMentions      int       `json:"keyMentions"`
	ResponseMentions int       `json:"responseMentions"`
	CreatedAt        time.Time `json:"createdAt"`
}

// ListReports returns a page of runs, newest first, and the total run count.
func (s *PostgresStore) ListReports(ctx context.Context, page int, limit int) ([]RunSummary, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	// Get total count first
	var totalCount int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scoring_runs`).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	dataSQL := `
		SELECT id, name, conll, key_mentions, response_mentions, created_at
		FROM scoring_runs
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`
	rows, err := s.pool.Query(ctx, dataSQL, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Name, &r.CoNLL, &r.KeyMentions, &r.ResponseMentions, &r.CreatedAt); err != nil {
			return nil, 0, err
		}
		runs = append(runs, r)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return runs, totalCount, nil
}
