package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rawblock/coref-scorer/internal/batch"
	"github.com/rawblock/coref-scorer/internal/config"
	"github.com/rawblock/coref-scorer/internal/db"
	"github.com/rawblock/coref-scorer/internal/evaluation"
	"github.com/rawblock/coref-scorer/internal/input"
	"github.com/rawblock/coref-scorer/internal/logger"
	"github.com/rawblock/coref-scorer/internal/metrics"
	"github.com/rawblock/coref-scorer/pkg/models"
)

// ReportStore is the persistence the API reads and writes.
// *db.PostgresStore implements it.
type ReportStore interface {
	SaveReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	ListReports(ctx context.Context, page, limit int) ([]db.RunSummary, int, error)
}

// Deps carries everything the router needs. Store, Hub, Scanner and Limiter
// may be nil; the matching endpoints then answer 503 or are skipped.
type Deps struct {
	Store          ReportStore
	Hub            *Hub
	Scanner        *batch.Scanner
	Limiter        *RateLimiter
	Scoring        config.Scoring
	AuthToken      string
	AllowedOrigins string
	BatchRoot      string
	Logger         *log.Logger
}

type APIHandler struct {
	store     ReportStore
	scanner   *batch.Scanner
	scoring   config.Scoring
	batchRoot string
	log       *log.Logger
}

func SetupRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS: ALLOWED_ORIGINS is a comma-separated list, empty or "*" allows all
	r.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &APIHandler{
		store:     deps.Store,
		scanner:   deps.Scanner,
		scoring:   deps.Scoring,
		batchRoot: deps.BatchRoot,
		log:       deps.Logger,
	}
	if handler.log == nil {
		handler.log = logger.Default()
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		// Public
		api.GET("/health", handler.handleHealth)
		api.GET("/metrics/names", handler.handleMetricNames)
		api.GET("/batch/progress", handler.handleBatchProgress)
		if deps.Hub != nil {
			api.GET("/stream", deps.Hub.Subscribe)
		}

		// Protected
		protected := api.Group("")
		protected.Use(AuthMiddleware(deps.AuthToken, gin.Mode() == gin.ReleaseMode))
		if deps.Limiter != nil {
			protected.Use(deps.Limiter.Middleware())
		}
		protected.POST("/score", handler.handleScore)
		protected.POST("/compare", handler.handleCompare)
		protected.GET("/runs", handler.handleListRuns)
		protected.GET("/runs/:id", handler.handleGetRun)
		protected.POST("/batch", handler.handleStartBatch)
		protected.POST("/batch/stop", handler.handleStopBatch)
	}

	return r
}

func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// scoreRequest is the body of POST /api/v1/score. Reconcile and Metrics
// override the configured scoring defaults.
type scoreRequest struct {
	Name      string          `json:"name"`
	Key       models.Document `json:"key"`
	Response  models.Document `json:"response"`
	Reconcile *bool           `json:"reconcile"`
	Metrics   []string        `json:"metrics"`
}

// handleScore scores one response document against one key document.
func (h *APIHandler) handleScore(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		scoreRequests.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	key, err := toClustering(req.Key)
	if err != nil {
		scoreRequests.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid key document", "details": err.Error()})
		return
	}
	response, err := toClustering(req.Response)
	if err != nil {
		scoreRequests.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid response document", "details": err.Error()})
		return
	}

	evaluator, err := h.evaluator(req.Reconcile, req.Metrics)
	if err != nil {
		scoreRequests.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown metric", "details": err.Error(), "available": metrics.Names()})
		return
	}

	name := req.Name
	if name == "" {
		name = req.Key.Name
	}

	start := time.Now()
	report, err := evaluator.Evaluate(c.Request.Context(), name, key, response)
	scoreDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		scoreRequests.WithLabelValues("error").Inc()
		h.log.Error("[API] Scoring failed", "name", name, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Scoring failed", "details": err.Error()})
		return
	}
	scoreRequests.WithLabelValues("ok").Inc()

	persisted := false
	if h.store != nil {
		if err := h.store.SaveReport(c.Request.Context(), report); err != nil {
			h.log.Warn("[API] Failed to persist report", "id", report.ID, "err", err)
		} else {
			persisted = true
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"report":    report,
		"persisted": persisted,
	})
}

// evaluator builds a per-request Evaluator from the configured defaults and
// the request overrides.
func (h *APIHandler) evaluator(reconcile *bool, names []string) (*evaluation.Evaluator, error) {
	on := h.scoring.Reconcile
	if reconcile != nil {
		on = *reconcile
	}
	if len(names) == 0 {
		names = h.scoring.Metrics
	}
	return evaluation.New(
		evaluation.WithReconcile(on),
		evaluation.WithParallel(h.scoring.Parallel),
		evaluation.WithMetrics(names...),
		evaluation.WithLogger(h.log),
		evaluation.WithObserver(ObserveMetric),
	)
}

// compareRequest is the body of POST /api/v1/compare.
type compareRequest struct {
	Name       string          `json:"name"`
	Key        models.Document `json:"key"`
	Production models.Document `json:"production"`
	Candidate  models.Document `json:"candidate"`
	Reconcile  *bool           `json:"reconcile"`
	Metrics    []string        `json:"metrics"`
	Threshold  *float64        `json:"threshold"`
}

// handleCompare scores a production and a candidate response against the same
// key and reports whether their CoNLL scores diverge.
func (h *APIHandler) handleCompare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {key, production, candidate}"})
		return
	}

	docs := []struct {
		label string
		doc   models.Document
	}{{"key", req.Key}, {"production", req.Production}, {"candidate", req.Candidate}}
	clusterings := make([]models.Clustering, len(docs))
	for i, d := range docs {
		cl, err := toClustering(d.doc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + d.label + " document", "details": err.Error()})
			return
		}
		clusterings[i] = cl
	}

	evaluator, err := h.evaluator(req.Reconcile, req.Metrics)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown metric", "details": err.Error(), "available": metrics.Names()})
		return
	}

	var store evaluation.ReportStore
	if h.store != nil {
		store = h.store
	}
	runner := evaluation.NewRunner(evaluator, store)
	if req.Threshold != nil {
		runner.SetDivergenceThreshold(*req.Threshold)
	}

	name := req.Name
	if name == "" {
		name = req.Key.Name
	}
	result, err := runner.Compare(c.Request.Context(), name, clusterings[0], clusterings[1], clusterings[2])
	if result == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Comparison failed", "details": err.Error()})
		return
	}
	if err != nil {
		h.log.Warn("[API] Failed to persist comparison", "name", name, "err", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"comparison": result,
		"persisted":  h.store != nil && err == nil,
	})
}

func toClustering(doc models.Document) (models.Clustering, error) {
	if err := input.ValidateDocument(doc); err != nil {
		return nil, err
	}
	return input.ToClustering(doc)
}

// handleMetricNames lists the registered metrics in report order.
func (h *APIHandler) handleMetricNames(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"metrics": metrics.Names()})
}

// handleHealth returns engine status and capabilities for service discovery
func (h *APIHandler) handleHealth(c *gin.Context) {
	dbConnected := false
	if h.store != nil {
		dbConnected = true
		if p, ok := h.store.(interface{ Ping(context.Context) error }); ok {
			dbConnected = p.Ping(c.Request.Context()) == nil
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "Coreference Scoring Engine",
		"capabilities": gin.H{
			"metrics":     metrics.Names(),
			"conll2012":   true,
			"agreement":   true,
			"batch":       h.scanner != nil,
			"reconcile":   h.scoring.Reconcile,
			"parallel":    h.scoring.Parallel,
			"persistence": h.store != nil,
			"compare":     true,
		},
		"dbConnected": dbConnected,
	})
}

// handleListRuns returns persisted scoring runs, newest first.
func (h *APIHandler) handleListRuns(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	// Parse pagination parameters
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	runs, totalCount, err := h.store.ListReports(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scoring runs", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       runs,
		"totalCount": totalCount,
		"page":       page,
		"limit":      limit,
	})
}

// handleGetRun returns one persisted report.
func (h *APIHandler) handleGetRun(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run id"})
		return
	}

	report, err := h.store.GetReport(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch run", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleStartBatch launches a directory scan in the background.
// POST /api/v1/batch { "keyDir": "gold", "responseDir": "sys" }
func (h *APIHandler) handleStartBatch(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Batch scanner not initialized"})
		return
	}

	var req struct {
		KeyDir      string `json:"keyDir" binding:"required"`
		ResponseDir string `json:"responseDir" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {keyDir, responseDir}"})
		return
	}

	keyDir, err := h.resolveDir(req.KeyDir)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	responseDir, err := h.resolveDir(req.ResponseDir)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.scanner.Start(c.Request.Context(), keyDir, responseDir)
	switch {
	case errors.Is(err, batch.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "Batch scan already in progress", "progress": h.scanner.GetProgress()})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to start batch scan", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":      "batch_started",
		"keyDir":      req.KeyDir,
		"responseDir": req.ResponseDir,
	})
}

// handleStopBatch cancels the running scan, if any.
func (h *APIHandler) handleStopBatch(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Batch scanner not initialized"})
		return
	}
	h.scanner.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stop_requested", "progress": h.scanner.GetProgress()})
}

// handleBatchProgress returns the scanner state and the last finished aggregate.
func (h *APIHandler) handleBatchProgress(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Batch scanner not initialized"})
		return
	}
	result, err := h.scanner.LastResult()
	body := gin.H{
		"progress":   h.scanner.GetProgress(),
		"lastResult": result,
	}
	if err != nil {
		body["lastError"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// resolveDir confines a requested directory to the batch root when one is set.
func (h *APIHandler) resolveDir(dir string) (string, error) {
	if h.batchRoot == "" {
		return filepath.Clean(dir), nil
	}
	if filepath.IsAbs(dir) {
		return "", errors.New("directory must be relative to the batch root")
	}
	full := filepath.Join(h.batchRoot, dir)
	rel, err := filepath.Rel(h.batchRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("directory escapes the batch root")
	}
	return full, nil
}

// BroadcastDocumentScored sends each batch notification via the WebSocket hub.
// This is wired as the alertFunc callback for the batch Scanner.
func BroadcastDocumentScored(wsHub *Hub) func(batch.DocumentScored) {
	return func(alert batch.DocumentScored) {
		if alert.Error != "" {
			batchDocuments.WithLabelValues("failed").Inc()
		} else {
			batchDocuments.WithLabelValues("scored").Inc()
		}
		if wsHub == nil {
			return
		}
		payload := gin.H{
			"type":  "document_scored",
			"alert": alert,
		}
		alertBytes, err := json.Marshal(payload)
		if err != nil {
			logger.Warn("[Stream] Failed to encode batch alert", "name", alert.Name, "err", err)
			return
		}
		wsHub.Broadcast(alertBytes)
	}
}
