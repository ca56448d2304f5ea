package handler

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"time"

	"spam-detector/internal/models"
	"spam-detector/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Predictor scores raw text
type Predictor interface {
	Predict(text string) (*models.Prediction, error)
	PredictBatch(texts []string) ([]models.Prediction, error)
	Info() models.ModelInfo
}

// History serves recorded predictions and training runs
type History interface {
	GetPredictions(limit int) ([]models.PredictionRecord, error)
	GetStats() (*models.PredictionStats, error)
	ListRuns(limit int) ([]models.TrainingRun, error)
	GetRun(id string) (*models.TrainingRun, error)
	GetEpochs(runID string) ([]models.EpochRecord, error)
}

const maxBatchSize = 1000

// Handler handles HTTP requests
type Handler struct {
	predictor Predictor
	history   History
	logger    *zap.Logger
}

// NewHandler creates a new API handler. history may be nil, in which case
// the history endpoints answer 503.
func NewHandler(predictor Predictor, history History, logger *zap.Logger) *Handler {
	return &Handler{
		predictor: predictor,
		history:   history,
		logger:    logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Classification
		api.POST("/predict", h.Predict)
		api.POST("/predict/batch", h.PredictBatch)
		api.GET("/model/info", h.ModelInfo)

		// History
		api.GET("/predictions", h.GetPredictions)
		api.GET("/predictions/stats", h.GetStats)
		api.GET("/training/runs", h.ListRuns)
		api.GET("/training/runs/:id", h.GetRun)

		// Export
		api.GET("/export/csv", h.ExportCSV)

		// Training happens offline with the trainer command
		api.POST("/train", h.Train)
	}

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, "/api/v1/model/info")
	})

	// Health check
	r.GET("/health", h.HealthCheck)
}

// Predict classifies one text given as JSON {"text": ...} or ?text=
func (h *Handler) Predict(c *gin.Context) {
	var req models.PredictRequest
	if err := c.ShouldBind(&req); err != nil {
		if text, ok := c.GetQuery("text"); ok {
			req.Text = text
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	pred, err := h.predictor.Predict(req.Text)
	if err != nil {
		h.logger.Error("Failed to predict", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
		return
	}

	c.JSON(http.StatusOK, pred)
}

// PredictBatch classifies several texts at once
func (h *Handler) PredictBatch(c *gin.Context) {
	var req models.BatchPredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Messages) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many messages (max " + strconv.Itoa(maxBatchSize) + ")"})
		return
	}

	preds, err := h.predictor.PredictBatch(req.Messages)
	if err != nil {
		h.logger.Error("Failed to predict batch", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"predictions": preds,
		"total":       len(preds),
	})
}

// ModelInfo describes the loaded model
func (h *Handler) ModelInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.predictor.Info())
}

func (h *Handler) requireHistory(c *gin.Context) bool {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is disabled"})
		return false
	}
	return true
}

func queryLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	return limit, true
}

// GetPredictions returns the most recent predictions
func (h *Handler) GetPredictions(c *gin.Context) {
	if !h.requireHistory(c) {
		return
	}
	limit, ok := queryLimit(c, 100)
	if !ok {
		return
	}

	preds, err := h.history.GetPredictions(limit)
	if err != nil {
		h.logger.Error("Failed to get predictions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get predictions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"predictions": preds,
		"total":       len(preds),
	})
}

// GetStats returns prediction statistics
func (h *Handler) GetStats(c *gin.Context) {
	if !h.requireHistory(c) {
		return
	}
	stats, err := h.history.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListRuns returns training runs, newest first
func (h *Handler) ListRuns(c *gin.Context) {
	if !h.requireHistory(c) {
		return
	}
	limit, ok := queryLimit(c, 50)
	if !ok {
		return
	}

	runs, err := h.history.ListRuns(limit)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// GetRun returns one training run with its epochs
func (h *Handler) GetRun(c *gin.Context) {
	if !h.requireHistory(c) {
		return
	}
	id := c.Param("id")

	run, err := h.history.GetRun(id)
	if errors.Is(err, repository.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get run", zap.String("run_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
		return
	}

	epochs, err := h.history.GetEpochs(id)
	if err != nil {
		h.logger.Error("Failed to get epochs", zap.String("run_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":    run,
		"epochs": epochs,
	})
}

// ExportCSV exports the prediction history to CSV
func (h *Handler) ExportCSV(c *gin.Context) {
	if !h.requireHistory(c) {
		return
	}
	preds, err := h.history.GetPredictions(0)
	if err != nil {
		h.logger.Error("Failed to export CSV", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=predictions.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"label", "text", "confidence", "model_run_id", "predicted_at"})

	for _, p := range preds {
		writer.Write([]string{
			p.Label,
			p.Text,
			strconv.FormatFloat(p.Confidence, 'f', 2, 64),
			p.ModelRunID,
			p.PredictedAt.UTC().Format(time.RFC3339),
		})
	}
}

// Train is not served over HTTP
func (h *Handler) Train(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{
		"error": "training runs offline, use the trainer command",
	})
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	info := h.predictor.Info()
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "spam-detector",
		"version": "1.0.0",
		"model":   info.RunID,
	})
}
