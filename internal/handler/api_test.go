package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spam-detector/internal/models"
	"spam-detector/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePredictor struct{}

func (fakePredictor) Predict(text string) (*models.Prediction, error) {
	if text == "explode" {
		return nil, errors.New("boom")
	}
	label := "HAM"
	if strings.Contains(text, "win") {
		label = "SPAM"
	}
	return &models.Prediction{
		Text:    text,
		Label:   label,
		IsSpam:  label == "SPAM",
		Message: fmt.Sprintf("The text '%s' is classified as %s.", text, label),
	}, nil
}

func (f fakePredictor) PredictBatch(texts []string) ([]models.Prediction, error) {
	out := make([]models.Prediction, len(texts))
	for i, t := range texts {
		p, err := f.Predict(t)
		if err != nil {
			return nil, err
		}
		out[i] = *p
	}
	return out, nil
}

func (fakePredictor) Info() models.ModelInfo {
	return models.ModelInfo{RunID: "run-1", MaxLen: 3, VocabSize: 6}
}

type fakeHistory struct {
	preds []models.PredictionRecord
}

func (f *fakeHistory) GetPredictions(limit int) ([]models.PredictionRecord, error) {
	if limit > 0 && limit < len(f.preds) {
		return f.preds[:limit], nil
	}
	return f.preds, nil
}

func (f *fakeHistory) GetStats() (*models.PredictionStats, error) {
	return &models.PredictionStats{Total: len(f.preds), Spam: 1, Ham: 1, AverageConfidence: 0.5}, nil
}

func (f *fakeHistory) ListRuns(limit int) ([]models.TrainingRun, error) {
	return []models.TrainingRun{{ID: "run-1", Status: "converged"}}, nil
}

func (f *fakeHistory) GetRun(id string) (*models.TrainingRun, error) {
	if id != "run-1" {
		return nil, repository.ErrRunNotFound
	}
	return &models.TrainingRun{ID: "run-1", Status: "converged", Epochs: 3}, nil
}

func (f *fakeHistory) GetEpochs(runID string) ([]models.EpochRecord, error) {
	return []models.EpochRecord{{RunID: runID, Epoch: 1}, {RunID: runID, Epoch: 2}}, nil
}

func newRouter(history History) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(fakePredictor{}, history, zap.NewNop()).RegisterRoutes(r)
	return r
}

func do(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPredictJSON(t *testing.T) {
	r := newRouter(nil)
	w := do(r, http.MethodPost, "/api/v1/predict", `{"text": "win cash"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var pred models.Prediction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pred))
	assert.Equal(t, "SPAM", pred.Label)
	assert.Equal(t, "The text 'win cash' is classified as SPAM.", pred.Message)
}

func TestPredictQuery(t *testing.T) {
	r := newRouter(nil)
	w := do(r, http.MethodPost, "/api/v1/predict?text=see+you", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "The text 'see you' is classified as HAM.", body["prediction"])
}

func TestPredictErrors(t *testing.T) {
	r := newRouter(nil)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/predict", `{}`).Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodPost, "/api/v1/predict", `{"text": "explode"}`).Code)
}

func TestPredictBatch(t *testing.T) {
	r := newRouter(nil)
	w := do(r, http.MethodPost, "/api/v1/predict/batch", `{"messages": ["win now", "hello"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Predictions []models.Prediction `json:"predictions"`
		Total       int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.True(t, body.Predictions[0].IsSpam)
	assert.False(t, body.Predictions[1].IsSpam)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/predict/batch", `{"messages": []}`).Code)
}

func TestModelInfoAndHealth(t *testing.T) {
	r := newRouter(nil)
	w := do(r, http.MethodGet, "/api/v1/model/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run_id":"run-1"`)

	w = do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = do(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
}

func TestHistoryDisabled(t *testing.T) {
	r := newRouter(nil)
	for _, path := range []string{"/api/v1/predictions", "/api/v1/predictions/stats", "/api/v1/training/runs", "/api/v1/export/csv"} {
		assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, path, "").Code, path)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	history := &fakeHistory{preds: []models.PredictionRecord{
		{ID: 2, Text: "win, now", Label: "SPAM", Confidence: 0.97, ModelRunID: "run-1", PredictedAt: time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC)},
		{ID: 1, Text: "hello", Label: "HAM", Confidence: 0.03, ModelRunID: "run-1", PredictedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}}
	r := newRouter(history)

	w := do(r, http.MethodGet, "/api/v1/predictions?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/predictions?limit=x", "").Code)

	w = do(r, http.MethodGet, "/api/v1/predictions/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":2`)

	w = do(r, http.MethodGet, "/api/v1/training/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run-1"`)

	w = do(r, http.MethodGet, "/api/v1/training/runs/run-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"epochs"`)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/training/runs/missing", "").Code)
}

func TestExportCSV(t *testing.T) {
	history := &fakeHistory{preds: []models.PredictionRecord{
		{Text: "win, now", Label: "SPAM", Confidence: 0.97, ModelRunID: "run-1", PredictedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}}
	w := do(newRouter(history), http.MethodGet, "/api/v1/export/csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"SPAM", "win, now", "0.97", "run-1", "2024-05-01T10:00:00Z"}, rows[1])
}

func TestTrainNotImplemented(t *testing.T) {
	assert.Equal(t, http.StatusNotImplemented, do(newRouter(nil), http.MethodPost, "/api/v1/train", "").Code)
}
