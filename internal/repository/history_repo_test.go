package repository

import (
	"path/filepath"
	"testing"
	"time"

	"spam-detector/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRepo(t *testing.T) *HistoryRepository {
	t.Helper()
	repo, err := NewHistoryRepository("sqlite", filepath.Join(t.TempDir(), "history.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestUnsupportedType(t *testing.T) {
	_, err := NewHistoryRepository("mongo", "x", zap.NewNop())
	assert.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	repo := newRepo(t)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	run := &models.TrainingRun{ID: "run-1", Status: models.RunStatusRunning, StartedAt: started}
	require.NoError(t, repo.CreateRun(run))

	got, err := repo.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.True(t, started.Equal(got.StartedAt))

	done := started.Add(time.Minute)
	run.Status = "converged"
	run.CorpusSize = 20
	run.VocabSize = 6
	run.Hits = 2
	run.Misses = 4
	run.MaxLen = 3
	run.Epochs = 3
	run.SuccessRate = 0.95
	run.CompletedAt = &done
	require.NoError(t, repo.UpdateRun(run))

	got, err = repo.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "converged", got.Status)
	assert.Equal(t, 3, got.Epochs)
	assert.Equal(t, 0.95, got.SuccessRate)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
}

func TestGetRunNotFound(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.GetRun("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = repo.UpdateRun(&models.TrainingRun{ID: "nope"})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	repo := newRepo(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.CreateRun(&models.TrainingRun{
			ID: id, Status: models.RunStatusRunning, StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := repo.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestEpochs(t *testing.T) {
	repo := newRepo(t)
	require.NoError(t, repo.CreateRun(&models.TrainingRun{ID: "r", Status: models.RunStatusRunning, StartedAt: time.Now().UTC()}))

	for e := 1; e <= 3; e++ {
		require.NoError(t, repo.SaveEpoch(models.EpochRecord{
			RunID: "r", Epoch: e, Successes: 16 + e, ValidationSize: 20, SuccessRate: float64(16+e) / 20,
		}))
	}
	assert.Error(t, repo.SaveEpoch(models.EpochRecord{RunID: "r", Epoch: 1}), "duplicate epoch")

	epochs, err := repo.GetEpochs("r")
	require.NoError(t, err)
	require.Len(t, epochs, 3)
	assert.Equal(t, 1, epochs[0].Epoch)
	assert.Equal(t, 19, epochs[2].Successes)
	assert.Equal(t, 0.95, epochs[2].SuccessRate)

	empty, err := repo.GetEpochs("other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPredictionsAndStats(t *testing.T) {
	repo := newRepo(t)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0.0, stats.AverageConfidence)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	records := []models.PredictionRecord{
		{Text: "win money", Label: "SPAM", Confidence: 0.9, PredictedAt: base},
		{Text: "see you", Label: "HAM", Confidence: 0.1, PredictedAt: base.Add(time.Second)},
		{Text: "free prize", Label: "SPAM", Confidence: 0.8, PredictedAt: base.Add(2 * time.Second)},
	}
	for i := range records {
		require.NoError(t, repo.SavePrediction(&records[i]))
		assert.NotZero(t, records[i].ID)
	}

	preds, err := repo.GetPredictions(0)
	require.NoError(t, err)
	require.Len(t, preds, 3)
	assert.Equal(t, "free prize", preds[0].Text)

	preds, err = repo.GetPredictions(1)
	require.NoError(t, err)
	assert.Len(t, preds, 1)

	stats, err = repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Spam)
	assert.Equal(t, 1, stats.Ham)
	assert.InDelta(t, 0.6, stats.AverageConfidence, 1e-9)
}
