package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "server:\n  port: \"9000\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "./models", cfg.Artifacts.Dir)
	assert.Equal(t, 100, cfg.Training.EmbeddingDim)
	assert.Equal(t, 0.1, cfg.Training.ValidationSplit)
	assert.Equal(t, 0.9, cfg.Training.SuccessThreshold)
	assert.Equal(t, 0.95, cfg.Training.TargetSuccessRate)
	assert.Equal(t, 200, cfg.Training.MaxEpochs)
	assert.Equal(t, 128, cfg.Training.HiddenUnits)
	assert.Equal(t, 0.01, cfg.Training.LearningRate)
	assert.Equal(t, 32, cfg.Training.BatchSize)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("SPAM_DATA", "/srv/data")
	cfg, err := LoadConfig(writeConfig(t, `
training:
  corpus_path: ${SPAM_DATA}/corpus.csv
  max_epochs: 12
  keep_best: true
database:
  path: ${SPAM_DATA}/history.db
`))
	require.NoError(t, err)

	assert.Equal(t, "/srv/data/corpus.csv", cfg.Training.CorpusPath)
	assert.Equal(t, "/srv/data/history.db", cfg.Database.Path)
	assert.Equal(t, 12, cfg.Training.MaxEpochs)
	assert.True(t, cfg.Training.KeepBest)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "server: [broken"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "database:\n  type: mongo\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "training:\n  validation_split: 1.5\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "training:\n  validation_split: -0.1\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "training:\n  batch_size: -4\n"))
	assert.Error(t, err)
}

func TestValidationSplitZeroSelectsDefault(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "training:\n  validation_split: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.1, cfg.Training.ValidationSplit)

	cfg.Training.ValidationSplit = 0
	assert.Error(t, cfg.Validate(), "training always needs a held-out set")

	cfg.Training.ValidationSplit = 0.1
	cfg.Training.BatchSize = 0
	assert.Error(t, cfg.Validate())
}
