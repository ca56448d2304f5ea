package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"spam-detector/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned by GetRun for an unknown id
var ErrRunNotFound = errors.New("training run not found")

// HistoryRepository stores training runs, their epochs and served predictions
type HistoryRepository struct {
	db     *sqlx.DB
	driver string
	logger *zap.Logger
}

// NewHistoryRepository opens the database and creates the tables.
// dbType is "sqlite" (path is a file) or "postgres" (path is a connection URL).
func NewHistoryRepository(dbType, path string, logger *zap.Logger) (*HistoryRepository, error) {
	var driver string
	switch dbType {
	case "sqlite":
		driver = "sqlite"
	case "postgres":
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	db, err := sqlx.Connect(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		// single writer
		db.SetMaxOpenConns(1)
	}

	repo := &HistoryRepository{
		db:     db,
		driver: driver,
		logger: logger,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("History repository initialized", zap.String("type", dbType))

	return repo, nil
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS training_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		corpus_size INTEGER NOT NULL DEFAULT 0,
		vocab_size INTEGER NOT NULL DEFAULT 0,
		hits INTEGER NOT NULL DEFAULT 0,
		misses INTEGER NOT NULL DEFAULT 0,
		max_len INTEGER NOT NULL DEFAULT 0,
		epochs INTEGER NOT NULL DEFAULT 0,
		success_rate REAL NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_run_started_at ON training_runs(started_at);

	CREATE TABLE IF NOT EXISTS training_epochs (
		run_id TEXT NOT NULL REFERENCES training_runs(id),
		epoch INTEGER NOT NULL,
		successes INTEGER NOT NULL,
		validation_size INTEGER NOT NULL,
		success_rate REAL NOT NULL,
		PRIMARY KEY (run_id, epoch)
	);

	CREATE TABLE IF NOT EXISTS predictions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		label TEXT NOT NULL,
		confidence REAL NOT NULL,
		model_run_id TEXT NOT NULL DEFAULT '',
		predicted_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_predicted_at ON predictions(predicted_at);
	CREATE INDEX IF NOT EXISTS idx_prediction_label ON predictions(label);
	`

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS training_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		corpus_size INTEGER NOT NULL DEFAULT 0,
		vocab_size INTEGER NOT NULL DEFAULT 0,
		hits INTEGER NOT NULL DEFAULT 0,
		misses INTEGER NOT NULL DEFAULT 0,
		max_len INTEGER NOT NULL DEFAULT 0,
		epochs INTEGER NOT NULL DEFAULT 0,
		success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_run_started_at ON training_runs(started_at);

	CREATE TABLE IF NOT EXISTS training_epochs (
		run_id TEXT NOT NULL REFERENCES training_runs(id),
		epoch INTEGER NOT NULL,
		successes INTEGER NOT NULL,
		validation_size INTEGER NOT NULL,
		success_rate DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, epoch)
	);

	CREATE TABLE IF NOT EXISTS predictions (
		id BIGSERIAL PRIMARY KEY,
		text TEXT NOT NULL,
		label TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		model_run_id TEXT NOT NULL DEFAULT '',
		predicted_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_predicted_at ON predictions(predicted_at);
	CREATE INDEX IF NOT EXISTS idx_prediction_label ON predictions(label);
	`

// migrate creates tables
func (r *HistoryRepository) migrate() error {
	schema := sqliteSchema
	if r.driver == "postgres" {
		schema = postgresSchema
	}
	_, err := r.db.Exec(schema)
	return err
}

// CreateRun inserts a new training run
func (r *HistoryRepository) CreateRun(run *models.TrainingRun) error {
	query := r.db.Rebind(`
		INSERT INTO training_runs (
			id, status, corpus_size, vocab_size, hits, misses,
			max_len, epochs, success_rate, started_at, completed_at, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.Exec(query,
		run.ID,
		run.Status,
		run.CorpusSize,
		run.VocabSize,
		run.Hits,
		run.Misses,
		run.MaxLen,
		run.Epochs,
		run.SuccessRate,
		run.StartedAt,
		run.CompletedAt,
		run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to create training run: %w", err)
	}
	return nil
}

// UpdateRun overwrites the mutable fields of a run
func (r *HistoryRepository) UpdateRun(run *models.TrainingRun) error {
	query := r.db.Rebind(`
		UPDATE training_runs
		SET status = ?, corpus_size = ?, vocab_size = ?, hits = ?, misses = ?,
		    max_len = ?, epochs = ?, success_rate = ?, completed_at = ?, error_message = ?
		WHERE id = ?
	`)

	res, err := r.db.Exec(query,
		run.Status,
		run.CorpusSize,
		run.VocabSize,
		run.Hits,
		run.Misses,
		run.MaxLen,
		run.Epochs,
		run.SuccessRate,
		run.CompletedAt,
		run.ErrorMessage,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update training run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

const runColumns = `id, status, corpus_size, vocab_size, hits, misses,
	max_len, epochs, success_rate, started_at, completed_at, error_message`

// GetRun retrieves a run by ID
func (r *HistoryRepository) GetRun(id string) (*models.TrainingRun, error) {
	run := &models.TrainingRun{}
	err := r.db.Get(run, r.db.Rebind(`SELECT `+runColumns+` FROM training_runs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs, most recent first
func (r *HistoryRepository) ListRuns(limit int) ([]models.TrainingRun, error) {
	runs := []models.TrainingRun{}
	query := r.db.Rebind(`SELECT ` + runColumns + ` FROM training_runs ORDER BY started_at DESC LIMIT ?`)
	if err := r.db.Select(&runs, query, normalizeLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list training runs: %w", err)
	}
	return runs, nil
}

// SaveEpoch records the evaluation of one epoch
func (r *HistoryRepository) SaveEpoch(rec models.EpochRecord) error {
	query := r.db.Rebind(`
		INSERT INTO training_epochs (run_id, epoch, successes, validation_size, success_rate)
		VALUES (?, ?, ?, ?, ?)
	`)
	if _, err := r.db.Exec(query, rec.RunID, rec.Epoch, rec.Successes, rec.ValidationSize, rec.SuccessRate); err != nil {
		return fmt.Errorf("failed to save epoch %d: %w", rec.Epoch, err)
	}
	return nil
}

// GetEpochs returns the epochs of a run in order
func (r *HistoryRepository) GetEpochs(runID string) ([]models.EpochRecord, error) {
	epochs := []models.EpochRecord{}
	query := r.db.Rebind(`
		SELECT run_id, epoch, successes, validation_size, success_rate
		FROM training_epochs
		WHERE run_id = ?
		ORDER BY epoch
	`)
	if err := r.db.Select(&epochs, query, runID); err != nil {
		return nil, fmt.Errorf("failed to get epochs: %w", err)
	}
	return epochs, nil
}

// SavePrediction stores a served prediction and sets its ID
func (r *HistoryRepository) SavePrediction(p *models.PredictionRecord) error {
	query := r.db.Rebind(`
		INSERT INTO predictions (text, label, confidence, model_run_id, predicted_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.db.QueryRowx(query, p.Text, p.Label, p.Confidence, p.ModelRunID, p.PredictedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// GetPredictions returns predictions, most recent first. limit <= 0 returns all.
func (r *HistoryRepository) GetPredictions(limit int) ([]models.PredictionRecord, error) {
	preds := []models.PredictionRecord{}
	query := `
		SELECT id, text, label, confidence, model_run_id, predicted_at
		FROM predictions
		ORDER BY predicted_at DESC, id DESC
	`
	var err error
	if limit > 0 {
		err = r.db.Select(&preds, r.db.Rebind(query+` LIMIT ?`), limit)
	} else {
		err = r.db.Select(&preds, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	return preds, nil
}

// GetStats returns counts by label and the mean confidence
func (r *HistoryRepository) GetStats() (*models.PredictionStats, error) {
	stats := &models.PredictionStats{}
	query := `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN label = 'SPAM' THEN 1 ELSE 0 END), 0) AS spam,
			COALESCE(SUM(CASE WHEN label = 'HAM' THEN 1 ELSE 0 END), 0) AS ham,
			COALESCE(AVG(confidence), 0) AS average_confidence
		FROM predictions
	`
	if err := r.db.Get(stats, query); err != nil {
		return nil, fmt.Errorf("failed to get prediction stats: %w", err)
	}
	return stats, nil
}

// Close closes the database connection
func (r *HistoryRepository) Close() error {
	return r.db.Close()
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
