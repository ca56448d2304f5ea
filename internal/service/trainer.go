package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"spam-detector/internal/artifact"
	"spam-detector/internal/classifier"
	"spam-detector/internal/config"
	"spam-detector/internal/dataset"
	"spam-detector/internal/embedding"
	"spam-detector/internal/models"
	"spam-detector/internal/sequence"
	"spam-detector/internal/trainer"
	"spam-detector/internal/vocab"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunRecorder stores training runs and their epochs
type RunRecorder interface {
	CreateRun(run *models.TrainingRun) error
	UpdateRun(run *models.TrainingRun) error
	SaveEpoch(rec models.EpochRecord) error
}

// SanityText is scored by the reloaded model after training
const SanityText = "Congratulations! You have won a free prize, call now to claim your cash"

// TrainingReport is what a finished run produced
type TrainingReport struct {
	Run                models.TrainingRun          `json:"run"`
	Result             *trainer.Result             `json:"result"`
	Coverage           embedding.Coverage          `json:"coverage"`
	Misclassifications []trainer.Misclassification `json:"misclassifications"`
	Sanity             *models.Prediction          `json:"sanity,omitempty"`
}

// Trainer runs the whole pipeline: corpus, vocabulary, embeddings, padding,
// training loop, artifacts.
type Trainer struct {
	cfg    config.Training
	store  artifact.Store
	runs   RunRecorder
	logger *zap.Logger
}

// NewTrainer creates a training pipeline. runs may be nil.
func NewTrainer(cfg config.Training, store artifact.Store, runs RunRecorder, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		cfg:    cfg,
		store:  store,
		runs:   runs,
		logger: logger,
	}
}

// Run trains a model and saves its artifacts. Both Converged and
// EpochLimitReached are successful outcomes; errors mean nothing was saved
// or the saved artifacts could not be reloaded.
func (t *Trainer) Run(ctx context.Context) (*TrainingReport, error) {
	run := &models.TrainingRun{
		ID:        uuid.New().String(),
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if t.runs != nil {
		if err := t.runs.CreateRun(run); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
	}

	report, err := t.run(ctx, run)
	if err != nil {
		t.fail(run, err)
		return nil, err
	}

	completed := time.Now().UTC()
	run.CompletedAt = &completed
	if t.runs != nil {
		if err := t.runs.UpdateRun(run); err != nil {
			t.logger.Error("Failed to update run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	report.Run = *run

	t.logger.Info("Training run completed",
		zap.String("run_id", run.ID),
		zap.String("state", run.Status),
		zap.Int("epochs", run.Epochs),
		zap.Float64("success_rate", run.SuccessRate))

	return report, nil
}

func (t *Trainer) fail(run *models.TrainingRun, cause error) {
	t.logger.Error("Training run failed", zap.String("run_id", run.ID), zap.Error(cause))
	if t.runs == nil {
		return
	}
	completed := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.ErrorMessage = cause.Error()
	run.CompletedAt = &completed
	if err := t.runs.UpdateRun(run); err != nil {
		t.logger.Error("Failed to update run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// splitData is the padded dataset, divided into training head and validation tail
type splitData struct {
	maxLen      int
	train       sequence.Batch
	val         sequence.Batch
	trainLabels []float64
	valLabels   []float64
}

// prepare pads both parts to the longest sequence of the whole dataset, so a
// long message that lands in validation still sets the model width.
func prepare(seqs [][]int, labels []float64, fraction float64) (*splitData, error) {
	if len(seqs) != len(labels) {
		return nil, fmt.Errorf("%d sequences for %d labels", len(seqs), len(labels))
	}
	maxLen := sequence.MaxLen(seqs)

	trainSeqs, valSeqs := dataset.Split(seqs, fraction)
	trainLabels, valLabels := dataset.Split(labels, fraction)

	train, err := sequence.Pad(trainSeqs, maxLen)
	if err != nil {
		return nil, err
	}
	val, err := sequence.Pad(valSeqs, maxLen)
	if err != nil {
		return nil, err
	}
	return &splitData{
		maxLen:      maxLen,
		train:       train,
		val:         val,
		trainLabels: trainLabels,
		valLabels:   valLabels,
	}, nil
}

func (t *Trainer) run(ctx context.Context, run *models.TrainingRun) (*TrainingReport, error) {
	cfg := t.cfg

	corpus, err := dataset.LoadCorpus(cfg.CorpusPath)
	if err != nil {
		return nil, err
	}
	run.CorpusSize = len(corpus.Records)
	t.logger.Info("Corpus loaded",
		zap.String("path", cfg.CorpusPath),
		zap.String("records", humanize.Comma(int64(len(corpus.Records)))),
		zap.Int("skipped", corpus.Skipped))

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	v := vocab.Build(corpus.Records)
	run.VocabSize = v.Len()
	t.logger.Info("Vocabulary built", zap.String("tokens", humanize.Comma(int64(v.Len()))))

	records := dataset.Shuffle(corpus.Records, rng)
	seqs := v.EncodeAll(dataset.Texts(records))
	labels := dataset.Targets(records)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dict, err := embedding.LoadDictionary(cfg.EmbeddingsPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, err
	}
	t.logger.Info("Embeddings loaded",
		zap.String("path", cfg.EmbeddingsPath),
		zap.String("vectors", humanize.Comma(int64(dict.Len()))),
		zap.Int("skipped", dict.Skipped()))

	matrix, cov := embedding.Assemble(v, dict)
	run.Hits, run.Misses = cov.Hits, cov.Misses
	t.logger.Info("Embedding matrix assembled",
		zap.Int("rows", matrix.Rows()),
		zap.Int("dim", matrix.Cols()),
		zap.Int("hits", cov.Hits),
		zap.Int("misses", cov.Misses))

	data, err := prepare(seqs, labels, cfg.ValidationSplit)
	if err != nil {
		return nil, err
	}
	maxLen := data.maxLen
	run.MaxLen = maxLen
	trainBatch, valBatch := data.train, data.val
	trainLabels, valLabels := data.trainLabels, data.valLabels

	trainRows, width := trainBatch.Shape()
	valRows, _ := valBatch.Shape()
	t.logger.Info("Sequences padded",
		zap.Int("max_len", width),
		zap.Int("train", trainRows),
		zap.Int("validation", valRows))

	net, err := classifier.NewNetwork(matrix, maxLen, classifier.Options{
		Hidden:       cfg.HiddenUnits,
		LearningRate: cfg.LearningRate,
		BatchSize:    cfg.BatchSize,
		Seed:         seed,
	})
	if err != nil {
		return nil, err
	}

	ctrl, err := trainer.NewController(net, trainer.Config{
		SuccessThreshold:  cfg.SuccessThreshold,
		TargetSuccessRate: cfg.TargetSuccessRate,
		MaxEpochs:         cfg.MaxEpochs,
		KeepBest:          cfg.KeepBest,
	}, t.logger)
	if err != nil {
		return nil, err
	}
	ctrl.OnEpoch = func(stat trainer.EpochStat) {
		if t.runs == nil {
			return
		}
		err := t.runs.SaveEpoch(models.EpochRecord{
			RunID:          run.ID,
			Epoch:          stat.Epoch,
			Successes:      stat.Successes,
			ValidationSize: stat.ValidationSize,
			SuccessRate:    stat.SuccessRate,
		})
		if err != nil {
			t.logger.Error("Failed to save epoch", zap.Int("epoch", stat.Epoch), zap.Error(err))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := ctrl.Run(trainBatch, trainLabels, valBatch, valLabels)
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}
	run.Status = res.State.String()
	run.Epochs = res.Epochs
	run.SuccessRate = res.SuccessRate

	blob, err := net.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}
	err = t.store.Save(&artifact.Artifacts{
		Vocabulary: v,
		MaxLen:     maxLen,
		Model:      blob,
		Manifest: artifact.Manifest{
			EmbeddingDim: matrix.Cols(),
			RunID:        run.ID,
			State:        res.State.String(),
			Epochs:       res.Epochs,
			SuccessRate:  res.SuccessRate,
			CreatedAt:    time.Now().UTC(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save artifacts: %w", err)
	}

	report := &TrainingReport{Result: res, Coverage: cov}

	scores, err := net.Predict(valBatch)
	if err != nil {
		return nil, err
	}
	valSeqs := valBatch.Sequences()
	texts := make([]string, len(valSeqs))
	for i, seq := range valSeqs {
		texts[i] = v.Decode(seq)
	}
	report.Misclassifications = trainer.Diagnose(texts, scores, valLabels, cfg.SuccessThreshold)
	t.logger.Info("Validation diagnostics", zap.Int("misclassified", len(report.Misclassifications)))

	// the saved artifacts must rebuild a working predictor
	loaded, err := t.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to reload artifacts: %w", err)
	}
	predictor, err := NewPredictor(loaded, nil, t.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild predictor: %w", err)
	}
	report.Sanity, err = predictor.Predict(SanityText)
	if err != nil {
		return nil, fmt.Errorf("sanity prediction failed: %w", err)
	}
	t.logger.Info("Sanity prediction",
		zap.String("label", report.Sanity.Label),
		zap.Float64("confidence", report.Sanity.Confidence))

	return report, nil
}
