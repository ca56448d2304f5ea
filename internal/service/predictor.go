package service

import (
	"fmt"
	"math"
	"time"

	"spam-detector/internal/artifact"
	"spam-detector/internal/classifier"
	"spam-detector/internal/models"
	"spam-detector/internal/sequence"
	"spam-detector/internal/vocab"

	"go.uber.org/zap"
)

// DecisionBoundary separates SPAM from HAM at inference time
const DecisionBoundary = 0.5

// PredictionRecorder stores served predictions
type PredictionRecorder interface {
	SavePrediction(p *models.PredictionRecord) error
}

// Predictor classifies raw text with a trained model. It is read-only after
// construction and safe for concurrent use.
type Predictor struct {
	vocab    *vocab.Vocabulary
	net      *classifier.Network
	maxLen   int
	manifest artifact.Manifest
	recorder PredictionRecorder
	logger   *zap.Logger
}

// NewPredictor rebuilds the inference path from loaded artifacts.
// recorder may be nil.
func NewPredictor(a *artifact.Artifacts, recorder PredictionRecorder, logger *zap.Logger) (*Predictor, error) {
	if a == nil || a.Vocabulary == nil {
		return nil, fmt.Errorf("%w: no artifacts", artifact.ErrArtifactMissing)
	}
	net, err := classifier.Load(a.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", artifact.ErrArtifactCorrupt, err)
	}
	if net.MaxLen() != a.MaxLen {
		return nil, fmt.Errorf("%w: model width %d, manifest max_len %d",
			artifact.ErrArtifactCorrupt, net.MaxLen(), a.MaxLen)
	}
	if net.VocabRows() != a.Vocabulary.Len()+1 {
		return nil, fmt.Errorf("%w: model has %d embedding rows for %d tokens",
			artifact.ErrArtifactCorrupt, net.VocabRows(), a.Vocabulary.Len())
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Predictor{
		vocab:    a.Vocabulary,
		net:      net,
		maxLen:   a.MaxLen,
		manifest: a.Manifest,
		recorder: recorder,
		logger:   logger,
	}, nil
}

// Score returns the raw classifier score for each text
func (p *Predictor) Score(texts []string) ([]float64, error) {
	seqs := make([][]int, len(texts))
	for i, text := range texts {
		// words beyond the training width are dropped
		seqs[i] = sequence.Truncate(p.vocab.Encode(text), p.maxLen)
	}
	batch, err := sequence.Pad(seqs, p.maxLen)
	if err != nil {
		return nil, err
	}
	return p.net.Predict(batch)
}

// Predict classifies a single text
func (p *Predictor) Predict(text string) (*models.Prediction, error) {
	preds, err := p.PredictBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return &preds[0], nil
}

// PredictBatch classifies texts in one forward pass
func (p *Predictor) PredictBatch(texts []string) ([]models.Prediction, error) {
	scores, err := p.Score(texts)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	now := time.Now()
	preds := make([]models.Prediction, len(texts))
	for i, score := range scores {
		preds[i] = Label(texts[i], score)
		p.record(&preds[i], now)
	}
	return preds, nil
}

func (p *Predictor) record(pred *models.Prediction, at time.Time) {
	if p.recorder == nil {
		return
	}
	rec := &models.PredictionRecord{
		Text:        pred.Text,
		Label:       pred.Label,
		Confidence:  pred.Confidence,
		ModelRunID:  p.manifest.RunID,
		PredictedAt: at,
	}
	if err := p.recorder.SavePrediction(rec); err != nil {
		p.logger.Error("Failed to save prediction", zap.Error(err))
	}
}

// Info describes the loaded model
func (p *Predictor) Info() models.ModelInfo {
	return models.ModelInfo{
		RunID:        p.manifest.RunID,
		State:        p.manifest.State,
		Epochs:       p.manifest.Epochs,
		SuccessRate:  p.manifest.SuccessRate,
		VocabSize:    p.vocab.Len(),
		MaxLen:       p.maxLen,
		EmbeddingDim: p.net.Dim(),
		TrainedAt:    p.manifest.CreatedAt,
	}
}

// Label maps a score to the reported prediction
func Label(text string, score float64) models.Prediction {
	isSpam := score >= DecisionBoundary
	label := "HAM"
	if isSpam {
		label = "SPAM"
	}
	return models.Prediction{
		Text:       text,
		Label:      label,
		IsSpam:     isSpam,
		Confidence: math.Round(score*100) / 100,
		Message:    fmt.Sprintf("The text '%s' is classified as %s.", text, label),
	}
}
