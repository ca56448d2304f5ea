package models

import (
	"fmt"
	"time"
)

// Label is the binary class of a message
type Label int

const (
	Ham  Label = 0
	Spam Label = 1
)

// LabelNames maps labels to the tokens used in the corpus file
var LabelNames = map[Label]string{
	Ham:  "ham",
	Spam: "spam",
}

// ParseLabel converts a corpus label token. Only exact "spam" and "ham" are accepted.
func ParseLabel(s string) (Label, error) {
	switch s {
	case "spam":
		return Spam, nil
	case "ham":
		return Ham, nil
	}
	return Ham, fmt.Errorf("unknown label %q", s)
}

func (l Label) String() string {
	if name, ok := LabelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("label(%d)", int(l))
}

// Target returns the numeric training target for the label
func (l Label) Target() float64 {
	if l == Spam {
		return 1
	}
	return 0
}

// Record is a single labeled corpus line
type Record struct {
	Label Label  `json:"label"`
	Text  string `json:"text"`
}

// PredictRequest for single message classification
type PredictRequest struct {
	Text string `json:"text" form:"text" binding:"required"`
}

// BatchPredictRequest for multiple messages
type BatchPredictRequest struct {
	Messages []string `json:"messages" binding:"required,min=1"`
}

// Prediction is the result of scoring one message
type Prediction struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"` // "SPAM" or "HAM"
	IsSpam     bool    `json:"is_spam"`
	Confidence float64 `json:"confidence"` // raw score rounded to 2 decimals
	Message    string  `json:"prediction"`
}

// ModelInfo describes the loaded artifacts
type ModelInfo struct {
	RunID        string    `json:"run_id"`
	State        string    `json:"state"`
	Epochs       int       `json:"epochs"`
	SuccessRate  float64   `json:"success_rate"`
	VocabSize    int       `json:"vocab_size"`
	MaxLen       int       `json:"max_len"`
	EmbeddingDim int       `json:"embedding_dim"`
	TrainedAt    time.Time `json:"trained_at"`
}

// Training run statuses stored in the history
const (
	RunStatusRunning = "running"
	RunStatusFailed  = "failed"
)

// TrainingRun is one execution of the training pipeline
type TrainingRun struct {
	ID           string     `json:"id" db:"id"`
	Status       string     `json:"status" db:"status"` // "running", "failed" or a terminal trainer state
	CorpusSize   int        `json:"corpus_size" db:"corpus_size"`
	VocabSize    int        `json:"vocab_size" db:"vocab_size"`
	Hits         int        `json:"hits" db:"hits"`
	Misses       int        `json:"misses" db:"misses"`
	MaxLen       int        `json:"max_len" db:"max_len"`
	Epochs       int        `json:"epochs" db:"epochs"`
	SuccessRate  float64    `json:"success_rate" db:"success_rate"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
}

// EpochRecord is the evaluation outcome of one epoch
type EpochRecord struct {
	RunID          string  `json:"run_id" db:"run_id"`
	Epoch          int     `json:"epoch" db:"epoch"`
	Successes      int     `json:"successes" db:"successes"`
	ValidationSize int     `json:"validation_size" db:"validation_size"`
	SuccessRate    float64 `json:"success_rate" db:"success_rate"`
}

// PredictionRecord is a served prediction kept in the history
type PredictionRecord struct {
	ID          int64     `json:"id" db:"id"`
	Text        string    `json:"text" db:"text"`
	Label       string    `json:"label" db:"label"`
	Confidence  float64   `json:"confidence" db:"confidence"`
	ModelRunID  string    `json:"model_run_id" db:"model_run_id"`
	PredictedAt time.Time `json:"predicted_at" db:"predicted_at"`
}

// PredictionStats summarises the prediction history
type PredictionStats struct {
	Total             int     `json:"total" db:"total"`
	Spam              int     `json:"spam" db:"spam"`
	Ham               int     `json:"ham" db:"ham"`
	AverageConfidence float64 `json:"average_confidence" db:"average_confidence"`
}
