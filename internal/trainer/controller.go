// Package trainer runs the fit/evaluate loop with the per-sample confidence
// stopping rule.
package trainer

import (
	"encoding"
	"errors"
	"fmt"

	"spam-detector/internal/classifier"
	"spam-detector/internal/sequence"

	"go.uber.org/zap"
)

// Default stopping parameters
const (
	DefaultSuccessThreshold  = 0.9
	DefaultTargetSuccessRate = 0.95
	DefaultMaxEpochs         = 200
)

// ErrInvalidConfig is returned before any epoch runs
var ErrInvalidConfig = errors.New("trainer: invalid config")

// State of the training loop
type State int

const (
	Training State = iota
	Evaluating
	Converged
	EpochLimitReached
)

var stateNames = map[State]string{
	Training:          "training",
	Evaluating:        "evaluating",
	Converged:         "converged",
	EpochLimitReached: "epoch_limit_reached",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state name in reports
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the loop stops in this state
func (s State) Terminal() bool {
	return s == Converged || s == EpochLimitReached
}

// Config holds the stopping parameters
type Config struct {
	// SuccessThreshold is the per-sample confidence: a spam sample must score
	// above it, a ham sample below 1-SuccessThreshold.
	SuccessThreshold float64
	// TargetSuccessRate ends training once reached on the validation set.
	TargetSuccessRate float64
	MaxEpochs         int
	// KeepBest restores the best-scoring epoch before returning. It needs a
	// classifier that implements encoding.BinaryMarshaler and BinaryUnmarshaler.
	KeepBest bool
}

// DefaultConfig returns the stopping parameters used by the training command
func DefaultConfig() Config {
	return Config{
		SuccessThreshold:  DefaultSuccessThreshold,
		TargetSuccessRate: DefaultTargetSuccessRate,
		MaxEpochs:         DefaultMaxEpochs,
	}
}

func (c Config) validate() error {
	if c.SuccessThreshold <= 0.5 || c.SuccessThreshold >= 1 {
		return fmt.Errorf("%w: success threshold %v must be in (0.5, 1)", ErrInvalidConfig, c.SuccessThreshold)
	}
	if c.TargetSuccessRate <= 0 || c.TargetSuccessRate > 1 {
		return fmt.Errorf("%w: target success rate %v must be in (0, 1]", ErrInvalidConfig, c.TargetSuccessRate)
	}
	if c.MaxEpochs < 1 {
		return fmt.Errorf("%w: max epochs %d must be at least 1", ErrInvalidConfig, c.MaxEpochs)
	}
	return nil
}

// EpochStat is the evaluation of one epoch
type EpochStat struct {
	Epoch          int     `json:"epoch"`
	Successes      int     `json:"successes"`
	ValidationSize int     `json:"validation_size"`
	SuccessRate    float64 `json:"success_rate"`
	// Loss is the training loss after the fit, when the classifier reports one
	Loss float64 `json:"loss,omitempty"`
}

// Result describes how the loop ended
type Result struct {
	State       State       `json:"state"`
	Epochs      int         `json:"epochs"`
	SuccessRate float64     `json:"success_rate"` // of the model that is returned
	BestEpoch   int         `json:"best_epoch"`
	History     []EpochStat `json:"history"`
}

// Controller drives a classifier through training epochs
type Controller struct {
	clf    classifier.Classifier
	cfg    Config
	logger *zap.Logger
	state  State

	// OnEpoch, when set, is called after every evaluation
	OnEpoch func(EpochStat)
}

// NewController validates the config and returns a controller in the Training state
func NewController(clf classifier.Classifier, cfg Config, logger *zap.Logger) (*Controller, error) {
	if clf == nil {
		return nil, fmt.Errorf("%w: nil classifier", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.KeepBest {
		if _, ok := clf.(checkpointer); !ok {
			return nil, fmt.Errorf("%w: keep best needs a classifier that can be snapshotted", ErrInvalidConfig)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{clf: clf, cfg: cfg, logger: logger, state: Training}, nil
}

// State returns the current state
func (c *Controller) State() State { return c.state }

type checkpointer interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type lossReporter interface {
	Loss(batch sequence.Batch, labels []float64) (float64, error)
}

// Run fits the classifier once per epoch on the full training batch and
// evaluates it on the validation batch until the success rate reaches the
// target or the epoch limit is hit. Every fit is kept, even when the success
// rate drops, unless KeepBest is set.
func (c *Controller) Run(train sequence.Batch, trainLabels []float64, val sequence.Batch, valLabels []float64) (*Result, error) {
	if c.state.Terminal() {
		return nil, fmt.Errorf("trainer: controller already finished in state %s", c.state)
	}
	if len(trainLabels) != train.Len() || len(valLabels) != val.Len() {
		return nil, fmt.Errorf("%w: labels do not match batches", classifier.ErrShapeMismatch)
	}

	res := &Result{}
	var best []byte
	bestRate := -1.0

	for epoch := 1; ; epoch++ {
		c.state = Training
		if err := c.clf.Fit(train, trainLabels); err != nil {
			return nil, fmt.Errorf("epoch %d: fit: %w", epoch, err)
		}

		var loss float64
		if lr, ok := c.clf.(lossReporter); ok {
			var err error
			loss, err = lr.Loss(train, trainLabels)
			if err != nil {
				return nil, fmt.Errorf("epoch %d: loss: %w", epoch, err)
			}
		}

		c.state = Evaluating
		scores, err := c.clf.Predict(val)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: predict: %w", epoch, err)
		}

		successes := Evaluate(scores, valLabels, c.cfg.SuccessThreshold)
		stat := EpochStat{
			Epoch:          epoch,
			Successes:      successes,
			ValidationSize: val.Len(),
			SuccessRate:    SuccessRate(successes, val.Len()),
			Loss:           loss,
		}
		res.History = append(res.History, stat)
		res.Epochs = epoch
		res.SuccessRate = stat.SuccessRate

		c.logger.Info("End of epoch",
			zap.Int("epoch", epoch),
			zap.Int("successes", successes),
			zap.Int("validation_size", val.Len()),
			zap.Float64("success_rate", stat.SuccessRate),
			zap.Float64("loss", loss))
		if c.OnEpoch != nil {
			c.OnEpoch(stat)
		}

		if stat.SuccessRate > bestRate {
			bestRate = stat.SuccessRate
			res.BestEpoch = epoch
			if c.cfg.KeepBest {
				best, err = c.clf.(checkpointer).MarshalBinary()
				if err != nil {
					return nil, fmt.Errorf("epoch %d: snapshot: %w", epoch, err)
				}
			}
		}

		if stat.SuccessRate >= c.cfg.TargetSuccessRate {
			c.state = Converged
			break
		}
		if epoch >= c.cfg.MaxEpochs {
			c.state = EpochLimitReached
			break
		}
	}

	if c.cfg.KeepBest && res.BestEpoch != res.Epochs {
		if err := c.clf.(checkpointer).UnmarshalBinary(best); err != nil {
			return nil, fmt.Errorf("restore epoch %d: %w", res.BestEpoch, err)
		}
		res.SuccessRate = bestRate
		c.logger.Info("Restored best epoch",
			zap.Int("epoch", res.BestEpoch),
			zap.Float64("success_rate", bestRate))
	}

	res.State = c.state
	return res, nil
}
