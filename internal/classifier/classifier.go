// Package classifier provides the trainable binary classifier driven by the
// training loop. The loop only depends on the Classifier interface; Network
// is the model shipped with the service.
package classifier

import (
	"errors"

	"spam-detector/internal/sequence"
)

// ErrShapeMismatch is returned when a batch or label slice does not match the model
var ErrShapeMismatch = errors.New("classifier: shape mismatch")

// Classifier is fitted on padded batches and scores them in [0, 1]
type Classifier interface {
	// Fit runs one training pass over the batch. labels are 0 (ham) or 1 (spam).
	Fit(batch sequence.Batch, labels []float64) error
	// Predict returns one score per row
	Predict(batch sequence.Batch) ([]float64, error)
}
