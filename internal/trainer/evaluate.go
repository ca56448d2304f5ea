package trainer

import "fmt"

// Outcome classifies one validation score against its label
type Outcome int

const (
	Success Outcome = iota
	// FalsePositive: ham scored above the threshold
	FalsePositive
	// FalseNegative: spam scored below 1-threshold
	FalseNegative
	// Ambiguous: score strictly between 1-threshold and threshold
	Ambiguous
	// Boundary: a failure that sits exactly on a threshold, or a correct
	// direction beyond it without enough margin. Not listed in diagnostics.
	Boundary
)

var outcomeNames = map[Outcome]string{
	Success:       "success",
	FalsePositive: "false_positive",
	FalseNegative: "false_negative",
	Ambiguous:     "ambiguous",
	Boundary:      "boundary",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Classify applies the strict per-sample rule. label is 1 for spam, 0 for ham.
func Classify(score, label, threshold float64) Outcome {
	spam := label == 1
	switch {
	case spam && score > threshold:
		return Success
	case !spam && score < 1-threshold:
		return Success
	case !spam && score > threshold:
		return FalsePositive
	case spam && score < 1-threshold:
		return FalseNegative
	case score > 1-threshold && score < threshold:
		return Ambiguous
	}
	return Boundary
}

// Evaluate counts successes
func Evaluate(scores, labels []float64, threshold float64) int {
	n := 0
	for i, s := range scores {
		if Classify(s, labels[i], threshold) == Success {
			n++
		}
	}
	return n
}

// SuccessRate is successes/total, 0 for an empty validation set
func SuccessRate(successes, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(successes) / float64(total)
}

// Misclassification is a validation sample reported after training
type Misclassification struct {
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
	Label   float64 `json:"label"`
	Outcome Outcome `json:"outcome"`
}

// Diagnose lists false positives, false negatives and ambiguous samples
func Diagnose(texts []string, scores, labels []float64, threshold float64) []Misclassification {
	var out []Misclassification
	for i, s := range scores {
		o := Classify(s, labels[i], threshold)
		if o == FalsePositive || o == FalseNegative || o == Ambiguous {
			out = append(out, Misclassification{Text: texts[i], Score: s, Label: labels[i], Outcome: o})
		}
	}
	return out
}

// MarshalText renders the outcome name in JSON reports
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
