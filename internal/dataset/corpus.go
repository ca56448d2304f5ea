// Package dataset reads the labeled corpus and splits it for training.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"spam-detector/internal/models"
)

const maxLineSize = 1 << 20

// Corpus is the labeled dataset loaded in full before training
type Corpus struct {
	Records []models.Record
	Skipped int // lines with an unknown label
}

// LoadCorpus reads a "<label>,<text>" file
func LoadCorpus(path string) (*Corpus, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer file.Close()

	return ReadCorpus(file)
}

// ReadCorpus splits every line at the first comma. Lines whose leading token
// is not exactly "spam" or "ham" are skipped.
func ReadCorpus(r io.Reader) (*Corpus, error) {
	c := &Corpus{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		head, text, found := strings.Cut(scanner.Text(), ",")
		label, err := models.ParseLabel(head)
		if err != nil || !found {
			c.Skipped++
			continue
		}
		c.Records = append(c.Records, models.Record{Label: label, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	return c, nil
}

// Texts returns the message texts in order
func Texts(records []models.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Text
	}
	return out
}

// Targets returns the numeric labels in order
func Targets(records []models.Record) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Label.Target()
	}
	return out
}

// Shuffle returns a permuted copy of the records
func Shuffle(records []models.Record, rng *rand.Rand) []models.Record {
	out := make([]models.Record, len(records))
	for i, j := range rng.Perm(len(records)) {
		out[i] = records[j]
	}
	return out
}

// ValidationSize is the number of records held out for a split fraction
func ValidationSize(total int, fraction float64) int {
	return int(fraction * float64(total))
}

// Split holds out the last ValidationSize records. The order is kept, so
// callers shuffle once beforehand.
func Split[T any](items []T, fraction float64) (train, validation []T) {
	n := ValidationSize(len(items), fraction)
	cut := len(items) - n
	return items[:cut], items[cut:]
}
