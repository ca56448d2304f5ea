// Package embedding loads pretrained word vectors and assembles the
// embedding matrix indexed by vocabulary ID.
package embedding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"spam-detector/internal/vocab"
)

// maxLineSize bounds a single dictionary line (300d GloVe lines are ~3KB)
const maxLineSize = 1 << 20

// ErrInvalidDim is returned for a non-positive embedding width
var ErrInvalidDim = errors.New("embedding: dimension must be positive")

// Dictionary holds pretrained vectors of a fixed width
type Dictionary struct {
	dim     int
	vectors map[string][]float64
	skipped int
}

// Coverage counts vocabulary tokens with and without a pretrained vector
type Coverage struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

// Matrix is a dense row-major table, one row per vocabulary ID
type Matrix struct {
	rows int
	cols int
	data []float64
}

// NewDictionary builds a dictionary from in-memory vectors. Vectors of the
// wrong width are rejected.
func NewDictionary(dim int, vectors map[string][]float64) (*Dictionary, error) {
	if dim <= 0 {
		return nil, ErrInvalidDim
	}
	d := &Dictionary{dim: dim, vectors: make(map[string][]float64, len(vectors))}
	for word, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("embedding: vector for %q has width %d, want %d", word, len(vec), dim)
		}
		d.vectors[word] = append([]float64(nil), vec...)
	}
	return d, nil
}

// LoadDictionary reads a GloVe-style text file
func LoadDictionary(path string, dim int) (*Dictionary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding dictionary: %w", err)
	}
	defer file.Close()

	return ReadDictionary(file, dim)
}

// ReadDictionary parses lines of "<token> <d0> ... <dN-1>". Blank lines are
// ignored; lines of the wrong width or with unparsable numbers are skipped.
func ReadDictionary(r io.Reader, dim int) (*Dictionary, error) {
	if dim <= 0 {
		return nil, ErrInvalidDim
	}

	d := &Dictionary{dim: dim, vectors: make(map[string][]float64)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != dim+1 {
			d.skipped++
			continue
		}

		vec := make([]float64, dim)
		ok := true
		for i, f := range fields[1:] {
			x, err := strconv.ParseFloat(f, 64)
			if err != nil {
				ok = false
				break
			}
			vec[i] = x
		}
		if !ok {
			d.skipped++
			continue
		}
		d.vectors[fields[0]] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read embedding dictionary: %w", err)
	}

	return d, nil
}

// Dim returns the vector width
func (d *Dictionary) Dim() int { return d.dim }

// Len returns the number of vectors
func (d *Dictionary) Len() int { return len(d.vectors) }

// Skipped returns the number of malformed lines ignored while reading
func (d *Dictionary) Skipped() int { return d.skipped }

// Vector looks up a token
func (d *Dictionary) Vector(token string) ([]float64, bool) {
	vec, ok := d.vectors[token]
	return vec, ok
}

// Assemble builds the (|V|+1) x D matrix. Row 0 and rows of tokens without a
// pretrained vector stay zero.
func Assemble(v *vocab.Vocabulary, dict *Dictionary) (*Matrix, Coverage) {
	m := NewMatrix(v.Len()+1, dict.Dim())
	var cov Coverage

	for id := 1; id <= v.Len(); id++ {
		tok, _ := v.Token(id)
		vec, ok := dict.Vector(tok)
		if !ok {
			cov.Misses++
			continue
		}
		copy(m.Row(id), vec)
		cov.Hits++
	}

	return m, cov
}

// NewMatrix allocates a zero matrix
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// MatrixFromData wraps row-major data
func MatrixFromData(rows, cols int, data []float64) (*Matrix, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return nil, fmt.Errorf("embedding: %d values do not fill a %dx%d matrix", len(data), rows, cols)
	}
	return &Matrix{rows: rows, cols: cols, data: data}, nil
}

// Rows returns the row count (vocabulary size + 1)
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the embedding width
func (m *Matrix) Cols() int { return m.cols }

// Row returns a view of row i. Writes go to the matrix.
func (m *Matrix) Row(i int) []float64 {
	return m.data[i*m.cols : (i+1)*m.cols]
}

// Data returns the backing row-major slice
func (m *Matrix) Data() []float64 { return m.data }
