// Package sequence normalizes token ID sequences to a fixed width.
package sequence

import (
	"errors"
	"fmt"
)

// Padding is the ID appended to short sequences
const Padding = 0

// ErrSequenceTooLong is returned when a sequence does not fit the batch width
var ErrSequenceTooLong = errors.New("sequence: longer than maxlen")

// Batch is a rectangular (len(Rows), Width) array of token IDs
type Batch struct {
	Width int
	Rows  [][]int
}

// Len returns the number of rows
func (b Batch) Len() int { return len(b.Rows) }

// Shape returns (rows, width)
func (b Batch) Shape() (int, int) { return len(b.Rows), b.Width }

// Sequences reinterprets the padded rows as plain sequences, padding included
func (b Batch) Sequences() [][]int {
	out := make([][]int, len(b.Rows))
	for i, row := range b.Rows {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// MaxLen returns the length of the longest sequence
func MaxLen(seqs [][]int) int {
	longest := 0
	for _, seq := range seqs {
		if len(seq) > longest {
			longest = len(seq)
		}
	}
	return longest
}

// Pad right-pads every sequence with Padding up to maxlen. Sequences are
// never truncated: maxlen must be at least MaxLen(seqs).
func Pad(seqs [][]int, maxlen int) (Batch, error) {
	if maxlen < 0 {
		return Batch{}, fmt.Errorf("sequence: negative maxlen %d", maxlen)
	}

	rows := make([][]int, len(seqs))
	for i, seq := range seqs {
		if len(seq) > maxlen {
			return Batch{}, fmt.Errorf("%w: row %d has %d ids, maxlen %d", ErrSequenceTooLong, i, len(seq), maxlen)
		}
		row := make([]int, maxlen)
		copy(row, seq)
		rows[i] = row
	}

	return Batch{Width: maxlen, Rows: rows}, nil
}

// Truncate keeps at most maxlen leading IDs. Serving uses it for text longer
// than anything seen during training.
func Truncate(seq []int, maxlen int) []int {
	if len(seq) <= maxlen {
		return seq
	}
	return seq[:maxlen]
}
