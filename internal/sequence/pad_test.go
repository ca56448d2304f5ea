package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadScenario(t *testing.T) {
	seqs := [][]int{{1, 2, 3}, {4, 5, 6}}
	maxlen := MaxLen(seqs)
	require.Equal(t, 3, maxlen)

	b, err := Pad(seqs, maxlen)
	require.NoError(t, err)

	rows, width := b.Shape()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, width)
}

func TestPadRightPadsWithZero(t *testing.T) {
	b, err := Pad([][]int{{7}, {}, {1, 2}}, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{7, 0, 0}, {0, 0, 0}, {1, 2, 0}}, b.Rows)
}

func TestPadIdempotent(t *testing.T) {
	first, err := Pad([][]int{{3, 1}, {2}, {5, 4, 9, 8}}, 5)
	require.NoError(t, err)

	second, err := Pad(first.Sequences(), 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPadDoesNotAliasInput(t *testing.T) {
	in := [][]int{{1, 2}}
	b, err := Pad(in, 2)
	require.NoError(t, err)

	b.Rows[0][0] = 42
	assert.Equal(t, 1, in[0][0])
}

func TestPadTooLong(t *testing.T) {
	_, err := Pad([][]int{{1, 2, 3}}, 2)
	assert.ErrorIs(t, err, ErrSequenceTooLong)

	_, err = Pad(nil, -1)
	assert.Error(t, err)
}

func TestPadZeroWidth(t *testing.T) {
	b, err := Pad([][]int{{}, {}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Len())
	assert.Empty(t, b.Rows[0])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, []int{1, 2}, Truncate([]int{1, 2, 3}, 2))
	assert.Equal(t, []int{1}, Truncate([]int{1}, 4))
}
