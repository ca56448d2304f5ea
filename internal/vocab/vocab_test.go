package vocab

import (
	"testing"

	"spam-detector/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioCorpus() []models.Record {
	return []models.Record{
		{Label: models.Spam, Text: "win money now"},
		{Label: models.Ham, Text: "see you tomorrow"},
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"win", "money", "now"}, Tokenize("Win MONEY, now!"))
	assert.Equal(t, []string{"don't", "go", "there"}, Tokenize("don't\tgo...there\n"))
	assert.Empty(t, Tokenize("  ?!  "))
}

func TestBuildScenario(t *testing.T) {
	v := Build(scenarioCorpus())
	require.Equal(t, 6, v.Len())

	for i, tok := range []string{"win", "money", "now", "see", "you", "tomorrow"} {
		id, ok := v.ID(tok)
		require.True(t, ok, tok)
		assert.Equal(t, i+1, id)
	}
}

func TestBuildDeterministic(t *testing.T) {
	corpus := append(scenarioCorpus(), models.Record{Label: models.Spam, Text: "Win now, see money!"})
	a := Build(corpus)
	b := Build(corpus)
	assert.Equal(t, a.Index(), b.Index())

	for tok, id := range a.Index() {
		assert.NotEqual(t, Reserved, id, tok)
	}
	_, ok := a.Token(Reserved)
	assert.False(t, ok)
}

func TestBuildEmpty(t *testing.T) {
	v := Build(nil)
	assert.Equal(t, 0, v.Len())
	assert.Empty(t, v.Encode("anything at all"))
}

func TestEncodeDropsUnknown(t *testing.T) {
	v := Build(scenarioCorpus())
	assert.Equal(t, []int{1, 5, 3}, v.Encode("win YOU lottery now"))
	assert.Empty(t, v.Encode("completely unseen words"))

	seqs := v.EncodeAll([]string{"see you", "money"})
	assert.Equal(t, [][]int{{4, 5}, {2}}, seqs)
}

func TestDecode(t *testing.T) {
	v := Build(scenarioCorpus())
	assert.Equal(t, "win money", v.Decode([]int{1, 2, 0, 0, 99}))
}

func TestFromIndex(t *testing.T) {
	v := Build(scenarioCorpus())

	restored, err := FromIndex(v.Index())
	require.NoError(t, err)
	assert.Equal(t, v.Index(), restored.Index())
	assert.Equal(t, v.Encode("see you tomorrow"), restored.Encode("see you tomorrow"))

	t.Run("ReservedID", func(t *testing.T) {
		_, err := FromIndex(map[string]int{"a": 0})
		assert.ErrorIs(t, err, ErrInvalidIndex)
	})

	t.Run("Gap", func(t *testing.T) {
		_, err := FromIndex(map[string]int{"a": 1, "b": 3})
		assert.ErrorIs(t, err, ErrInvalidIndex)
	})

	t.Run("Duplicate", func(t *testing.T) {
		_, err := FromIndex(map[string]int{"a": 1, "b": 1})
		assert.ErrorIs(t, err, ErrInvalidIndex)
	})

	t.Run("Empty", func(t *testing.T) {
		empty, err := FromIndex(map[string]int{})
		require.NoError(t, err)
		assert.Equal(t, 0, empty.Len())
	})
}
