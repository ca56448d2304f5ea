package dataset

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spam-detector/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corpusText = `label,text
spam,WIN money now, click here
ham,see you tomorrow
Spam,wrong case
junk line without comma
ham,
`

func TestReadCorpus(t *testing.T) {
	c, err := ReadCorpus(strings.NewReader(corpusText))
	require.NoError(t, err)

	require.Len(t, c.Records, 3)
	assert.Equal(t, 3, c.Skipped)
	assert.Equal(t, models.Record{Label: models.Spam, Text: "WIN money now, click here"}, c.Records[0])
	assert.Equal(t, models.Ham, c.Records[1].Label)
	assert.Equal(t, "", c.Records[2].Text)

	assert.Equal(t, []float64{1, 0, 0}, Targets(c.Records))
	assert.Equal(t, "see you tomorrow", Texts(c.Records)[1])
}

func TestLoadCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.csv")
	require.NoError(t, os.WriteFile(path, []byte(corpusText), 0o644))

	c, err := LoadCorpus(path)
	require.NoError(t, err)
	assert.Len(t, c.Records, 3)

	_, err = LoadCorpus(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestShuffleDeterministic(t *testing.T) {
	records := make([]models.Record, 50)
	for i := range records {
		records[i] = models.Record{Text: strings.Repeat("x", i)}
	}

	a := Shuffle(records, rand.New(rand.NewSource(42)))
	b := Shuffle(records, rand.New(rand.NewSource(42)))
	assert.Equal(t, a, b)
	assert.ElementsMatch(t, records, a)
	assert.Equal(t, "", records[0].Text, "input must not be reordered")
}

func TestSplit(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

	train, val := Split(items, 0.1)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, train)
	assert.Equal(t, []int{11}, val)

	train, val = Split(items[:5], 0.1)
	assert.Len(t, train, 5)
	assert.Empty(t, val)

	assert.Equal(t, 2, ValidationSize(20, 0.1))
}
