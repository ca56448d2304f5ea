// Package vocab builds the token to ID mapping shared by training and serving.
package vocab

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"spam-detector/internal/models"
)

// Reserved is the ID used for padding. It is never assigned to a token.
const Reserved = 0

// punctuation is replaced by spaces before splitting. Apostrophes are kept.
const punctuation = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~"

// ErrInvalidIndex is returned when a persisted token table is not a dense 1..N mapping
var ErrInvalidIndex = errors.New("vocab: invalid token index")

// Vocabulary maps tokens to dense positive IDs in first-seen order
type Vocabulary struct {
	index  map[string]int
	tokens []string // tokens[id-1]
}

// Tokenize lower-cases text, drops punctuation and splits on whitespace
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) || unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, text)
	return strings.Fields(text)
}

// Build scans the corpus once and assigns the next unused ID to every new token
func Build(records []models.Record) *Vocabulary {
	v := &Vocabulary{index: make(map[string]int)}
	for _, rec := range records {
		for _, tok := range Tokenize(rec.Text) {
			if _, ok := v.index[tok]; ok {
				continue
			}
			v.tokens = append(v.tokens, tok)
			v.index[tok] = len(v.tokens)
		}
	}
	return v
}

// FromIndex rebuilds a vocabulary from a persisted token table
func FromIndex(index map[string]int) (*Vocabulary, error) {
	tokens := make([]string, len(index))
	for tok, id := range index {
		if id <= Reserved || id > len(index) {
			return nil, fmt.Errorf("%w: token %q has id %d outside 1..%d", ErrInvalidIndex, tok, id, len(index))
		}
		if tokens[id-1] != "" {
			return nil, fmt.Errorf("%w: id %d assigned to %q and %q", ErrInvalidIndex, id, tokens[id-1], tok)
		}
		if tok == "" {
			return nil, fmt.Errorf("%w: empty token for id %d", ErrInvalidIndex, id)
		}
		tokens[id-1] = tok
	}

	v := &Vocabulary{index: make(map[string]int, len(index)), tokens: tokens}
	for tok, id := range index {
		v.index[tok] = id
	}
	return v, nil
}

// Len returns the number of real tokens (the reserved ID is not counted)
func (v *Vocabulary) Len() int {
	return len(v.tokens)
}

// ID looks up a token
func (v *Vocabulary) ID(token string) (int, bool) {
	id, ok := v.index[token]
	return id, ok
}

// Token looks up an ID
func (v *Vocabulary) Token(id int) (string, bool) {
	if id <= Reserved || id > len(v.tokens) {
		return "", false
	}
	return v.tokens[id-1], true
}

// Encode converts text into IDs. Tokens missing from the vocabulary are
// dropped, so the result may be shorter than the token count.
func (v *Vocabulary) Encode(text string) []int {
	toks := Tokenize(text)
	seq := make([]int, 0, len(toks))
	for _, tok := range toks {
		if id, ok := v.index[tok]; ok {
			seq = append(seq, id)
		}
	}
	return seq
}

// EncodeAll encodes every text in order
func (v *Vocabulary) EncodeAll(texts []string) [][]int {
	seqs := make([][]int, len(texts))
	for i, text := range texts {
		seqs[i] = v.Encode(text)
	}
	return seqs
}

// Decode joins the tokens of a sequence, skipping padding and unknown IDs
func (v *Vocabulary) Decode(seq []int) string {
	words := make([]string, 0, len(seq))
	for _, id := range seq {
		if tok, ok := v.Token(id); ok {
			words = append(words, tok)
		}
	}
	return strings.Join(words, " ")
}

// Index returns a copy of the token to ID table
func (v *Vocabulary) Index() map[string]int {
	out := make(map[string]int, len(v.index))
	for tok, id := range v.index {
		out[tok] = id
	}
	return out
}
