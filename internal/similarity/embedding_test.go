package similarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0, 0}, []float32{1, 0, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Mismatched or empty vectors score zero rather than panicking.
	assert.Zero(t, cosine([]float32{1, 2}, []float32{1}))
	assert.Zero(t, cosine(nil, nil))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestClampUnit(t *testing.T) {
	assert.Equal(t, 0.0, clampUnit(-0.3))
	assert.Equal(t, 0.5, clampUnit(0.5))
	assert.Equal(t, 1.0, clampUnit(1.7))
}

func TestEmbeddingUnavailableWithoutClient(t *testing.T) {
	var e *Embedding
	assert.False(t, e.Available())

	e = NewEmbedding(nil)
	assert.False(t, e.Available())

	_, err := e.Score(context.Background(), "a", "b")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEmbeddingExplainBands(t *testing.T) {
	e := NewEmbedding(nil)

	assert.Equal(t, "Nearly identical content - likely exact duplicate", e.Explain("", "", 0.96))
	assert.Equal(t, "Very high similarity in title and description", e.Explain("", "", 0.91))
	assert.Equal(t, "High similarity with overlapping key concepts", e.Explain("", "", 0.86))
	assert.Equal(t, "Moderate similarity with some common elements", e.Explain("", "", 0.5))
}

func TestChainComposition(t *testing.T) {
	lex := NewLexical()

	// Nothing configured: only the lexical fallback remains.
	chain := Chain(nil, NewEmbedding(nil), lex)
	assert.Len(t, chain, 1)
	assert.Equal(t, "bucketed-lexical", chain[0].Name())

	// A configured remote goes first.
	remote := NewRemoteLLM("https://inference.example.com", "token", "wf")
	chain = Chain(remote, NewEmbedding(nil), lex)
	assert.Len(t, chain, 2)
	assert.Equal(t, "remote-inference", chain[0].Name())
	assert.Equal(t, "bucketed-lexical", chain[1].Name())
}
