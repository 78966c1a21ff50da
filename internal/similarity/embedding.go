package similarity

import (
	"context"
	"fmt"
	"math"

	"github.com/bug-analyzer/backend/internal/embedding"
	"github.com/bug-analyzer/backend/internal/textproc"
)

// Embedding scores candidates by cosine similarity of dense vectors from the
// configured embedding model. Preferred over the lexical fallback when a
// model is available; results are deterministic for a fixed model version.
type Embedding struct {
	client *embedding.Client
}

func NewEmbedding(client *embedding.Client) *Embedding {
	return &Embedding{client: client}
}

func (e *Embedding) Name() string {
	return "embedding"
}

func (e *Embedding) Available() bool {
	return e != nil && e.client != nil
}

func (e *Embedding) Score(ctx context.Context, queryText, candidateText string) (float64, error) {
	if !e.Available() {
		return 0, ErrNotConfigured
	}

	queryClean := textproc.Normalize(queryText)
	candClean := textproc.Normalize(candidateText)
	if queryClean == "" || candClean == "" {
		return 0, nil
	}

	vectors, err := e.client.EmbedBatch(ctx, []string{queryClean, candClean})
	if err != nil {
		return 0, fmt.Errorf("embedding similarity failed: %w", err)
	}
	if len(vectors) != 2 {
		return 0, fmt.Errorf("expected 2 embeddings, got %d", len(vectors))
	}

	return clampUnit(cosine(vectors[0], vectors[1])), nil
}

func (e *Embedding) Explain(_, _ string, score float64) string {
	switch {
	case score >= 0.95:
		return "Nearly identical content - likely exact duplicate"
	case score >= 0.90:
		return "Very high similarity in title and description"
	case score >= 0.85:
		return "High similarity with overlapping key concepts"
	default:
		return "Moderate similarity with some common elements"
	}
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
