package similarity

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured marks a strategy whose backing dependency (model,
	// credentials) is absent. Reported once at selection time, never a crash.
	ErrNotConfigured = errors.New("strategy not configured")

	// ErrAuthentication is an HTTP 401 from the remote inference API. Never
	// retried; escalates straight to fallback.
	ErrAuthentication = errors.New("inference authentication failed")

	// ErrRateLimited is an HTTP 429; retried with backoff up to the attempt cap.
	ErrRateLimited = errors.New("inference rate limit exceeded")

	// ErrMalformedResponse means the remote answer contained no parseable
	// JSON fragment.
	ErrMalformedResponse = errors.New("no parseable JSON in inference response")
)

// Strategy scores a candidate text against a query text. Implementations
// return a value in [0,1] and must be deterministic for fixed inputs (and,
// for the embedding variant, a fixed model version). Strategies are safe for
// concurrent use; they hold no per-call state.
type Strategy interface {
	Name() string
	Score(ctx context.Context, queryText, candidateText string) (float64, error)
	Explain(queryText, candidateText string, score float64) string
}

// Candidate is the minimal view of a bug a batch-capable strategy needs.
type Candidate struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"description"`
}

// BatchMatch is one candidate ranked by a batch-capable strategy. Score is
// on the same [0,1] scale as Strategy.Score.
type BatchMatch struct {
	ID          int
	Title       string
	Score       float64
	Explanation string
	Highlights  []string
}

// BatchScorer is implemented by strategies that compare one query against
// many candidates in a single call. The detector prefers this path when a
// strategy offers it.
type BatchScorer interface {
	ScoreBatch(ctx context.Context, queryText string, candidates []Candidate) ([]BatchMatch, error)
}

// Chain assembles the strategy order probed at startup: remote inference
// when enabled and configured, then embeddings when a model is available,
// then the lexical fallback which is always present and cannot fail.
func Chain(remote *RemoteLLM, embed *Embedding, lex *Lexical) []Strategy {
	strategies := make([]Strategy, 0, 3)
	if remote != nil && remote.Configured() {
		strategies = append(strategies, remote)
	}
	if embed != nil && embed.Available() {
		strategies = append(strategies, embed)
	}
	strategies = append(strategies, lex)
	return strategies
}
