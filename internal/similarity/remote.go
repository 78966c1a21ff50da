package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/pkg/circuitbreaker"
	"github.com/bug-analyzer/backend/pkg/logger"
	"github.com/bug-analyzer/backend/pkg/retry"
)

const (
	maxBatchCandidates   = 10
	maxSummaryLength     = 200
	remoteRequestTimeout = 60 * time.Second
)

// RemoteLLM ranks candidates through a hosted inference workflow. The
// workflow receives the query plus a JSON context of candidate summaries and
// answers in prose that embeds a JSON array of matches; we extract the
// fragment between the first '[' and the last ']'. It is the highest-priority
// strategy when enabled and falls away cleanly when not configured.
type RemoteLLM struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	workflowID  string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewRemoteLLM(baseURL, token, workflowID string) *RemoteLLM {
	cb := circuitbreaker.NewCircuitBreaker("remote-inference", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          60 * time.Second,
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Logger:           logger.GetLogger(),
	})

	return &RemoteLLM{
		httpClient: &http.Client{Timeout: remoteRequestTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		workflowID: workflowID,
		cb:         cb,
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   2 * time.Second,
			MaxDelay:       10 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			NonRetryable:   []error{ErrAuthentication},
			Logger:         logger.GetLogger(),
		},
	}
}

func (r *RemoteLLM) Name() string {
	return "remote-inference"
}

// Configured reports whether every credential the workflow needs is present.
// Checked once at startup; an unconfigured remote is skipped, never an error.
func (r *RemoteLLM) Configured() bool {
	return r != nil && r.baseURL != "" && r.token != "" && r.workflowID != ""
}

type inferenceRequest struct {
	WorkflowID           string `json:"workflow_id"`
	Query                string `json:"query"`
	IsPersistenceAllowed bool   `json:"is_persistence_allowed"`
	Context              string `json:"context,omitempty"`
}

type inferenceResponse struct {
	Result struct {
		Answer string `json:"answer"`
	} `json:"result"`
}

type remoteMatch struct {
	BugID           int      `json:"bug_id"`
	Title           string   `json:"title"`
	SimilarityScore float64  `json:"similarity_score"`
	Explanation     string   `json:"explanation"`
	Highlights      []string `json:"highlights"`
}

// ScoreBatch sends the query with up to ten candidate summaries to the
// workflow and parses the ranked matches out of its answer. An answer with no
// JSON array is ErrMalformedResponse, which the detector treats as grounds
// for fallback rather than a fatal error.
func (r *RemoteLLM) ScoreBatch(ctx context.Context, queryText string, candidates []Candidate) ([]BatchMatch, error) {
	if !r.Configured() {
		return nil, ErrNotConfigured
	}

	if len(candidates) > maxBatchCandidates {
		candidates = candidates[:maxBatchCandidates]
	}

	summaries := make([]Candidate, len(candidates))
	for i, c := range candidates {
		c.Summary = truncateSummary(c.Summary)
		summaries[i] = c
	}

	contextJSON, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidate context: %w", err)
	}

	query := fmt.Sprintf(`Find duplicate bugs for the following query:
%q

Analyze the query against the existing bugs and identify potential duplicates.
Return a JSON array where each element contains:
- bug_id: The ID of the potentially duplicate bug
- title: The title of the bug
- similarity_score: A score from 0-100 indicating how similar it is
- explanation: Why this might be a duplicate
- highlights: Key matching phrases

Format as valid JSON.`, queryText)

	answer, err := r.infer(ctx, query, "Existing bugs to compare against:\n"+string(contextJSON))
	if err != nil {
		return nil, err
	}

	start := strings.Index(answer, "[")
	end := strings.LastIndex(answer, "]")
	if start < 0 || end <= start {
		logger.Warn("No JSON array found in inference answer")
		return nil, ErrMalformedResponse
	}

	var parsed []remoteMatch
	if err := json.Unmarshal([]byte(answer[start:end+1]), &parsed); err != nil {
		logger.Warn("Failed to parse JSON from inference answer", zap.Error(err))
		return nil, ErrMalformedResponse
	}

	matches := make([]BatchMatch, 0, len(parsed))
	for _, m := range parsed {
		matches = append(matches, BatchMatch{
			ID:          m.BugID,
			Title:       m.Title,
			Score:       clampUnit(m.SimilarityScore / 100.0),
			Explanation: m.Explanation,
			Highlights:  m.Highlights,
		})
	}

	logger.Debug("Remote inference ranked candidates",
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)),
	)

	return matches, nil
}

// Score satisfies the pairwise interface by running a one-candidate batch.
func (r *RemoteLLM) Score(ctx context.Context, queryText, candidateText string) (float64, error) {
	matches, err := r.ScoreBatch(ctx, queryText, []Candidate{{ID: 0, Summary: candidateText}})
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}
	return matches[0].Score, nil
}

func (r *RemoteLLM) Explain(_, _ string, score float64) string {
	return fmt.Sprintf("Remote inference similarity %.0f%%", score*100)
}

func (r *RemoteLLM) infer(ctx context.Context, query, contextBlock string) (string, error) {
	payload, err := json.Marshal(inferenceRequest{
		WorkflowID:           r.workflowID,
		Query:                query,
		IsPersistenceAllowed: false,
		Context:              contextBlock,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode inference request: %w", err)
	}

	var answer string

	err = r.cb.Execute(ctx, func() error {
		return retry.Do(ctx, r.retryConfig, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				r.baseURL+"/v1/inference", bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("failed to build inference request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+r.token)
			req.Header.Set("User-Agent", "bug-analyzer/1.0")

			resp, err := r.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("inference request failed: %w", err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusUnauthorized:
				return ErrAuthentication
			case resp.StatusCode == http.StatusTooManyRequests:
				return ErrRateLimited
			case resp.StatusCode >= 400:
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("inference API error %d: %s", resp.StatusCode, string(body))
			}

			var parsed inferenceResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return fmt.Errorf("invalid JSON from inference API: %w", err)
			}

			answer = parsed.Result.Answer
			return nil
		})
	})

	if err != nil {
		return "", err
	}

	return answer, nil
}

func truncateSummary(s string) string {
	if len(s) > maxSummaryLength {
		return s[:maxSummaryLength] + "..."
	}
	return s
}
