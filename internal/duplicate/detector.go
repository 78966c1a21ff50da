package duplicate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/metrics"
	"github.com/bug-analyzer/backend/internal/models"
	"github.com/bug-analyzer/backend/internal/similarity"
	"github.com/bug-analyzer/backend/pkg/logger"
)

const (
	DefaultThreshold = 0.85
	DefaultLimit     = 10

	descriptionPreviewLength = 200
)

// Detector runs a query against candidate bugs through an ordered strategy
// chain. Each strategy is tried in turn; a strategy error is logged and the
// next one takes over, so a search only fails when the always-available
// lexical fallback is somehow absent. Scores from every strategy land on the
// same 0-100 scale before banding.
type Detector struct {
	strategies []similarity.Strategy
}

func NewDetector(strategies []similarity.Strategy) *Detector {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name()
	}
	logger.Info("Duplicate detector initialized", zap.Strings("strategies", names))

	return &Detector{strategies: strategies}
}

// FindDuplicates ranks candidates above the threshold, highest score first,
// truncated to limit. Empty candidates give an empty result, never an error.
func (d *Detector) FindDuplicates(ctx context.Context, queryText string, candidates []models.BugRecord, threshold float64, limit int) ([]models.SimilarityResult, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(candidates) == 0 {
		return []models.SimilarityResult{}, nil
	}

	start := time.Now()
	defer func() {
		metrics.AnalysisDuration.WithLabelValues("find_duplicates").Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for _, strategy := range d.strategies {
		results, err := d.runStrategy(ctx, strategy, queryText, candidates, threshold)
		if err != nil {
			logger.Warn("Similarity strategy failed, falling back",
				zap.String("strategy", strategy.Name()),
				zap.Error(err),
			)
			metrics.StrategyFallbacks.WithLabelValues(strategy.Name()).Inc()
			lastErr = err
			continue
		}

		metrics.DuplicateSearches.WithLabelValues(strategy.Name()).Inc()

		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
		if len(results) > limit {
			results = results[:limit]
		}

		logger.Info("Duplicate search complete",
			zap.String("strategy", strategy.Name()),
			zap.Int("compared", len(candidates)),
			zap.Int("matches", len(results)),
		)

		return results, nil
	}

	return nil, fmt.Errorf("all similarity strategies failed: %w", lastErr)
}

func (d *Detector) runStrategy(ctx context.Context, strategy similarity.Strategy, queryText string, candidates []models.BugRecord, threshold float64) ([]models.SimilarityResult, error) {
	byID := make(map[int]models.BugRecord, len(candidates))
	for _, bug := range candidates {
		byID[bug.ID] = bug
	}

	if batcher, ok := strategy.(similarity.BatchScorer); ok {
		batch := make([]similarity.Candidate, len(candidates))
		for i, bug := range candidates {
			batch[i] = similarity.Candidate{ID: bug.ID, Title: bug.Title, Summary: bug.Description}
		}

		matches, err := batcher.ScoreBatch(ctx, queryText, batch)
		if err != nil {
			return nil, err
		}

		results := make([]models.SimilarityResult, 0, len(matches))
		for _, m := range matches {
			if m.Score < threshold {
				continue
			}
			bug := byID[m.ID]
			result := toResult(bug, round(m.Score*100, 2), strategy.Name())
			result.Explanation = m.Explanation
			result.Highlights = m.Highlights
			if m.Title != "" {
				result.Title = m.Title
			}
			results = append(results, result)
		}
		return results, nil
	}

	results := make([]models.SimilarityResult, 0, len(candidates))
	for _, bug := range candidates {
		score, err := strategy.Score(ctx, queryText, bug.CombinedText())
		if err != nil {
			return nil, err
		}
		if score < threshold {
			continue
		}

		result := toResult(bug, scaleScore(strategy.Name(), score), strategy.Name())
		result.Explanation = strategy.Explain(queryText, bug.CombinedText(), score)
		result.Highlights = similarity.MatchingTerms(queryText, bug.CombinedText(), highlightLimit(strategy.Name()))
		results = append(results, result)
	}
	return results, nil
}

// DirectMatches returns candidates whose raw title or description contains
// the query as a substring, flagged distinctly from similarity scoring.
func (d *Detector) DirectMatches(queryText string, candidates []models.BugRecord) []models.SimilarityResult {
	queryLower := strings.ToLower(queryText)
	if queryLower == "" {
		return nil
	}

	var matches []models.SimilarityResult
	for _, bug := range candidates {
		if strings.Contains(strings.ToLower(bug.Title), queryLower) ||
			strings.Contains(strings.ToLower(bug.Description), queryLower) {
			result := toResult(bug, 100, "query-match")
			result.Level = models.MatchQuery
			result.Color = models.ColorBlue
			result.Explanation = fmt.Sprintf("Direct match for query '%s'", queryText)
			matches = append(matches, result)
		}
	}
	return matches
}

// Merge combines direct matches ahead of similarity results, dropping
// similarity entries for bugs already reported as direct matches, capped at
// limit.
func Merge(direct, ranked []models.SimilarityResult, limit int) []models.SimilarityResult {
	if limit <= 0 {
		limit = DefaultLimit
	}

	combined := make([]models.SimilarityResult, 0, len(direct)+len(ranked))
	seen := make(map[int]struct{}, len(direct))

	for _, m := range direct {
		if _, dup := seen[m.BugID]; dup {
			continue
		}
		seen[m.BugID] = struct{}{}
		combined = append(combined, m)
	}
	for _, r := range ranked {
		if _, dup := seen[r.BugID]; dup {
			continue
		}
		seen[r.BugID] = struct{}{}
		combined = append(combined, r)
	}

	if len(combined) > limit {
		combined = combined[:limit]
	}
	return combined
}

func toResult(bug models.BugRecord, score float64, strategyName string) models.SimilarityResult {
	level, color := band(score)
	return models.SimilarityResult{
		BugID:       bug.ID,
		Title:       bug.Title,
		Description: previewDescription(bug.Description),
		Score:       score,
		Level:       level,
		Color:       color,
		State:       bug.State,
		Priority:    bug.Priority,
		CreatedAt:   bug.CreatedAt,
		URL:         bug.URL,
		Strategy:    strategyName,
	}
}

func band(score float64) (models.MatchLevel, models.MatchColor) {
	switch {
	case score >= 95:
		return models.MatchExact, models.ColorGreen
	case score >= 85:
		return models.MatchHigh, models.ColorYellow
	default:
		return models.MatchModerate, models.ColorOrange
	}
}

// scaleScore moves a unit-interval score onto 0-100. Lexical band values are
// reported at one decimal, model scores at two.
func scaleScore(strategyName string, score float64) float64 {
	if strategyName == "bucketed-lexical" {
		return round(score*100, 1)
	}
	return round(score*100, 2)
}

func highlightLimit(strategyName string) int {
	if strategyName == "bucketed-lexical" {
		return 8
	}
	return 10
}

func previewDescription(s string) string {
	if len(s) > descriptionPreviewLength {
		return s[:descriptionPreviewLength] + "..."
	}
	return s
}

func round(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
