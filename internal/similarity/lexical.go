package similarity

import (
	"context"
	"fmt"
	"strings"

	"github.com/bug-analyzer/backend/internal/textproc"
)

// Lexical is the always-available fallback strategy: word-overlap and
// substring ratios mapped into fixed similarity bands. The bucket table is
// intentionally coarse and must not be re-tuned; its whole point is that a
// reviewer can see exactly why two bugs matched. Scoring is relative to the
// query's word count, so Score(a, b) need not equal Score(b, a).
type Lexical struct{}

func NewLexical() *Lexical {
	return &Lexical{}
}

func (l *Lexical) Name() string {
	return "bucketed-lexical"
}

func (l *Lexical) Score(_ context.Context, queryText, candidateText string) (float64, error) {
	score, _, _ := l.bucket(queryText, candidateText)
	return score, nil
}

func (l *Lexical) Explain(queryText, candidateText string, _ float64) string {
	_, label, detail := l.bucket(queryText, candidateText)
	return fmt.Sprintf("%s: %s", label, detail)
}

// bucket computes both overlap ratios and walks the band table in order;
// the first row whose condition holds wins.
func (l *Lexical) bucket(queryText, candidateText string) (float64, string, string) {
	queryClean := strings.ToLower(textproc.Normalize(queryText))
	candClean := strings.ToLower(textproc.Normalize(candidateText))

	queryWords := strings.Fields(queryClean)
	if len(queryWords) == 0 {
		return 0.0, "No Content", "Empty query"
	}

	candSet := wordSet(strings.Fields(candClean))

	exactMatches := 0
	seen := make(map[string]struct{}, len(queryWords))
	for _, w := range queryWords {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := candSet[w]; ok {
			exactMatches++
		}
	}

	substringMatches := 0
	for _, w := range queryWords {
		if len(w) >= 3 && strings.Contains(candClean, w) {
			substringMatches++
		}
	}

	total := len(queryWords)
	exactRatio := float64(exactMatches) / float64(total)
	substringRatio := float64(substringMatches) / float64(total)

	exactDetail := fmt.Sprintf("%d/%d exact words match", exactMatches, total)
	substringDetail := fmt.Sprintf("%d/%d words found as substrings", substringMatches, total)

	switch {
	case exactRatio >= 0.9:
		return 0.95, "Nearly Identical", exactDetail
	case exactRatio >= 0.7:
		return 0.85, "Very Similar", exactDetail
	case exactRatio >= 0.5:
		return 0.65, "Quite Similar", exactDetail
	case substringRatio >= 0.7:
		return 0.60, "Good Substring Match", substringDetail
	case exactRatio >= 0.3:
		return 0.45, "Moderate Match", exactDetail
	case substringRatio >= 0.4:
		return 0.40, "Some Substring Match", substringDetail
	case exactRatio >= 0.1:
		return 0.25, "Low Match", exactDetail
	default:
		return 0.10, "Very Low Match", fmt.Sprintf("Only %d/%d words match", exactMatches, total)
	}
}

// MatchingTerms returns words common to both texts for highlighting,
// capped at limit.
func MatchingTerms(queryText, candidateText string, limit int) []string {
	queryWords := strings.Fields(strings.ToLower(textproc.Normalize(queryText)))
	candSet := wordSet(strings.Fields(strings.ToLower(textproc.Normalize(candidateText))))

	matches := make([]string, 0, limit)
	seen := make(map[string]struct{}, len(queryWords))
	for _, w := range queryWords {
		if len(matches) >= limit {
			break
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := candSet[w]; ok {
			matches = append(matches, w)
		}
	}

	return matches
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
