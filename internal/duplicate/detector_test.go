package duplicate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bug-analyzer/backend/internal/models"
	"github.com/bug-analyzer/backend/internal/similarity"
)

type stubStrategy struct {
	name   string
	scores map[int]float64
	err    error
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Score(_ context.Context, _, candidateText string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	for id, score := range s.scores {
		if candidateText == fmt.Sprintf("bug-%d text bug-%d text", id, id) {
			return score, nil
		}
	}
	return 0, nil
}

func (s *stubStrategy) Explain(_, _ string, score float64) string {
	return fmt.Sprintf("stub score %.2f", score)
}

func makeBugs(ids ...int) []models.BugRecord {
	bugs := make([]models.BugRecord, len(ids))
	for i, id := range ids {
		bugs[i] = models.BugRecord{
			ID:          id,
			Title:       fmt.Sprintf("bug-%d text", id),
			Description: fmt.Sprintf("bug-%d text", id),
			State:       "Active",
		}
	}
	return bugs
}

func TestFindDuplicatesEmptyCandidates(t *testing.T) {
	d := NewDetector([]similarity.Strategy{similarity.NewLexical()})

	results, err := d.FindDuplicates(context.Background(), "anything", nil, 0.85, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindDuplicatesThresholdAndOrder(t *testing.T) {
	stub := &stubStrategy{
		name:   "stub",
		scores: map[int]float64{1: 0.99, 2: 0.90, 3: 0.50, 4: 0.87},
	}
	d := NewDetector([]similarity.Strategy{stub})

	results, err := d.FindDuplicates(context.Background(), "query", makeBugs(1, 2, 3, 4), 0.85, 10)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].BugID)
	assert.Equal(t, 2, results[1].BugID)
	assert.Equal(t, 4, results[2].BugID)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestFindDuplicatesLimit(t *testing.T) {
	stub := &stubStrategy{
		name:   "stub",
		scores: map[int]float64{1: 0.99, 2: 0.98, 3: 0.97, 4: 0.96, 5: 0.95},
	}
	d := NewDetector([]similarity.Strategy{stub})

	results, err := d.FindDuplicates(context.Background(), "query", makeBugs(1, 2, 3, 4, 5), 0.85, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFindDuplicatesBanding(t *testing.T) {
	stub := &stubStrategy{
		name:   "stub",
		scores: map[int]float64{1: 0.99, 2: 0.90, 3: 0.86},
	}
	d := NewDetector([]similarity.Strategy{stub})

	results, err := d.FindDuplicates(context.Background(), "query", makeBugs(1, 2, 3), 0.85, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, models.MatchExact, results[0].Level)
	assert.Equal(t, models.ColorGreen, results[0].Color)
	assert.Equal(t, models.MatchHigh, results[1].Level)
	assert.Equal(t, models.ColorYellow, results[1].Color)
	assert.Equal(t, models.MatchHigh, results[2].Level)
	assert.Equal(t, models.ColorYellow, results[2].Color)
}

func TestFindDuplicatesFallsBackOnError(t *testing.T) {
	failing := &stubStrategy{name: "failing", err: errors.New("backend down")}
	working := &stubStrategy{name: "working", scores: map[int]float64{1: 0.95}}
	d := NewDetector([]similarity.Strategy{failing, working})

	results, err := d.FindDuplicates(context.Background(), "query", makeBugs(1, 2), 0.85, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "working", results[0].Strategy)
}

func TestFindDuplicatesAllStrategiesFail(t *testing.T) {
	d := NewDetector([]similarity.Strategy{
		&stubStrategy{name: "a", err: errors.New("down")},
		&stubStrategy{name: "b", err: errors.New("also down")},
	})

	_, err := d.FindDuplicates(context.Background(), "query", makeBugs(1), 0.85, 10)
	assert.Error(t, err)
}

func TestExactDuplicateViaLexical(t *testing.T) {
	d := NewDetector([]similarity.Strategy{similarity.NewLexical()})

	bug := models.BugRecord{
		ID:          7,
		Title:       "login page crashes on submit",
		Description: "",
	}

	results, err := d.FindDuplicates(context.Background(), "login page crashes on submit", []models.BugRecord{bug}, 0.85, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 95.0, results[0].Score)
	assert.Equal(t, models.MatchExact, results[0].Level)
	assert.Equal(t, models.ColorGreen, results[0].Color)
}

func TestDirectMatches(t *testing.T) {
	d := NewDetector([]similarity.Strategy{similarity.NewLexical()})

	bugs := []models.BugRecord{
		{ID: 1, Title: "Payment timeout on checkout", Description: ""},
		{ID: 2, Title: "Unrelated", Description: "something about payment timeout handling"},
		{ID: 3, Title: "Totally different", Description: "no overlap here"},
	}

	matches := d.DirectMatches("payment timeout", bugs)
	require.Len(t, matches, 2)

	for _, m := range matches {
		assert.Equal(t, models.MatchQuery, m.Level)
		assert.Equal(t, models.ColorBlue, m.Color)
		assert.Equal(t, 100.0, m.Score)
		assert.Contains(t, m.Explanation, "payment timeout")
	}
}

func TestMergeDeduplicatesAndCaps(t *testing.T) {
	direct := []models.SimilarityResult{
		{BugID: 1, Score: 100, Level: models.MatchQuery},
		{BugID: 2, Score: 100, Level: models.MatchQuery},
	}
	ranked := []models.SimilarityResult{
		{BugID: 2, Score: 96},
		{BugID: 3, Score: 90},
		{BugID: 4, Score: 88},
	}

	combined := Merge(direct, ranked, 3)
	require.Len(t, combined, 3)
	assert.Equal(t, 1, combined[0].BugID)
	assert.Equal(t, 2, combined[1].BugID)
	assert.Equal(t, models.MatchQuery, combined[1].Level)
	assert.Equal(t, 3, combined[2].BugID)
}
