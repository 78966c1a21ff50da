package rootcause

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bug-analyzer/backend/internal/models"
)

func TestClassifyAssignsExactlyOneCategory(t *testing.T) {
	c := NewClassifier()

	bugs := []models.BugRecord{
		{ID: 1, Title: "Database query extremely slow on reports table"},
	}

	analysis := c.Classify(bugs)

	total := 0
	for _, assigned := range analysis.Categories {
		total += len(assigned)
	}
	assert.Equal(t, 1, total)
	require.Len(t, analysis.Categories["Data/Database Issues"], 1)
	assert.Equal(t, 1, analysis.Categories["Data/Database Issues"][0].BugID)
}

func TestClassifyTieGoesToEarlierCategory(t *testing.T) {
	c := NewClassifier()

	// "timeout" appears in both the API and Performance keyword lists with
	// nothing to break the tie, so the earlier category wins.
	analysis := c.Classify([]models.BugRecord{{ID: 5, Title: "timeout"}})

	assert.Len(t, analysis.Categories["API Issues"], 1)
	assert.Empty(t, analysis.Categories["Performance Issues"])
}

func TestClassifyUnmatchedFallsToGeneral(t *testing.T) {
	c := NewClassifier()

	analysis := c.Classify([]models.BugRecord{{ID: 9, Title: "widget gizmo blorp"}})

	require.Len(t, analysis.Categories["General Issues"], 1)
	assignment := analysis.Categories["General Issues"][0]
	assert.Equal(t, 0.5, assignment.Confidence)
	assert.Empty(t, assignment.MatchedKeywords)
	assert.Equal(t, "General Issues", analysis.CategoryOrder[len(analysis.CategoryOrder)-1])
}

func TestClassifyMatchedKeywordsCapped(t *testing.T) {
	c := NewClassifier()

	analysis := c.Classify([]models.BugRecord{
		{ID: 2, Title: "crash", Description: "app freeze then hang, memory exception"},
	})

	require.Len(t, analysis.Categories["System Stability"], 1)
	matched := analysis.Categories["System Stability"][0].MatchedKeywords
	assert.Len(t, matched, 3)
	assert.Equal(t, []string{"crash", "freeze", "hang"}, matched)
}

func TestClassifyConfidenceScoring(t *testing.T) {
	c := NewClassifier()

	// "crash" in the title counts once for the combined text and again for
	// the title, so confidence lands at 1.5.
	analysis := c.Classify([]models.BugRecord{{ID: 3, Title: "crash"}})

	require.Len(t, analysis.Categories["System Stability"], 1)
	assert.Equal(t, 1.5, analysis.Categories["System Stability"][0].Confidence)
}

func TestClassifyAreaPathContributes(t *testing.T) {
	c := NewClassifier()

	withArea := c.Classify([]models.BugRecord{{ID: 4, Title: "crash", AreaPath: `Project\Crash-Handling`}})
	withoutArea := c.Classify([]models.BugRecord{{ID: 4, Title: "crash"}})

	areaConf := withArea.Categories["System Stability"][0].Confidence
	baseConf := withoutArea.Categories["System Stability"][0].Confidence
	assert.Greater(t, areaConf, baseConf)
}

func TestClassifyRecommendationThreshold(t *testing.T) {
	c := NewClassifier()

	// Ten bugs: two stability, one auth, seven unmatched. The pattern floor
	// is 1.5 bugs, so stability and the general bucket qualify but auth
	// does not.
	bugs := []models.BugRecord{
		{ID: 1, Title: "crash on startup"},
		{ID: 2, Title: "random freeze"},
		{ID: 3, Title: "login rejected"},
	}
	for i := 4; i <= 10; i++ {
		bugs = append(bugs, models.BugRecord{ID: i, Title: fmt.Sprintf("mystery %d", i)})
	}

	analysis := c.Classify(bugs)

	categories := make([]string, 0, len(analysis.Recommendations))
	for _, rec := range analysis.Recommendations {
		categories = append(categories, rec.Category)
	}
	assert.Contains(t, categories, "System Stability")
	assert.Contains(t, categories, "General Issues")
	assert.NotContains(t, categories, "Authentication/Security")
}

func TestClassifyRecommendationContent(t *testing.T) {
	c := NewClassifier()

	analysis := c.Classify([]models.BugRecord{
		{ID: 1, Title: "crash on startup"},
		{ID: 2, Title: "service freeze under load test", Description: "process hangs"},
	})

	require.NotEmpty(t, analysis.Recommendations)
	rec := analysis.Recommendations[0]
	assert.Equal(t, "System Stability", rec.Category)
	assert.Equal(t, 2, rec.AffectedBugs)
	assert.Equal(t, "Infrastructure and error handling", rec.Focus)
}

func TestClassifyGeneralUsesDefaultRecommendation(t *testing.T) {
	c := NewClassifier()

	analysis := c.Classify([]models.BugRecord{{ID: 1, Title: "widget gizmo blorp"}})

	require.Len(t, analysis.Recommendations, 1)
	assert.Equal(t, "General Issues", analysis.Recommendations[0].Category)
	assert.Equal(t, defaultRecommendation.Focus, analysis.Recommendations[0].Focus)
}

func TestClassifyPatternsCountEveryCategory(t *testing.T) {
	c := NewClassifier()

	analysis := c.Classify([]models.BugRecord{
		{ID: 1, Title: "crash on startup"},
		{ID: 2, Title: "api endpoint returns 500 response"},
		{ID: 3, Title: "widget gizmo blorp"},
	})

	assert.Equal(t, 1, analysis.Patterns["System Stability"])
	assert.Equal(t, 1, analysis.Patterns["API Issues"])
	assert.Equal(t, 1, analysis.Patterns["General Issues"])
	assert.Equal(t, 0, analysis.Patterns["Performance Issues"])
	assert.Equal(t, 3, analysis.TotalBugs)
}

func TestClassifyEmptyInput(t *testing.T) {
	c := NewClassifier()

	analysis := c.Classify(nil)

	assert.Zero(t, analysis.TotalBugs)
	assert.Empty(t, analysis.Recommendations)
	assert.Len(t, analysis.CategoryOrder, 8)
	for _, name := range analysis.CategoryOrder {
		assert.Empty(t, analysis.Categories[name])
	}
}
