package rootcause

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/metrics"
	"github.com/bug-analyzer/backend/internal/models"
	"github.com/bug-analyzer/backend/internal/textproc"
	"github.com/bug-analyzer/backend/pkg/logger"
)

const generalCategory = "General Issues"

// Categories are evaluated in declaration order; a bug that ties across
// categories lands in the earlier one. Keyword lists are deliberately small
// and reviewable rather than exhaustive.
var categories = []struct {
	name     string
	keywords []string
}{
	{"System Stability", []string{"crash", "freeze", "hang", "memory", "exception", "error", "fail"}},
	{"API Issues", []string{"api", "endpoint", "request", "response", "timeout", "connection", "service"}},
	{"UI/UX Problems", []string{"button", "page", "display", "layout", "ui", "interface", "render"}},
	{"Configuration Issues", []string{"config", "setting", "parameter", "environment", "deployment"}},
	{"Data/Database Issues", []string{"database", "data", "query", "table", "connection", "sql"}},
	{"Authentication/Security", []string{"login", "auth", "permission", "access", "security", "token"}},
	{"Performance Issues", []string{"slow", "performance", "speed", "latency", "timeout", "load"}},
	{"Environment Issues", []string{"browser", "device", "platform", "version", "compatibility"}},
}

var recommendationMap = map[string]models.Recommendation{
	"System Stability": {
		Focus:   "Infrastructure and error handling",
		Action:  "Implement comprehensive logging and monitoring",
		Testing: "Add stability and stress testing",
	},
	"API Issues": {
		Focus:   "API design and integration testing",
		Action:  "Review API contracts and add timeout handling",
		Testing: "Implement API integration test suite",
	},
	"UI/UX Problems": {
		Focus:   "Frontend code quality and browser testing",
		Action:  "Improve UI component testing and responsive design",
		Testing: "Cross-browser and device testing",
	},
	"Configuration Issues": {
		Focus:   "Deployment and environment management",
		Action:  "Implement configuration validation and defaults",
		Testing: "Test deployment procedures across environments",
	},
	"Data/Database Issues": {
		Focus:   "Data integrity and database performance",
		Action:  "Review database queries and add proper indexing",
		Testing: "Add database performance and migration tests",
	},
}

var defaultRecommendation = models.Recommendation{
	Focus:   "Code review and testing practices",
	Action:  "Implement additional code review processes",
	Testing: "Expand test coverage for affected areas",
}

// Analysis is the full classification output. CategoryOrder preserves the
// taxonomy ordering so clients can render categories deterministically.
type Analysis struct {
	TotalBugs       int                                    `json:"total_bugs_analyzed"`
	Categories      map[string][]models.CategoryAssignment `json:"categories"`
	CategoryOrder   []string                               `json:"category_order"`
	Recommendations []models.Recommendation                `json:"recommendations"`
	Patterns        map[string]int                         `json:"patterns"`
}

type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify assigns each bug to exactly one category. Score per category is
// one point per keyword found anywhere in the combined text, plus 0.5 per
// keyword in the title and 0.3 per keyword in the area path. Bugs matching
// nothing fall into General Issues at confidence 0.5. Deterministic for a
// fixed input order.
func (c *Classifier) Classify(bugs []models.BugRecord) Analysis {
	start := time.Now()
	defer func() {
		metrics.AnalysisDuration.WithLabelValues("root_cause").Observe(time.Since(start).Seconds())
	}()

	analysis := Analysis{
		TotalBugs:     len(bugs),
		Categories:    make(map[string][]models.CategoryAssignment, len(categories)+1),
		CategoryOrder: make([]string, 0, len(categories)+1),
		Patterns:      make(map[string]int, len(categories)+1),
	}
	for _, cat := range categories {
		analysis.Categories[cat.name] = []models.CategoryAssignment{}
		analysis.CategoryOrder = append(analysis.CategoryOrder, cat.name)
	}

	for _, bug := range bugs {
		name, assignment := classifyOne(bug)
		if name == generalCategory {
			if _, ok := analysis.Categories[generalCategory]; !ok {
				analysis.Categories[generalCategory] = []models.CategoryAssignment{}
				analysis.CategoryOrder = append(analysis.CategoryOrder, generalCategory)
			}
		}
		analysis.Categories[name] = append(analysis.Categories[name], assignment)
	}

	// A category becomes a pattern worth acting on at 15% of the dataset,
	// with a floor of one bug so small datasets still produce output.
	minPattern := math.Max(1, float64(len(bugs))*0.15)
	for _, name := range analysis.CategoryOrder {
		assigned := analysis.Categories[name]
		analysis.Patterns[name] = len(assigned)
		if float64(len(assigned)) >= minPattern {
			rec, ok := recommendationMap[name]
			if !ok {
				rec = defaultRecommendation
			}
			rec.Category = name
			rec.AffectedBugs = len(assigned)
			analysis.Recommendations = append(analysis.Recommendations, rec)
		}
	}

	logger.Info("Root cause analysis completed",
		zap.Int("bugs", len(bugs)),
		zap.Int("recommendations", len(analysis.Recommendations)),
	)

	return analysis
}

func classifyOne(bug models.BugRecord) (string, models.CategoryAssignment) {
	title := strings.ToLower(textproc.Normalize(bug.Title))
	description := strings.ToLower(textproc.Normalize(bug.Description))
	reason := strings.ToLower(textproc.Normalize(bug.Reason))
	areaPath := strings.ToLower(bug.AreaPath)
	tags := strings.ToLower(strings.Join(bug.Tags, " "))

	bugText := strings.Join([]string{title, description, reason, areaPath, tags}, " ")

	bestName := ""
	bestScore := 0.0

	for _, cat := range categories {
		score := 0.0
		for _, kw := range cat.keywords {
			if strings.Contains(bugText, kw) {
				score += 1.0
			}
			if strings.Contains(title, kw) {
				score += 0.5
			}
			if strings.Contains(areaPath, kw) {
				score += 0.3
			}
		}
		if score > bestScore {
			bestScore = score
			bestName = cat.name
		}
	}

	if bestName == "" {
		return generalCategory, models.CategoryAssignment{
			BugID:      bug.ID,
			Title:      bug.Title,
			Category:   generalCategory,
			Confidence: 0.5,
		}
	}

	var matched []string
	for _, cat := range categories {
		if cat.name != bestName {
			continue
		}
		for _, kw := range cat.keywords {
			if strings.Contains(bugText, kw) {
				matched = append(matched, kw)
				if len(matched) == 3 {
					break
				}
			}
		}
	}

	return bestName, models.CategoryAssignment{
		BugID:           bug.ID,
		Title:           bug.Title,
		Category:        bestName,
		Confidence:      math.Round(bestScore*10) / 10,
		MatchedKeywords: matched,
	}
}
