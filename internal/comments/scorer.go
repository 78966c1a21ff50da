package comments

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bug-analyzer/backend/internal/metrics"
	"github.com/bug-analyzer/backend/internal/models"
)

const (
	baseScore = 10

	// DefaultMinImportance is the threshold below which a comment is noise
	// for triage purposes.
	DefaultMinImportance = 15
)

// Phrase groups are checked in a fixed order and each group awards its bonus
// at most once, on the first phrase found. Changing the order changes scores;
// keep it stable.
var rootCausePhrases = []string{
	"root cause analysis", "root cause", "analysis indicates", "analysis revealed",
	"our analysis", "investigation shows", "discovered that", "found that",
	"the issue is caused by", "underlying cause", "primary cause",
}

var crossSystemIndicators = []string{
	"plau", "pluk", "pl global", "system comparison", "other systems",
	"similar issue in", "same issue in", "across systems", "multiple systems",
}

var implementationDetails = []string{
	"class and", "attribute", "element class", "aria-current", "highlighting functionality",
	"implementation", "code changes", "staged", "committed", "introduced files",
	"new files", "tochighlightedelement", "dynamically", "scrolling",
}

var investigationKeywords = []string{
	"attempted to validate", "we observed", "as illustrated below", "based on",
	"following internal discussions", "it was decided", "we attempted", "however we observed",
}

var solutionKeywords = []string{
	"to fix", "solution", "workaround", "to address", "to resolve",
	"fix implemented", "changes made", "approach taken", "method used",
}

var systemReferences = []string{
	"document display page", "search results page", "table of contents",
	"multi-level hierarchy", "collapsible", "focus behavior", "highlighting",
}

var visualIndicators = []string{
	"as illustrated below", "image", "screenshot", "attached", "picture",
	"visual", "see attached", "[image]", "screen capture", "refer to the attached",
}

var codeIndicators = []string{
	"function", "method", "class", "variable", "code", "script", "query",
	"file", "path", "folder", "directory", "config", ".js", ".html",
	".css", ".py", ".java", ".cs", "src/", "app/", "component",
}

var technicalTerms = []string{
	"api", "database", "server", "client", "service", "endpoint",
	"performance", "memory", "cpu", "network", "timeout", "error", "exception",
	"browser", "dom", "html", "css", "javascript", "frontend", "backend",
}

var namedSystems = []string{"plau", "pluk", "pl global"}

var technicalDensityWords = []string{
	"technical", "implementation", "development", "analysis", "investigation",
	"architecture", "design", "algorithm", "framework", "library", "component",
}

var closurePhrases = []string{
	"closing the bug", "bug closed", "issue closed", "resolved",
	"closing this", "bug is closed", "issue resolved", "marking as complete",
}

var lowValuePhrases = []string{
	"thanks", "thank you", "looks good", "approved", "lgtm",
	"ok", "fine", "agreed", "yes", "no problem", "+1",
}

var statusOnlyPhrases = []string{
	"assigned to", "bug assigned", "status changed", "priority changed",
	"moved to", "transferred to", "state changed",
}

// ScoreComment ranks a discussion comment by how much technical signal it
// carries. Bonuses reward root cause analysis, implementation detail and
// investigation narrative; penalties push down closures, pleasantries and
// bare status changes. The raw sum may go negative but the returned score is
// floored at 1 for any non-empty comment.
func ScoreComment(text string) int {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	score := baseScore

	score += firstMatchBonus(lower, rootCausePhrases, 35)
	score += firstMatchBonus(lower, crossSystemIndicators, 30)
	score += firstMatchBonus(lower, implementationDetails, 28)
	score += firstMatchBonus(lower, investigationKeywords, 25)
	score += firstMatchBonus(lower, solutionKeywords, 22)
	score += firstMatchBonus(lower, systemReferences, 20)
	score += firstMatchBonus(lower, visualIndicators, 25)
	score += firstMatchBonus(lower, codeIndicators, 18)
	score += firstMatchBonus(lower, technicalTerms, 15)

	// Longer comments tend to carry the analysis worth surfacing.
	switch {
	case len(text) > 500:
		score += 10
	case len(text) > 200:
		score += 5
	}

	if containsAny(lower, namedSystems) {
		score += 15
	}

	for _, word := range technicalDensityWords {
		if strings.Contains(lower, word) {
			score += 3
		}
	}

	if containsAny(lower, closurePhrases) {
		if len(text) < 50 {
			score -= 20
		} else {
			score -= 10
		}
	}

	if containsAny(lower, lowValuePhrases) {
		if len(text) < 30 {
			score -= 18
		} else {
			score -= 8
		}
	}

	if len(text) < 100 && containsAny(lower, statusOnlyPhrases) {
		score -= 15
	}

	if len(text) < 10 {
		score -= 10
	}

	if score < 1 {
		return 1
	}
	return score
}

func firstMatchBonus(lower string, phrases []string, bonus int) int {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return bonus
		}
	}
	return 0
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ScoreAll scores every comment and returns them sorted by descending
// importance, original order preserved for ties.
func ScoreAll(raw []models.Comment) []models.CommentScore {
	scored := make([]models.CommentScore, 0, len(raw))
	for _, c := range raw {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		score := ScoreComment(c.Text)
		scored = append(scored, models.CommentScore{
			Comment:         c,
			ImportanceScore: score,
			Type:            models.TypeForScore(score),
		})
		metrics.CommentsScored.Inc()
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].ImportanceScore > scored[j].ImportanceScore
	})

	return scored
}

// Digest is the triage view over a bug's scored comments: the strongest
// comment, everything above the threshold, a short tail of alternatives and
// the chronologically latest entry.
type Digest struct {
	Primary           *models.CommentScore  `json:"comment_data"`
	Important         []models.CommentScore `json:"important_comments"`
	Alternatives      []models.CommentScore `json:"alternative_comments"`
	Latest            *models.CommentScore  `json:"latest_comment_data"`
	SelectionCriteria string                `json:"selection_criteria"`
	TotalComments     int                   `json:"total_comments"`
	AboveThreshold    int                   `json:"comments_above_threshold"`
	ThresholdUsed     int                   `json:"threshold_used"`
}

// BuildDigest selects which comments a triager should read first. When
// nothing clears the threshold the top two comments are shown anyway so the
// response is never empty for a bug that has discussion.
func BuildDigest(raw []models.Comment, minImportance int) Digest {
	if minImportance <= 0 {
		minImportance = DefaultMinImportance
	}

	scored := ScoreAll(raw)
	if len(scored) == 0 {
		return Digest{
			SelectionCriteria: "No valid comments found",
			ThresholdUsed:     minImportance,
		}
	}

	var important []models.CommentScore
	for _, c := range scored {
		if c.ImportanceScore >= minImportance {
			important = append(important, c)
		}
	}

	var criteria string
	if len(important) == 0 {
		n := 2
		if len(scored) < n {
			n = len(scored)
		}
		important = scored[:n]
		criteria = noThresholdCriteria(minImportance, len(important))
	} else {
		criteria = thresholdCriteria(minImportance, len(important))
	}

	primary := important[0]

	latest := scored[0]
	for _, c := range scored[1:] {
		if c.Revision > latest.Revision {
			latest = c
		}
	}

	altStart := len(important)
	altEnd := altStart + 3
	if altEnd > len(scored) {
		altEnd = len(scored)
	}
	var alternatives []models.CommentScore
	if altStart < altEnd {
		alternatives = make([]models.CommentScore, altEnd-altStart)
		copy(alternatives, scored[altStart:altEnd])
		for i := range alternatives {
			alternatives[i].Text = previewText(alternatives[i].Text)
		}
	}

	digest := Digest{
		Primary:           &primary,
		Important:         important,
		Alternatives:      alternatives,
		SelectionCriteria: criteria,
		TotalComments:     len(scored),
		AboveThreshold:    len(important),
		ThresholdUsed:     minImportance,
	}

	if latest.Revision != primary.Revision || latest.Text != primary.Text {
		latestCopy := latest
		digest.Latest = &latestCopy
	}

	return digest
}

func thresholdCriteria(threshold, count int) string {
	return fmt.Sprintf("Found %d comments above importance threshold %d", count, threshold)
}

func noThresholdCriteria(threshold, count int) string {
	return fmt.Sprintf("No comments above threshold %d, showing top %d comments", threshold, count)
}

func previewText(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
