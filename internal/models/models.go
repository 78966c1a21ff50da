package models

import "time"

// BugRecord is an immutable snapshot of a work item fetched from the
// tracking source. Fields are validated and defaulted once at the ADO
// boundary; the analysis core never reaches into raw payload maps.
type BugRecord struct {
	ID            int
	Title         string
	Description   string
	State         string
	Priority      string
	Severity      string
	AreaPath      string
	IterationPath string
	Tags          []string
	Reason        string
	AssignedTo    string
	CreatedBy     string
	ChangedBy     string
	CommentCount  int
	CreatedAt     time.Time
	ChangedAt     time.Time
	ResolvedAt    time.Time
	URL           string
	Project       string
}

// CombinedText returns the title and description joined for similarity
// comparison, mirroring how candidates are scored against a query.
func (b BugRecord) CombinedText() string {
	return b.Title + " " + b.Description
}

type MatchLevel string

const (
	MatchQuery    MatchLevel = "query_match"
	MatchExact    MatchLevel = "exact"
	MatchHigh     MatchLevel = "high"
	MatchModerate MatchLevel = "moderate"
	MatchLow      MatchLevel = "low"
)

type MatchColor string

const (
	ColorBlue   MatchColor = "blue"
	ColorGreen  MatchColor = "green"
	ColorYellow MatchColor = "yellow"
	ColorOrange MatchColor = "orange"
)

// SimilarityResult is one ranked candidate from a duplicate search.
// Score is on the 0-100 scale regardless of which strategy produced it.
type SimilarityResult struct {
	BugID       int        `json:"bug_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Score       float64    `json:"similarity_score"`
	Level       MatchLevel `json:"match_level"`
	Color       MatchColor `json:"match_color"`
	Explanation string     `json:"explanation"`
	Highlights  []string   `json:"highlights"`
	State       string     `json:"state"`
	Priority    string     `json:"priority"`
	CreatedAt   time.Time  `json:"created_date"`
	URL         string     `json:"url"`
	Strategy    string     `json:"strategy"`
}

// CategoryAssignment places a bug in exactly one root-cause category.
type CategoryAssignment struct {
	BugID           int      `json:"bug_id"`
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// Recommendation is an actionable suggestion emitted for a category whose
// assigned-bug count crosses the pattern threshold.
type Recommendation struct {
	Category     string `json:"category"`
	Focus        string `json:"focus"`
	Action       string `json:"action"`
	Testing      string `json:"testing"`
	AffectedBugs int    `json:"affected_bugs"`
}

type CommentType string

const (
	CommentImplementation CommentType = "Implementation Details"
	CommentTechnical      CommentType = "Technical Analysis"
	CommentInvestigation  CommentType = "Investigation Notes"
	CommentStatus         CommentType = "Status Update"
	CommentGeneral        CommentType = "General Comment"
)

// Comment is a raw discussion entry pulled from the work item updates feed.
type Comment struct {
	Text      string    `json:"text"`
	Author    string    `json:"created_by"`
	CreatedAt time.Time `json:"created_date"`
	Revision  int       `json:"revision"`
}

// CommentScore is a comment annotated with its importance ranking. The
// exposed score is always >= 1; the raw sum may go negative before the floor.
type CommentScore struct {
	Comment
	ImportanceScore int         `json:"importance_score"`
	Type            CommentType `json:"comment_type"`
}

// TypeForScore maps a floored importance score onto its display bucket.
func TypeForScore(score int) CommentType {
	switch {
	case score >= 50:
		return CommentImplementation
	case score >= 30:
		return CommentTechnical
	case score >= 20:
		return CommentInvestigation
	case score >= 10:
		return CommentStatus
	default:
		return CommentGeneral
	}
}
