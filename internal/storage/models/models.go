package models

import "time"

// DuplicateReview records a triager's verdict on one duplicate finding.
type DuplicateReview struct {
	ID          string    `json:"id"`
	DuplicateID int       `json:"duplicate_id"`
	Status      string    `json:"status"`
	Reviewer    string    `json:"reviewer"`
	Notes       string    `json:"notes"`
	QueryText   string    `json:"query_text"`
	Project     string    `json:"project"`
	AreaPath    string    `json:"area"`
	ReviewedAt  time.Time `json:"review_date"`
}

// Review statuses accepted from clients.
const (
	ReviewConfirmed   = "confirmed"
	ReviewRejected    = "rejected"
	ReviewNeedsReview = "needs_review"
	ReviewIgnored     = "ignored"
)

// AnalysisRun is one recorded invocation of an analysis operation, kept for
// history and trend views.
type AnalysisRun struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"`
	Project    string    `json:"project"`
	AreaPath   string    `json:"area_path"`
	BugCount   int       `json:"bug_count"`
	ResultJSON string    `json:"-"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// IndexedBug tracks which bugs have embeddings in the vector index and the
// content hash they were embedded from.
type IndexedBug struct {
	BugID       int       `json:"bug_id"`
	Project     string    `json:"project"`
	ContentHash string    `json:"content_hash"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// ReviewerStats aggregates review activity for one reviewer.
type ReviewerStats struct {
	Reviewer string         `json:"reviewer"`
	Total    int            `json:"total_reviews"`
	ByStatus map[string]int `json:"by_status"`
	LastAt   time.Time      `json:"last_review_date"`
}
