package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/storage/models"
	"github.com/bug-analyzer/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS duplicate_reviews (
		id TEXT PRIMARY KEY,
		duplicate_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		reviewer TEXT NOT NULL,
		notes TEXT,
		query_text TEXT,
		project TEXT,
		area_path TEXT,
		reviewed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_reviewer ON duplicate_reviews(reviewer);
	CREATE INDEX IF NOT EXISTS idx_reviews_status ON duplicate_reviews(status);
	CREATE INDEX IF NOT EXISTS idx_reviews_date ON duplicate_reviews(reviewed_at);

	CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		operation TEXT NOT NULL,
		project TEXT,
		area_path TEXT,
		bug_count INTEGER,
		result_json TEXT,
		duration_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_operation ON analysis_runs(operation);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON analysis_runs(created_at);

	CREATE TABLE IF NOT EXISTS indexed_bugs (
		bug_id INTEGER PRIMARY KEY,
		project TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		indexed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_indexed_project ON indexed_bugs(project);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Database schema initialized")
	return nil
}

// SaveReview persists a duplicate review verdict, generating its ID.
func (c *Client) SaveReview(review *models.DuplicateReview) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.ReviewedAt.IsZero() {
		review.ReviewedAt = time.Now()
	}

	_, err := c.db.Exec(`
		INSERT INTO duplicate_reviews (id, duplicate_id, status, reviewer, notes, query_text, project, area_path, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		review.ID, review.DuplicateID, review.Status, review.Reviewer,
		review.Notes, review.QueryText, review.Project, review.AreaPath,
		review.ReviewedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save review: %w", err)
	}
	return nil
}

// ListReviews returns reviews newest first, optionally filtered by reviewer
// substring and exact status.
func (c *Client) ListReviews(reviewer, status string, limit int) ([]models.DuplicateReview, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, duplicate_id, status, reviewer, notes, query_text, project, area_path, reviewed_at
		FROM duplicate_reviews WHERE 1=1`
	args := []any{}

	if reviewer != "" {
		query += " AND reviewer LIKE ?"
		args = append(args, "%"+reviewer+"%")
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY reviewed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.DuplicateReview
	for rows.Next() {
		var r models.DuplicateReview
		var reviewedAt int64
		if err := rows.Scan(&r.ID, &r.DuplicateID, &r.Status, &r.Reviewer, &r.Notes,
			&r.QueryText, &r.Project, &r.AreaPath, &reviewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		r.ReviewedAt = time.Unix(reviewedAt, 0)
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// TeamStats aggregates review counts per reviewer with a per-status split.
func (c *Client) TeamStats() ([]models.ReviewerStats, error) {
	rows, err := c.db.Query(`
		SELECT reviewer, status, COUNT(*), MAX(reviewed_at)
		FROM duplicate_reviews
		GROUP BY reviewer, status
		ORDER BY reviewer`)
	if err != nil {
		return nil, fmt.Errorf("failed to query team stats: %w", err)
	}
	defer rows.Close()

	byReviewer := make(map[string]*models.ReviewerStats)
	var order []string

	for rows.Next() {
		var reviewer, status string
		var count int
		var lastAt int64
		if err := rows.Scan(&reviewer, &status, &count, &lastAt); err != nil {
			return nil, fmt.Errorf("failed to scan team stats: %w", err)
		}

		stats, ok := byReviewer[reviewer]
		if !ok {
			stats = &models.ReviewerStats{
				Reviewer: reviewer,
				ByStatus: make(map[string]int),
			}
			byReviewer[reviewer] = stats
			order = append(order, reviewer)
		}
		stats.Total += count
		stats.ByStatus[status] += count
		if last := time.Unix(lastAt, 0); last.After(stats.LastAt) {
			stats.LastAt = last
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]models.ReviewerStats, 0, len(order))
	for _, reviewer := range order {
		result = append(result, *byReviewer[reviewer])
	}
	return result, nil
}

// SaveRun records an analysis invocation for the trends history.
func (c *Client) SaveRun(run *models.AnalysisRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	_, err := c.db.Exec(`
		INSERT INTO analysis_runs (id, operation, project, area_path, bug_count, result_json, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Operation, run.Project, run.AreaPath,
		run.BugCount, run.ResultJSON, run.DurationMS, run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis run: %w", err)
	}
	return nil
}

// ListRuns returns recent analysis runs for one operation, newest first.
func (c *Client) ListRuns(operation string, limit int) ([]models.AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.Query(`
		SELECT id, operation, project, area_path, bug_count, result_json, duration_ms, created_at
		FROM analysis_runs
		WHERE operation = ?
		ORDER BY created_at DESC
		LIMIT ?`, operation, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AnalysisRun
	for rows.Next() {
		var r models.AnalysisRun
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.Operation, &r.Project, &r.AreaPath,
			&r.BugCount, &r.ResultJSON, &r.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// UpsertIndexedBug marks a bug as present in the vector index.
func (c *Client) UpsertIndexedBug(bug models.IndexedBug) error {
	if bug.IndexedAt.IsZero() {
		bug.IndexedAt = time.Now()
	}

	_, err := c.db.Exec(`
		INSERT INTO indexed_bugs (bug_id, project, content_hash, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(bug_id) DO UPDATE SET
			project = excluded.project,
			content_hash = excluded.content_hash,
			indexed_at = excluded.indexed_at`,
		bug.BugID, bug.Project, bug.ContentHash, bug.IndexedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert indexed bug: %w", err)
	}
	return nil
}

// IndexedHashes returns the content hash for every indexed bug in a project,
// letting the indexer skip unchanged bugs.
func (c *Client) IndexedHashes(project string) (map[int]string, error) {
	rows, err := c.db.Query(`SELECT bug_id, content_hash FROM indexed_bugs WHERE project = ?`, project)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexed bugs: %w", err)
	}
	defer rows.Close()

	hashes := make(map[int]string)
	for rows.Next() {
		var bugID int
		var hash string
		if err := rows.Scan(&bugID, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan indexed bug: %w", err)
		}
		hashes[bugID] = hash
	}
	return hashes, rows.Err()
}
