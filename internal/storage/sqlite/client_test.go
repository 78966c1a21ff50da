package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bug-analyzer/backend/internal/storage/models"
)

func newTestDB(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.InitSchema())
	return client
}

func TestSaveReviewGeneratesID(t *testing.T) {
	db := newTestDB(t)

	review := &models.DuplicateReview{
		DuplicateID: 42,
		Status:      models.ReviewConfirmed,
		Reviewer:    "sam",
	}
	require.NoError(t, db.SaveReview(review))

	assert.NotEmpty(t, review.ID)
	assert.False(t, review.ReviewedAt.IsZero())
}

func TestListReviewsFilters(t *testing.T) {
	db := newTestDB(t)

	seed := []models.DuplicateReview{
		{DuplicateID: 1, Status: models.ReviewConfirmed, Reviewer: "sam.lee", ReviewedAt: time.Unix(1000, 0)},
		{DuplicateID: 2, Status: models.ReviewRejected, Reviewer: "sam.lee", ReviewedAt: time.Unix(2000, 0)},
		{DuplicateID: 3, Status: models.ReviewConfirmed, Reviewer: "dana", ReviewedAt: time.Unix(3000, 0)},
	}
	for i := range seed {
		require.NoError(t, db.SaveReview(&seed[i]))
	}

	all, err := db.ListReviews("", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, 3, all[0].DuplicateID)
	assert.Equal(t, 1, all[2].DuplicateID)

	bySubstring, err := db.ListReviews("sam", "", 0)
	require.NoError(t, err)
	assert.Len(t, bySubstring, 2)

	byStatus, err := db.ListReviews("", models.ReviewConfirmed, 0)
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	limited, err := db.ListReviews("", "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTeamStats(t *testing.T) {
	db := newTestDB(t)

	seed := []models.DuplicateReview{
		{DuplicateID: 1, Status: models.ReviewConfirmed, Reviewer: "dana", ReviewedAt: time.Unix(1000, 0)},
		{DuplicateID: 2, Status: models.ReviewConfirmed, Reviewer: "dana", ReviewedAt: time.Unix(4000, 0)},
		{DuplicateID: 3, Status: models.ReviewRejected, Reviewer: "dana", ReviewedAt: time.Unix(2000, 0)},
		{DuplicateID: 4, Status: models.ReviewConfirmed, Reviewer: "sam", ReviewedAt: time.Unix(3000, 0)},
	}
	for i := range seed {
		require.NoError(t, db.SaveReview(&seed[i]))
	}

	stats, err := db.TeamStats()
	require.NoError(t, err)
	require.Len(t, stats, 2)

	dana := stats[0]
	assert.Equal(t, "dana", dana.Reviewer)
	assert.Equal(t, 3, dana.Total)
	assert.Equal(t, 2, dana.ByStatus[models.ReviewConfirmed])
	assert.Equal(t, 1, dana.ByStatus[models.ReviewRejected])
	assert.Equal(t, time.Unix(4000, 0), dana.LastAt)

	assert.Equal(t, "sam", stats[1].Reviewer)
	assert.Equal(t, 1, stats[1].Total)
}

func TestAnalysisRunsRoundTrip(t *testing.T) {
	db := newTestDB(t)

	runs := []models.AnalysisRun{
		{Operation: "root_cause", Project: "P", BugCount: 10, ResultJSON: `{"a":1}`, CreatedAt: time.Unix(1000, 0)},
		{Operation: "root_cause", Project: "P", BugCount: 20, ResultJSON: `{"a":2}`, CreatedAt: time.Unix(2000, 0)},
		{Operation: "quality", Project: "P", BugCount: 5, CreatedAt: time.Unix(1500, 0)},
	}
	for i := range runs {
		require.NoError(t, db.SaveRun(&runs[i]))
	}

	rootCause, err := db.ListRuns("root_cause", 0)
	require.NoError(t, err)
	require.Len(t, rootCause, 2)
	assert.Equal(t, 20, rootCause[0].BugCount)
	assert.Equal(t, `{"a":2}`, rootCause[0].ResultJSON)

	quality, err := db.ListRuns("quality", 0)
	require.NoError(t, err)
	assert.Len(t, quality, 1)

	none, err := db.ListRuns("missing", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIndexedBugsUpsert(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.UpsertIndexedBug(models.IndexedBug{
		BugID: 1, Project: "P", ContentHash: "aaa",
	}))
	require.NoError(t, db.UpsertIndexedBug(models.IndexedBug{
		BugID: 2, Project: "P", ContentHash: "bbb",
	}))
	require.NoError(t, db.UpsertIndexedBug(models.IndexedBug{
		BugID: 3, Project: "Other", ContentHash: "ccc",
	}))

	// Replaying a bug replaces its hash instead of failing.
	require.NoError(t, db.UpsertIndexedBug(models.IndexedBug{
		BugID: 1, Project: "P", ContentHash: "aaa2",
	}))

	hashes, err := db.IndexedHashes("P")
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "aaa2", 2: "bbb"}, hashes)
}
