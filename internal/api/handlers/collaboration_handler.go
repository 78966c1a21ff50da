package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	storagemodels "github.com/bug-analyzer/backend/internal/storage/models"
	"github.com/bug-analyzer/backend/internal/storage/sqlite"
	"github.com/bug-analyzer/backend/pkg/logger"
)

type CollaborationHandler struct {
	store *sqlite.Client
}

func NewCollaborationHandler(store *sqlite.Client) *CollaborationHandler {
	return &CollaborationHandler{store: store}
}

// ReviewDuplicate records a triager's verdict on a duplicate finding.
func (h *CollaborationHandler) ReviewDuplicate(c *fiber.Ctx) error {
	var req struct {
		DuplicateID int    `json:"duplicate_id"`
		Status      string `json:"status"`
		Reviewer    string `json:"reviewer"`
		Notes       string `json:"notes"`
		QueryText   string `json:"query_text"`
		ProjectName string `json:"project_name"`
		AreaPath    string `json:"area_path"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	review := storagemodels.DuplicateReview{
		DuplicateID: req.DuplicateID,
		Status:      req.Status,
		Reviewer:    req.Reviewer,
		Notes:       req.Notes,
		QueryText:   req.QueryText,
		Project:     req.ProjectName,
		AreaPath:    req.AreaPath,
	}

	if err := h.store.SaveReview(&review); err != nil {
		logger.Error("Failed to save duplicate review", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record review",
		})
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"message":       "Duplicate review recorded with status: " + review.Status,
		"review_record": review,
	})
}

// ReviewHistory lists recorded reviews, optionally filtered by reviewer
// substring and status.
func (h *CollaborationHandler) ReviewHistory(c *fiber.Ctx) error {
	reviews, err := h.store.ListReviews(
		c.Query("reviewer"),
		c.Query("status"),
		c.QueryInt("limit", 50),
	)
	if err != nil {
		logger.Error("Failed to list reviews", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load review history",
		})
	}

	if reviews == nil {
		reviews = []storagemodels.DuplicateReview{}
	}

	return c.JSON(fiber.Map{
		"reviews": reviews,
		"total":   len(reviews),
		"success": true,
	})
}

// TeamStats aggregates review activity per reviewer.
func (h *CollaborationHandler) TeamStats(c *fiber.Ctx) error {
	stats, err := h.store.TeamStats()
	if err != nil {
		logger.Error("Failed to compute team stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load team statistics",
		})
	}

	if stats == nil {
		stats = []storagemodels.ReviewerStats{}
	}

	return c.JSON(fiber.Map{
		"team_stats": stats,
		"reviewers":  len(stats),
		"success":    true,
	})
}
