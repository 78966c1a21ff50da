package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/ado"
	"github.com/bug-analyzer/backend/internal/comments"
	"github.com/bug-analyzer/backend/internal/models"
	"github.com/bug-analyzer/backend/pkg/logger"
)

type CommentHandler struct {
	adoClient    *ado.Client
	minThreshold int
}

func NewCommentHandler(adoClient *ado.Client, minThreshold int) *CommentHandler {
	if minThreshold <= 0 {
		minThreshold = comments.DefaultMinImportance
	}
	return &CommentHandler{
		adoClient:    adoClient,
		minThreshold: minThreshold,
	}
}

// BugComments fetches a bug's discussion and returns the importance digest:
// primary comment, everything above the threshold and a tail of
// alternatives.
func (h *CommentHandler) BugComments(c *fiber.Ctx) error {
	project := c.Query("project_name")
	if project == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "project_name is required",
		})
	}

	bugID, err := c.ParamsInt("id")
	if err != nil || bugID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A valid bug id is required",
		})
	}

	threshold := c.QueryInt("min_importance_score", h.minThreshold)

	raw, err := h.adoClient.FetchComments(c.Context(), project, bugID)
	if err != nil {
		logger.Error("Failed to fetch bug comments",
			zap.Int("bug_id", bugID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to fetch comments",
		})
	}

	digest := comments.BuildDigest(raw, threshold)

	return c.JSON(fiber.Map{
		"bug_id":                   bugID,
		"project":                  project,
		"comment_data":             digest.Primary,
		"important_comments":       digest.Important,
		"alternative_comments":     digest.Alternatives,
		"latest_comment_data":      digest.Latest,
		"selection_criteria":       digest.SelectionCriteria,
		"total_comments":           digest.TotalComments,
		"comments_above_threshold": digest.AboveThreshold,
		"threshold_used":           digest.ThresholdUsed,
		"success":                  true,
	})
}

// ScoreComment scores a single comment body without touching the tracker,
// useful for tuning thresholds against real comment text.
func (h *CommentHandler) ScoreComment(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "text is required",
		})
	}

	score := comments.ScoreComment(req.Text)

	return c.JSON(fiber.Map{
		"importance_score": score,
		"comment_type":     models.TypeForScore(score),
		"success":          true,
	})
}
