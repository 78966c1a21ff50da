package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxQueryLength int
	MaxLimit       int
	Logger         *zap.Logger
}

var allowedReviewStatuses = map[string]struct{}{
	"confirmed":    {},
	"rejected":     {},
	"needs_review": {},
	"ignored":      {},
}

// Middleware validates analysis request bodies before handlers see them.
// Only shape and bounds are checked here; semantic errors stay with the
// handlers.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 5000
	}
	if cfg.MaxLimit == 0 {
		cfg.MaxLimit = 50
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		path := c.Path()

		if strings.HasSuffix(path, "/find-duplicates") {
			var req struct {
				QueryText           string  `json:"query_text"`
				ProjectName         string  `json:"project_name"`
				SimilarityThreshold float64 `json:"similarity_threshold"`
				Limit               int     `json:"limit"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			if strings.TrimSpace(req.QueryText) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "query_text is required",
				})
			}
			if len(req.QueryText) > cfg.MaxQueryLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "query_text exceeds maximum length",
				})
			}
			if req.ProjectName == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "project_name is required",
				})
			}
			if req.SimilarityThreshold < 0 || req.SimilarityThreshold > 1 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "similarity_threshold must be between 0.0 and 1.0",
				})
			}
			if req.Limit < 0 || req.Limit > cfg.MaxLimit {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "limit is out of range",
				})
			}
		}

		if strings.HasSuffix(path, "/review-duplicate") {
			var req struct {
				DuplicateID int    `json:"duplicate_id"`
				Status      string `json:"status"`
				Reviewer    string `json:"reviewer"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			if req.DuplicateID <= 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "duplicate_id is required",
				})
			}
			if _, ok := allowedReviewStatuses[req.Status]; !ok {
				cfg.Logger.Warn("Rejected review with unknown status",
					zap.String("status", req.Status),
					zap.String("ip", c.IP()),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "status must be one of: confirmed, rejected, needs_review, ignored",
				})
			}
			if strings.TrimSpace(req.Reviewer) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "reviewer is required",
				})
			}
		}

		return c.Next()
	}
}
