package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/ado"
	"github.com/bug-analyzer/backend/internal/duplicate"
	"github.com/bug-analyzer/backend/pkg/logger"
)

type DuplicateHandler struct {
	adoClient *ado.Client
	detector  *duplicate.Detector
	threshold float64
	limit     int
}

func NewDuplicateHandler(adoClient *ado.Client, detector *duplicate.Detector, threshold float64, limit int) *DuplicateHandler {
	if threshold <= 0 {
		threshold = duplicate.DefaultThreshold
	}
	if limit <= 0 {
		limit = duplicate.DefaultLimit
	}
	return &DuplicateHandler{
		adoClient: adoClient,
		detector:  detector,
		threshold: threshold,
		limit:     limit,
	}
}

type findDuplicatesRequest struct {
	QueryText           string  `json:"query_text"`
	ProjectName         string  `json:"project_name"`
	AreaPath            string  `json:"area_path"`
	FromDate            string  `json:"from_date"`
	ToDate              string  `json:"to_date"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	Limit               int     `json:"limit"`
}

// FindDuplicates runs a duplicate search: candidates are fetched per the
// filters, direct query matches come first, then similarity-ranked results
// de-duplicated against them.
func (h *DuplicateHandler) FindDuplicates(c *fiber.Ctx) error {
	var req findDuplicatesRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	return h.findDuplicates(c, req)
}

// FindDuplicatesGet is the query-parameter variant for quick manual checks.
func (h *DuplicateHandler) FindDuplicatesGet(c *fiber.Ctx) error {
	req := findDuplicatesRequest{
		QueryText:           c.Query("query"),
		ProjectName:         c.Query("project_name"),
		AreaPath:            c.Query("area_path"),
		FromDate:            c.Query("from_date"),
		ToDate:              c.Query("to_date"),
		SimilarityThreshold: c.QueryFloat("threshold", h.threshold),
		Limit:               c.QueryInt("limit", h.limit),
	}

	if req.QueryText == "" || req.ProjectName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query and project_name are required",
		})
	}

	return h.findDuplicates(c, req)
}

func (h *DuplicateHandler) findDuplicates(c *fiber.Ctx, req findDuplicatesRequest) error {
	if !h.adoClient.Configured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Azure DevOps credentials not configured",
		})
	}

	threshold := req.SimilarityThreshold
	if threshold <= 0 {
		threshold = h.threshold
	}
	limit := req.Limit
	if limit <= 0 {
		limit = h.limit
	}

	filters := ado.Filters{
		Project:  req.ProjectName,
		AreaPath: req.AreaPath,
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
		Limit:    100,
	}

	candidates, err := h.adoClient.FetchBugs(c.Context(), filters)
	if err != nil {
		logger.Error("Failed to fetch candidate bugs", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to fetch bugs for comparison",
		})
	}

	if len(candidates) == 0 {
		return c.JSON(fiber.Map{
			"duplicates":           []any{},
			"query_text":           req.QueryText,
			"total_compared":       0,
			"similarity_threshold": threshold,
			"message":              "No existing bugs found in the specified filters",
			"success":              true,
		})
	}

	ranked, err := h.detector.FindDuplicates(c.Context(), req.QueryText, candidates, threshold, limit)
	if err != nil {
		logger.Error("Duplicate detection failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Duplicate detection failed",
		})
	}

	direct := h.detector.DirectMatches(req.QueryText, candidates)
	combined := duplicate.Merge(direct, ranked, limit)

	return c.JSON(fiber.Map{
		"duplicates":             combined,
		"query_text":             req.QueryText,
		"total_compared":         len(candidates),
		"query_matches_found":    len(direct),
		"ranked_matches_found":   len(ranked),
		"total_duplicates_found": len(combined),
		"similarity_threshold":   threshold,
		"filters_applied": fiber.Map{
			"project_name": req.ProjectName,
			"area_path":    req.AreaPath,
			"from_date":    req.FromDate,
			"to_date":      req.ToDate,
			"limit":        limit,
		},
		"success": true,
	})
}
