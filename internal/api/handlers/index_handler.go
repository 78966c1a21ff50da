package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/ado"
	"github.com/bug-analyzer/backend/internal/embedding"
	"github.com/bug-analyzer/backend/internal/ingestion"
	"github.com/bug-analyzer/backend/internal/textproc"
	"github.com/bug-analyzer/backend/internal/vector/milvus"
	"github.com/bug-analyzer/backend/pkg/logger"
)

type IndexHandler struct {
	indexer  *ingestion.Indexer
	embedder *embedding.Client
	vectors  *milvus.Client
}

func NewIndexHandler(indexer *ingestion.Indexer, embedder *embedding.Client, vectors *milvus.Client) *IndexHandler {
	return &IndexHandler{
		indexer:  indexer,
		embedder: embedder,
		vectors:  vectors,
	}
}

// IndexBugs starts an indexing run in the background; progress streams over
// the websocket endpoint.
func (h *IndexHandler) IndexBugs(c *fiber.Ctx) error {
	if h.indexer == nil || !h.indexer.Available() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Vector indexing is not configured",
		})
	}

	var req struct {
		ProjectName string `json:"project_name"`
		AreaPath    string `json:"area_path"`
		FromDate    string `json:"from_date"`
		ToDate      string `json:"to_date"`
		Limit       int    `json:"limit"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ProjectName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "project_name is required",
		})
	}

	filters := ado.Filters{
		Project:  req.ProjectName,
		AreaPath: req.AreaPath,
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
		Limit:    req.Limit,
	}

	// The request context dies with the handler; the run gets its own.
	go func() {
		if _, err := h.indexer.Index(context.Background(), filters); err != nil {
			logger.Error("Background indexing run failed", zap.Error(err))
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Indexing started; subscribe to /ws/progress for updates",
		"project": req.ProjectName,
		"success": true,
	})
}

// Similar searches the corpus-wide vector index for bugs near the query
// text. Unlike find-duplicates, this spans everything ever indexed.
func (h *IndexHandler) Similar(c *fiber.Ctx) error {
	if h.embedder == nil || h.vectors == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Vector search is not configured",
		})
	}

	var req struct {
		QueryText string `json:"query_text"`
		Project   string `json:"project_name"`
		AreaPath  string `json:"area_path"`
		TopK      int    `json:"top_k"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.QueryText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query_text is required",
		})
	}
	if req.TopK <= 0 || req.TopK > 50 {
		req.TopK = 10
	}

	cleaned := textproc.Normalize(req.QueryText)
	if cleaned == "" {
		return c.JSON(fiber.Map{
			"results": []any{},
			"success": true,
		})
	}

	vector, err := h.embedder.Embed(c.Context(), cleaned)
	if err != nil {
		logger.Error("Failed to embed search query", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to embed query",
		})
	}

	results, err := h.vectors.Search(c.Context(), vector, req.TopK, req.Project, req.AreaPath)
	if err != nil {
		logger.Error("Vector search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Vector search failed",
		})
	}

	return c.JSON(fiber.Map{
		"results": results,
		"total":   len(results),
		"success": true,
	})
}
