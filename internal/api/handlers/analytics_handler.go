package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/ado"
	"github.com/bug-analyzer/backend/internal/analytics"
	"github.com/bug-analyzer/backend/internal/models"
	"github.com/bug-analyzer/backend/internal/rootcause"
	storagemodels "github.com/bug-analyzer/backend/internal/storage/models"
	"github.com/bug-analyzer/backend/internal/storage/sqlite"
	"github.com/bug-analyzer/backend/pkg/logger"
)

type AnalyticsHandler struct {
	adoClient  *ado.Client
	classifier *rootcause.Classifier
	store      *sqlite.Client
}

func NewAnalyticsHandler(adoClient *ado.Client, classifier *rootcause.Classifier, store *sqlite.Client) *AnalyticsHandler {
	return &AnalyticsHandler{
		adoClient:  adoClient,
		classifier: classifier,
		store:      store,
	}
}

// RootCauses fetches bugs for the window and classifies each into one
// category. Depth "detailed" adds severity, temporal and priority breakdowns.
func (h *AnalyticsHandler) RootCauses(c *fiber.Ctx) error {
	project := c.Query("project_name")
	if project == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "project_name is required",
		})
	}

	daysBack := c.QueryInt("days_back", 90)
	depth := c.Query("analysis_depth", "standard")

	bugs, err := h.fetchWindow(c, project, c.Query("area_path"), daysBack)
	if err != nil {
		logger.Error("Failed to fetch bugs for root cause analysis", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to fetch bugs for analysis",
		})
	}

	started := time.Now()
	analysis := h.classifier.Classify(bugs)

	response := fiber.Map{
		"root_cause_analysis": analysis,
		"project":             project,
		"analysis_depth":      depth,
		"success":             true,
	}

	if depth == "detailed" || depth == "comprehensive" {
		response["severity_breakdown"] = analytics.SeverityPatterns(bugs)
		response["temporal_patterns"] = analytics.Temporal(bugs)
		response["priority_distribution"] = analytics.PriorityPatterns(bugs)
	}
	if depth == "comprehensive" {
		response["resolution_analysis"] = analytics.Resolution(bugs)
	}

	h.recordRun("root_causes", project, c.Query("area_path"), len(bugs), analysis, started)

	return c.JSON(response)
}

// QualityMetrics reports the KPI set for a project window. The response is
// always well-formed; fetch failures degrade to zeroed metrics with an
// explanatory recommendation.
func (h *AnalyticsHandler) QualityMetrics(c *fiber.Ctx) error {
	project := c.Query("project_name")
	if project == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "project_name is required",
		})
	}

	daysBack := c.QueryInt("days_back", 90)
	areaPath := c.Query("area_path")

	bugs, err := h.fetchWindow(c, project, areaPath, daysBack)
	if err != nil {
		logger.Error("Failed to fetch bugs for quality metrics", zap.Error(err))
		report := analytics.ComputeQuality(nil, daysBack)
		report.Trends.Recommendations = []string{"Failed to fetch bugs: " + err.Error()}
		return c.JSON(fiber.Map{
			"quality_metrics": report.Metrics,
			"quality_trends":  report.Trends,
			"total_bugs":      0,
			"period":          report.Period,
			"project":         project,
			"area_path":       areaPath,
			"success":         false,
		})
	}

	started := time.Now()
	report := analytics.ComputeQuality(bugs, daysBack)

	h.recordRun("quality_metrics", project, areaPath, len(bugs), report, started)

	return c.JSON(fiber.Map{
		"quality_metrics": report.Metrics,
		"quality_trends":  report.Trends,
		"total_bugs":      report.TotalBugs,
		"period":          report.Period,
		"project":         project,
		"area_path":       areaPath,
		"success":         true,
	})
}

// Trends returns the stored history of analysis runs for an operation.
func (h *AnalyticsHandler) Trends(c *fiber.Ctx) error {
	if h.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Analysis history storage not configured",
		})
	}

	operation := c.Query("operation", "quality_metrics")
	limit := c.QueryInt("limit", 20)

	runs, err := h.store.ListRuns(operation, limit)
	if err != nil {
		logger.Error("Failed to list analysis runs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load analysis history",
		})
	}

	return c.JSON(fiber.Map{
		"operation": operation,
		"runs":      runs,
		"total":     len(runs),
		"success":   true,
	})
}

func (h *AnalyticsHandler) fetchWindow(c *fiber.Ctx, project, areaPath string, daysBack int) ([]models.BugRecord, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -daysBack)

	return h.adoClient.FetchBugs(c.Context(), ado.Filters{
		Project:  project,
		AreaPath: areaPath,
		FromDate: start.Format("2006-01-02"),
		ToDate:   end.Format("2006-01-02"),
		Limit:    500,
	})
}

func (h *AnalyticsHandler) recordRun(operation, project, areaPath string, bugCount int, result any, started time.Time) {
	if h.store == nil {
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		resultJSON = []byte("{}")
	}

	run := storagemodels.AnalysisRun{
		Operation:  operation,
		Project:    project,
		AreaPath:   areaPath,
		BugCount:   bugCount,
		ResultJSON: string(resultJSON),
		DurationMS: time.Since(started).Milliseconds(),
	}
	if err := h.store.SaveRun(&run); err != nil {
		logger.Warn("Failed to record analysis run", zap.Error(err))
	}
}
