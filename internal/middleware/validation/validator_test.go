package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{Logger: zap.NewNop()}))
	app.Post("/api/v1/duplicates/find-duplicates", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/api/v1/collaboration/review-duplicate", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/api/v1/duplicates/find-duplicates", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestFindDuplicatesValidation(t *testing.T) {
	app := newTestApp()
	path := "/api/v1/duplicates/find-duplicates"

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"valid request", `{"query_text":"login crash","project_name":"P"}`, fiber.StatusOK},
		{"valid with bounds", `{"query_text":"x","project_name":"P","similarity_threshold":0.9,"limit":10}`, fiber.StatusOK},
		{"invalid json", `{not json`, fiber.StatusBadRequest},
		{"missing query", `{"project_name":"P"}`, fiber.StatusBadRequest},
		{"blank query", `{"query_text":"   ","project_name":"P"}`, fiber.StatusBadRequest},
		{"missing project", `{"query_text":"login crash"}`, fiber.StatusBadRequest},
		{"oversized query", `{"query_text":"` + strings.Repeat("a", 5001) + `","project_name":"P"}`, fiber.StatusBadRequest},
		{"threshold above one", `{"query_text":"x","project_name":"P","similarity_threshold":1.5}`, fiber.StatusBadRequest},
		{"limit too large", `{"query_text":"x","project_name":"P","limit":51}`, fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, postJSON(t, app, path, tt.body))
		})
	}
}

func TestReviewDuplicateValidation(t *testing.T) {
	app := newTestApp()
	path := "/api/v1/collaboration/review-duplicate"

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"valid review", `{"duplicate_id":42,"status":"confirmed","reviewer":"sam"}`, fiber.StatusOK},
		{"missing duplicate id", `{"status":"confirmed","reviewer":"sam"}`, fiber.StatusBadRequest},
		{"unknown status", `{"duplicate_id":42,"status":"maybe","reviewer":"sam"}`, fiber.StatusBadRequest},
		{"missing reviewer", `{"duplicate_id":42,"status":"rejected"}`, fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, postJSON(t, app, path, tt.body))
		})
	}
}

func TestGetRequestsBypassValidation(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/duplicates/find-duplicates", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
