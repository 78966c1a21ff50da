package ado

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/models"
	"github.com/bug-analyzer/backend/pkg/logger"
)

type updatesResponse struct {
	Value []struct {
		Rev       int `json:"rev"`
		RevisedBy struct {
			DisplayName string `json:"displayName"`
		} `json:"revisedBy"`
		RevisedDate string `json:"revisedDate"`
		Fields      map[string]struct {
			NewValue string `json:"newValue"`
		} `json:"fields"`
	} `json:"value"`
}

// FetchComments pulls discussion comments off the work item updates feed.
// System-generated commit and changeset associations are dropped; comment
// HTML is flattened to text before scoring.
func (c *Client) FetchComments(ctx context.Context, project string, bugID int) ([]models.Comment, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("azure devops credentials not configured")
	}

	endpoint := fmt.Sprintf("/%s/_apis/wit/workItems/%d/updates?api-version=%s",
		url.PathEscape(project), bugID, apiVersion)

	var parsed updatesResponse
	if err := c.call(ctx, http.MethodGet, endpoint, nil, &parsed); err != nil {
		return nil, fmt.Errorf("failed to fetch work item updates: %w", err)
	}

	var comments []models.Comment
	for _, update := range parsed.Value {
		history, ok := update.Fields["System.History"]
		if !ok {
			continue
		}

		text := strings.TrimSpace(history.NewValue)
		if text == "" ||
			strings.HasPrefix(text, "Associated with commit") ||
			strings.HasPrefix(text, "Associated with changeset") {
			continue
		}

		author := update.RevisedBy.DisplayName
		if author == "" {
			author = "Unknown"
		}

		createdAt, err := time.Parse(time.RFC3339, update.RevisedDate)
		if err != nil {
			createdAt = time.Time{}
		}

		comments = append(comments, models.Comment{
			Text:      StripHTML(text),
			Author:    author,
			CreatedAt: createdAt,
			Revision:  update.Rev,
		})
	}

	logger.Debug("Fetched bug comments",
		zap.Int("bug_id", bugID),
		zap.Int("count", len(comments)),
	)

	return comments, nil
}

// StripHTML flattens markup to plain text. Script and style bodies are
// removed entirely; on parse failure the raw input comes back unchanged.
func StripHTML(html string) string {
	if !strings.Contains(html, "<") {
		return html
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("script, style").Remove()
	text := doc.Text()

	return strings.Join(strings.Fields(text), " ")
}
