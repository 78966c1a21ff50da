package ado

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/cache/redis"
	"github.com/bug-analyzer/backend/internal/metrics"
	"github.com/bug-analyzer/backend/internal/models"
	"github.com/bug-analyzer/backend/pkg/logger"
	"github.com/bug-analyzer/backend/pkg/retry"
	"github.com/bug-analyzer/backend/pkg/utils"
)

const (
	apiVersion     = "7.1"
	batchSize      = 50
	smallBatchSize = 10
	defaultLimit   = 100
)

// Client is the Azure DevOps work item adapter. It translates typed filters
// into WIQL, hydrates work items in batches and hands back validated
// BugRecord values; raw field maps never leave this package.
type Client struct {
	httpClient  *http.Client
	orgURL      string
	authHeader  string
	cache       *redis.Client
	retryConfig retry.Config
}

// Filters select which bugs a query fetches. Zero-valued fields are omitted
// from the generated WIQL.
type Filters struct {
	Project  string
	AreaPath string
	FromDate string
	ToDate   string
	State    string
	Limit    int
}

func (f Filters) cacheKey() string {
	return utils.HashParts(f.Project, f.AreaPath, f.FromDate, f.ToDate, f.State, strconv.Itoa(f.Limit))
}

func NewClient(orgURL, pat string, timeout time.Duration, cache *redis.Client) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	auth := base64.StdEncoding.EncodeToString([]byte(":" + pat))

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		orgURL:     strings.TrimSuffix(orgURL, "/"),
		authHeader: "Basic " + auth,
		cache:      cache,
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   time.Second,
			MaxDelay:       5 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			Logger:         logger.GetLogger(),
		},
	}
}

// Configured reports whether organization credentials are present. The
// handlers turn an unconfigured adapter into a 503, not a panic.
func (c *Client) Configured() bool {
	return c != nil && c.orgURL != "" && c.authHeader != "Basic "+base64.StdEncoding.EncodeToString([]byte(":"))
}

type wiqlResponse struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

type workItemPayload struct {
	ID     int                        `json:"id"`
	Fields map[string]json.RawMessage `json:"fields"`
	URL    string                     `json:"url"`
}

type workItemBatch struct {
	Value []workItemPayload `json:"value"`
}

// FetchBugs runs a WIQL query for the filters and hydrates the matching work
// items. Results are cached per filter set when a cache is attached.
func (c *Client) FetchBugs(ctx context.Context, filters Filters) ([]models.BugRecord, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("azure devops credentials not configured")
	}
	if filters.Limit <= 0 {
		filters.Limit = defaultLimit
	}

	if c.cache != nil {
		if cached, ok, err := c.cache.GetBugList(ctx, filters.cacheKey()); err == nil && ok {
			metrics.CacheHits.WithLabelValues("bug_list").Inc()
			return cached, nil
		}
		metrics.CacheMisses.WithLabelValues("bug_list").Inc()
	}

	ids, err := c.queryIDs(ctx, filters)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.BugRecord{}, nil
	}
	if len(ids) > filters.Limit {
		ids = ids[:filters.Limit]
	}

	bugs, err := c.hydrate(ctx, filters.Project, ids)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetBugList(ctx, filters.cacheKey(), bugs); err != nil {
			logger.Warn("Failed to cache bug list", zap.Error(err))
		}
	}

	logger.Info("Fetched bugs from Azure DevOps",
		zap.String("project", filters.Project),
		zap.Int("count", len(bugs)),
	)

	return bugs, nil
}

func (c *Client) queryIDs(ctx context.Context, filters Filters) ([]int, error) {
	conditions := []string{"[System.WorkItemType] = 'Bug'"}
	if filters.AreaPath != "" {
		conditions = append(conditions, fmt.Sprintf("[System.AreaPath] = '%s'", escapeWIQL(filters.AreaPath)))
	}
	if filters.FromDate != "" {
		conditions = append(conditions, fmt.Sprintf("[System.ChangedDate] >= '%s'", escapeWIQL(filters.FromDate)))
	}
	if filters.ToDate != "" {
		conditions = append(conditions, fmt.Sprintf("[System.ChangedDate] <= '%s'", escapeWIQL(filters.ToDate)))
	}
	if filters.State != "" {
		conditions = append(conditions, fmt.Sprintf("[System.State] = '%s'", escapeWIQL(filters.State)))
	}

	query := fmt.Sprintf(
		"SELECT [System.Id] FROM WorkItems WHERE %s ORDER BY [System.ChangedDate] DESC",
		strings.Join(conditions, " AND "),
	)

	endpoint := fmt.Sprintf("/%s/_apis/wit/wiql?api-version=%s", url.PathEscape(filters.Project), apiVersion)

	var parsed wiqlResponse
	if err := c.call(ctx, http.MethodPost, endpoint, map[string]string{"query": query}, &parsed); err != nil {
		return nil, fmt.Errorf("wiql query failed: %w", err)
	}

	ids := make([]int, len(parsed.WorkItems))
	for i, wi := range parsed.WorkItems {
		ids[i] = wi.ID
	}
	return ids, nil
}

// hydrate fetches work item details in batches of 50. Small batches and
// batches that fail wholesale fall back to individual requests so one bad
// item cannot sink the rest.
func (c *Client) hydrate(ctx context.Context, project string, ids []int) ([]models.BugRecord, error) {
	var items []workItemPayload

	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		if len(batch) <= smallBatchSize {
			items = append(items, c.fetchIndividually(ctx, batch)...)
			continue
		}

		idStrs := make([]string, len(batch))
		for i, id := range batch {
			idStrs[i] = strconv.Itoa(id)
		}
		endpoint := fmt.Sprintf("/_apis/wit/workitems?ids=%s&$expand=Fields&api-version=%s",
			strings.Join(idStrs, ","), apiVersion)

		var parsed workItemBatch
		if err := c.call(ctx, http.MethodGet, endpoint, nil, &parsed); err != nil {
			logger.Warn("Batch work item fetch failed, retrying individually",
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			items = append(items, c.fetchIndividually(ctx, batch)...)
			continue
		}
		items = append(items, parsed.Value...)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("failed to fetch any work item details")
	}

	bugs := make([]models.BugRecord, 0, len(items))
	for _, item := range items {
		bugs = append(bugs, parseBug(item, project))
	}
	return bugs, nil
}

func (c *Client) fetchIndividually(ctx context.Context, ids []int) []workItemPayload {
	var items []workItemPayload
	for _, id := range ids {
		endpoint := fmt.Sprintf("/_apis/wit/workitems/%d?$expand=Fields&api-version=%s", id, apiVersion)

		var item workItemPayload
		if err := c.call(ctx, http.MethodGet, endpoint, nil, &item); err != nil {
			logger.Warn("Failed to fetch work item", zap.Int("id", id), zap.Error(err))
			continue
		}
		if len(item.Fields) == 0 {
			logger.Warn("Work item response had no fields", zap.Int("id", id))
			continue
		}
		items = append(items, item)
	}
	return items
}

func (c *Client) call(ctx context.Context, method, endpoint string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	return retry.Do(ctx, c.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.orgURL+endpoint, strings.NewReader(string(payload)))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Authorization", c.authHeader)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.WorkItemRequests.WithLabelValues(endpointLabel(endpoint), "error").Inc()
			return fmt.Errorf("azure devops request failed: %w", err)
		}
		defer resp.Body.Close()

		metrics.WorkItemRequests.WithLabelValues(endpointLabel(endpoint), strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			return fmt.Errorf("azure devops API error: %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}

func endpointLabel(endpoint string) string {
	switch {
	case strings.Contains(endpoint, "/wiql"):
		return "wiql"
	case strings.Contains(endpoint, "/updates"):
		return "updates"
	default:
		return "workitems"
	}
}

// escapeWIQL doubles single quotes so filter values cannot break out of the
// quoted WIQL literal.
func escapeWIQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func parseBug(item workItemPayload, project string) models.BugRecord {
	fields := item.Fields

	bug := models.BugRecord{
		ID:            item.ID,
		Title:         stringField(fields, "System.Title", "No Title"),
		Description:   StripHTML(stringField(fields, "System.Description", "")),
		State:         stringField(fields, "System.State", "Unknown"),
		Priority:      scalarField(fields, "Microsoft.VSTS.Common.Priority", "Unknown"),
		Severity:      stringField(fields, "Microsoft.VSTS.Common.Severity", "Unknown"),
		AreaPath:      stringField(fields, "System.AreaPath", ""),
		IterationPath: stringField(fields, "System.IterationPath", ""),
		Tags:          splitTags(stringField(fields, "System.Tags", "")),
		Reason:        stringField(fields, "System.Reason", ""),
		AssignedTo:    identityField(fields, "System.AssignedTo", "Unassigned"),
		CreatedBy:     identityField(fields, "System.CreatedBy", "Unknown"),
		ChangedBy:     identityField(fields, "System.ChangedBy", "Unknown"),
		CommentCount:  intField(fields, "System.CommentCount"),
		CreatedAt:     timeField(fields, "System.CreatedDate"),
		ChangedAt:     timeField(fields, "System.ChangedDate"),
		ResolvedAt:    timeField(fields, "Microsoft.VSTS.Common.ResolvedDate"),
		URL:           item.URL,
		Project:       project,
	}

	return bug
}

func stringField(fields map[string]json.RawMessage, key, fallback string) string {
	raw, ok := fields[key]
	if !ok {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fallback
	}
	return s
}

// scalarField reads fields like priority that ADO returns as either a number
// or a string depending on process template.
func scalarField(fields map[string]json.RawMessage, key, fallback string) string {
	raw, ok := fields[key]
	if !ok {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.Itoa(int(n))
	}
	return fallback
}

func identityField(fields map[string]json.RawMessage, key, fallback string) string {
	raw, ok := fields[key]
	if !ok {
		return fallback
	}
	var identity struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(raw, &identity); err != nil || identity.DisplayName == "" {
		return fallback
	}
	return identity.DisplayName
}

func intField(fields map[string]json.RawMessage, key string) int {
	raw, ok := fields[key]
	if !ok {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	return n
}

func timeField(fields map[string]json.RawMessage, key string) time.Time {
	raw, ok := fields[key]
	if !ok {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}
