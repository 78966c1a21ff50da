package ado

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "secret-pat", 5*time.Second, nil), server
}

func workItemJSON(id int, title string) map[string]any {
	itemURL := fmt.Sprintf("https://dev.azure.com/org/_apis/wit/workItems/%d", id)
	return map[string]any{
		"id": id,
		"fields": map[string]any{
			"System.Title": title,
			"System.State": "Active",
		},
		"url":    itemURL,
		"_links": map[string]any{"self": map[string]string{"href": itemURL}},
	}
}

func TestFetchBugsRoundTrip(t *testing.T) {
	var wiqlQuery string

	mux := http.NewServeMux()
	mux.HandleFunc("/TestProject/_apis/wit/wiql", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, apiVersion, r.URL.Query().Get("api-version"))

		expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte(":secret-pat"))
		require.Equal(t, expectedAuth, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		wiqlQuery = body["query"]

		items := make([]map[string]int, 12)
		for i := range items {
			items[i] = map[string]int{"id": 101 + i}
		}
		json.NewEncoder(w).Encode(map[string]any{"workItems": items})
	})
	mux.HandleFunc("/_apis/wit/workitems", func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		value := make([]map[string]any, len(ids))
		for i, id := range ids {
			value[i] = workItemJSON(101+i, "bug "+id)
		}
		json.NewEncoder(w).Encode(map[string]any{"value": value})
	})

	client, _ := newTestClient(t, mux)

	bugs, err := client.FetchBugs(context.Background(), Filters{
		Project:  "TestProject",
		AreaPath: `TestProject\Web`,
		FromDate: "2025-05-01",
		ToDate:   "2025-06-01",
		State:    "Active",
	})
	require.NoError(t, err)
	require.Len(t, bugs, 12)
	assert.Equal(t, 101, bugs[0].ID)
	assert.Equal(t, "TestProject", bugs[0].Project)
	assert.Equal(t, "https://dev.azure.com/org/_apis/wit/workItems/101", bugs[0].URL)

	assert.Contains(t, wiqlQuery, "[System.WorkItemType] = 'Bug'")
	assert.Contains(t, wiqlQuery, `[System.AreaPath] = 'TestProject\Web'`)
	assert.Contains(t, wiqlQuery, "[System.ChangedDate] >= '2025-05-01'")
	assert.Contains(t, wiqlQuery, "[System.ChangedDate] <= '2025-06-01'")
	assert.Contains(t, wiqlQuery, "[System.State] = 'Active'")
	assert.Contains(t, wiqlQuery, "ORDER BY [System.ChangedDate] DESC")
}

func TestFetchBugsHonorsLimit(t *testing.T) {
	individualCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/P/_apis/wit/wiql", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"workItems": []map[string]int{
			{"id": 1}, {"id": 2}, {"id": 3}, {"id": 4}, {"id": 5},
		}})
	})
	mux.HandleFunc("/_apis/wit/workitems/", func(w http.ResponseWriter, r *http.Request) {
		individualCalls++
		var id int
		fmt.Sscanf(r.URL.Path, "/_apis/wit/workitems/%d", &id)
		json.NewEncoder(w).Encode(workItemJSON(id, "bug"))
	})

	client, _ := newTestClient(t, mux)

	bugs, err := client.FetchBugs(context.Background(), Filters{Project: "P", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, bugs, 3)
	assert.Equal(t, 3, individualCalls)
}

func TestFetchBugsEmptyResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/P/_apis/wit/wiql", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"workItems": []any{}})
	})

	client, _ := newTestClient(t, mux)

	bugs, err := client.FetchBugs(context.Background(), Filters{Project: "P"})
	require.NoError(t, err)
	assert.Empty(t, bugs)
}

func TestFetchBugsBatchFallsBackToIndividual(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/P/_apis/wit/wiql", func(w http.ResponseWriter, r *http.Request) {
		items := make([]map[string]int, 12)
		for i := range items {
			items[i] = map[string]int{"id": i + 1}
		}
		json.NewEncoder(w).Encode(map[string]any{"workItems": items})
	})
	mux.HandleFunc("/_apis/wit/workitems", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/_apis/wit/workitems/", func(w http.ResponseWriter, r *http.Request) {
		var id int
		fmt.Sscanf(r.URL.Path, "/_apis/wit/workitems/%d", &id)
		json.NewEncoder(w).Encode(workItemJSON(id, "bug"))
	})

	client, _ := newTestClient(t, mux)
	client.retryConfig.MaxAttempts = 1

	bugs, err := client.FetchBugs(context.Background(), Filters{Project: "P"})
	require.NoError(t, err)
	assert.Len(t, bugs, 12)
}

func TestClientConfigured(t *testing.T) {
	assert.True(t, NewClient("https://dev.azure.com/org", "pat", 0, nil).Configured())
	assert.False(t, NewClient("https://dev.azure.com/org", "", 0, nil).Configured())
	assert.False(t, NewClient("", "pat", 0, nil).Configured())

	var nilClient *Client
	assert.False(t, nilClient.Configured())
}

func TestParseBugFields(t *testing.T) {
	fields := map[string]json.RawMessage{
		"System.Title":                       json.RawMessage(`"Login crash"`),
		"System.Description":                 json.RawMessage(`"<div>stack <b>trace</b></div>"`),
		"Microsoft.VSTS.Common.Priority":     json.RawMessage(`1`),
		"Microsoft.VSTS.Common.Severity":     json.RawMessage(`"2 - High"`),
		"System.Tags":                        json.RawMessage(`"regression; login ; "`),
		"System.AssignedTo":                  json.RawMessage(`{"displayName":"Dana Reyes"}`),
		"System.CommentCount":                json.RawMessage(`4`),
		"System.CreatedDate":                 json.RawMessage(`"2025-05-01T10:00:00Z"`),
		"Microsoft.VSTS.Common.ResolvedDate": json.RawMessage(`"not a date"`),
	}

	bug := parseBug(workItemPayload{ID: 42, Fields: fields}, "Proj")

	assert.Equal(t, 42, bug.ID)
	assert.Equal(t, "Login crash", bug.Title)
	assert.Equal(t, "stack trace", bug.Description)
	assert.Equal(t, "1", bug.Priority)
	assert.Equal(t, "2 - High", bug.Severity)
	assert.Equal(t, []string{"regression", "login"}, bug.Tags)
	assert.Equal(t, "Dana Reyes", bug.AssignedTo)
	assert.Equal(t, 4, bug.CommentCount)
	assert.Equal(t, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC), bug.CreatedAt)
	assert.True(t, bug.ResolvedAt.IsZero())

	// Fallbacks for absent fields.
	assert.Equal(t, "Unknown", bug.State)
	assert.Equal(t, "Unknown", bug.CreatedBy)
	assert.Equal(t, "Proj", bug.Project)
}

func TestWorkItemPayloadDecodesLinksObject(t *testing.T) {
	raw := `{
		"id": 7,
		"fields": {"System.Title": "Login crash"},
		"url": "https://dev.azure.com/org/_apis/wit/workItems/7",
		"_links": {"self": {"href": "https://dev.azure.com/org/_apis/wit/workItems/7"}}
	}`

	var item workItemPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &item))
	assert.Equal(t, "https://dev.azure.com/org/_apis/wit/workItems/7", item.URL)

	bug := parseBug(item, "P")
	assert.Equal(t, "https://dev.azure.com/org/_apis/wit/workItems/7", bug.URL)
}

func TestScalarFieldAcceptsStringOrNumber(t *testing.T) {
	asNumber := map[string]json.RawMessage{"p": json.RawMessage(`2`)}
	asString := map[string]json.RawMessage{"p": json.RawMessage(`"P2"`)}

	assert.Equal(t, "2", scalarField(asNumber, "p", "Unknown"))
	assert.Equal(t, "P2", scalarField(asString, "p", "Unknown"))
	assert.Equal(t, "Unknown", scalarField(nil, "p", "Unknown"))
}

func TestEscapeWIQL(t *testing.T) {
	assert.Equal(t, "O''Brien", escapeWIQL("O'Brien"))
	assert.Equal(t, "plain", escapeWIQL("plain"))
}

func TestSplitTags(t *testing.T) {
	assert.Nil(t, splitTags(""))
	assert.Equal(t, []string{"a", "b"}, splitTags("a; b"))
	assert.Equal(t, []string{"solo"}, splitTags(" solo ; "))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain text", StripHTML("plain text"))
	assert.Equal(t, "bold move", StripHTML("<p><b>bold</b>  move</p>"))
	assert.Equal(t, "visible", StripHTML("<div>visible<script>alert(1)</script><style>p{}</style></div>"))
}

func TestFetchComments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/P/_apis/wit/workItems/7/updates", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{
					"rev":         1,
					"revisedBy":   map[string]string{"displayName": "Sam Lee"},
					"revisedDate": "2025-05-02T09:00:00Z",
					"fields": map[string]any{
						"System.History": map[string]string{"newValue": "<div>Root cause found</div>"},
					},
				},
				{
					"rev":    2,
					"fields": map[string]any{"System.History": map[string]string{"newValue": "Associated with commit abc123"}},
				},
				{
					"rev":    3,
					"fields": map[string]any{"System.State": map[string]string{"newValue": "Resolved"}},
				},
				{
					"rev":         4,
					"revisedDate": "bad date",
					"fields": map[string]any{
						"System.History": map[string]string{"newValue": "Fixed in build 42"},
					},
				},
			},
		})
	})

	client, _ := newTestClient(t, mux)

	comments, err := client.FetchComments(context.Background(), "P", 7)
	require.NoError(t, err)
	require.Len(t, comments, 2)

	assert.Equal(t, "Root cause found", comments[0].Text)
	assert.Equal(t, "Sam Lee", comments[0].Author)
	assert.Equal(t, 1, comments[0].Revision)

	assert.Equal(t, "Fixed in build 42", comments[1].Text)
	assert.Equal(t, "Unknown", comments[1].Author)
	assert.True(t, comments[1].CreatedAt.IsZero())
}
