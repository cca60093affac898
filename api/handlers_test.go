package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/internal/engine"
	"github.com/gcbaptista/docsearch/internal/logging"
	"github.com/gcbaptista/docsearch/internal/metrics"
	testutil "github.com/gcbaptista/docsearch/internal/testing"
	"github.com/gcbaptista/docsearch/model"
	"github.com/gcbaptista/docsearch/services"
)

func setupTestRouter(t *testing.T, opts ...Option) (*gin.Engine, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	eng := testutil.CreateTestEngine(t)
	router := gin.New()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	SetupRoutes(router, eng, opts...)
	return router, eng
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	if err := json.Unmarshal(w.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("Failed to decode error response %q: %v", w.Body.String(), err)
	}
	return apiErr
}

func decodeSearchResult(t *testing.T, w *httptest.ResponseRecorder) services.SearchResult {
	t.Helper()
	var result services.SearchResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode search response %q: %v", w.Body.String(), err)
	}
	return result
}

func TestCreateIndexHandler(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name           string
		requestBody    interface{}
		expectedStatus int
		expectedCode   ErrorCode
	}{
		{
			name:           "valid index creation",
			requestBody:    config.IndexSettings{Name: "docs", CategoryBoosts: map[string]float64{"type": 2}},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "duplicate index",
			requestBody:    config.IndexSettings{Name: "docs"},
			expectedStatus: http.StatusConflict,
			expectedCode:   ErrorCodeIndexExists,
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid json",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   ErrorCodeValidationFailed,
		},
		{
			name:           "missing index name",
			requestBody:    config.IndexSettings{TitleWeight: 5},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   ErrorCodeValidationFailed,
		},
		{
			name:           "invalid settings",
			requestBody:    config.IndexSettings{Name: "bad", PrefixPenalty: 4},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   ErrorCodeValidationFailed,
		},
		{
			name:           "invalid index name",
			requestBody:    config.IndexSettings{Name: "../escape"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   ErrorCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, "POST", "/indexes", tt.requestBody)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d. Response: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedCode != "" {
				if got := decodeAPIError(t, w).Code; got != tt.expectedCode {
					t.Errorf("Expected error code %s, got %s", tt.expectedCode, got)
				}
			}
		})
	}
}

func TestIndexLifecycleHandlers(t *testing.T) {
	router, eng := setupTestRouter(t)
	testutil.BuildTestIndex(t, eng, "docs", testutil.ExampleTable())
	testutil.CreateTestIndex(t, eng, "empty")

	w := doRequest(router, "GET", "/indexes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 listing indexes, got %d", w.Code)
	}
	var list struct {
		Indexes []string `json:"indexes"`
		Count   int      `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 2 || list.Indexes[0] != "docs" || list.Indexes[1] != "empty" {
		t.Errorf("Unexpected index list: %+v", list)
	}

	w = doRequest(router, "GET", "/indexes/docs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 getting index, got %d", w.Code)
	}
	var details struct {
		Settings config.IndexSettings `json:"settings"`
		Stats    model.IndexStats     `json:"stats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &details); err != nil {
		t.Fatal(err)
	}
	if details.Settings.Name != "docs" || !details.Stats.Built || details.Stats.RecordCount != 5 {
		t.Errorf("Unexpected index details: %+v", details)
	}

	w = doRequest(router, "GET", "/indexes/empty/stats", nil)
	var stats model.IndexStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Built || stats.RecordCount != 0 {
		t.Errorf("Expected an unbuilt index, got %+v", stats)
	}

	w = doRequest(router, "GET", "/indexes/missing", nil)
	if w.Code != http.StatusNotFound || decodeAPIError(t, w).Code != ErrorCodeIndexNotFound {
		t.Errorf("Expected INDEX_NOT_FOUND, got %d %s", w.Code, w.Body.String())
	}

	w = doRequest(router, "DELETE", "/indexes/empty", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 deleting index, got %d", w.Code)
	}
	w = doRequest(router, "DELETE", "/indexes/empty", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 deleting a deleted index, got %d", w.Code)
	}
}

func TestSearchHandler(t *testing.T) {
	router, eng := setupTestRouter(t)
	testutil.BuildTestIndex(t, eng, "docs", testutil.ExampleTable())
	testutil.CreateTestIndex(t, eng, "unbuilt")

	limit := func(n int) *int { return &n }

	tests := []struct {
		name           string
		index          string
		requestBody    interface{}
		expectedStatus int
		expectedFirst  string
		expectedHits   int // -1 skips the check
	}{
		{
			name:           "exact title match",
			index:          "docs",
			requestBody:    SearchRequest{Query: "svd", Limit: limit(10)},
			expectedStatus: http.StatusOK,
			expectedFirst:  "a#1",
			expectedHits:   -1,
		},
		{
			name:           "camel-case title found through text",
			index:          "docs",
			requestBody:    SearchRequest{Query: "array"},
			expectedStatus: http.StatusOK,
			expectedFirst:  "b#1",
			expectedHits:   -1,
		},
		{
			name:           "empty query",
			index:          "docs",
			requestBody:    SearchRequest{Query: "   "},
			expectedStatus: http.StatusOK,
			expectedHits:   0,
		},
		{
			name:           "zero limit",
			index:          "docs",
			requestBody:    SearchRequest{Query: "svd", Limit: limit(0)},
			expectedStatus: http.StatusOK,
			expectedHits:   0,
		},
		{
			name:           "limit respected",
			index:          "docs",
			requestBody:    SearchRequest{Query: "decomposition tensor", Limit: limit(1)},
			expectedStatus: http.StatusOK,
			expectedHits:   1,
		},
		{
			name:           "category filter",
			index:          "docs",
			requestBody:    SearchRequest{Query: "contraction", Categories: []string{"function"}},
			expectedStatus: http.StatusOK,
			expectedFirst:  "c#2",
			expectedHits:   1,
		},
		{
			name:           "limit too large",
			index:          "docs",
			requestBody:    SearchRequest{Query: "svd", Limit: limit(maxSearchLimit + 1)},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			index:          "docs",
			requestBody:    "{",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "index not built",
			index:          "unbuilt",
			requestBody:    SearchRequest{Query: "svd"},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "index not found",
			index:          "missing",
			requestBody:    SearchRequest{Query: "svd"},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, "POST", "/indexes/"+tt.index+"/_search", tt.requestBody)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d. Response: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if w.Code != http.StatusOK {
				return
			}

			result := decodeSearchResult(t, w)
			if result.Hits == nil {
				t.Error("Expected hits to render as an array, got null")
			}
			if tt.expectedHits >= 0 && len(result.Hits) != tt.expectedHits {
				t.Errorf("Expected %d hits, got %d: %v", tt.expectedHits, len(result.Hits), testutil.Locations(result))
			}
			if tt.expectedFirst != "" {
				if len(result.Hits) == 0 || result.Hits[0].Location != tt.expectedFirst {
					t.Errorf("Expected first hit %s, got %v", tt.expectedFirst, testutil.Locations(result))
				}
			}
		})
	}

	t.Run("index not built error code", func(t *testing.T) {
		w := doRequest(router, "POST", "/indexes/unbuilt/_search", SearchRequest{Query: "svd"})
		if code := decodeAPIError(t, w).Code; code != ErrorCodeIndexNotBuilt {
			t.Errorf("Expected %s, got %s", ErrorCodeIndexNotBuilt, code)
		}
	})

	t.Run("snippet marks matches", func(t *testing.T) {
		w := doRequest(router, "POST", "/indexes/docs/_search", SearchRequest{Query: "array"})
		result := decodeSearchResult(t, w)
		if len(result.Hits) == 0 || result.Hits[0].Snippet != "block sparse <mark>array</mark> type" {
			t.Errorf("Unexpected snippet: %+v", result.Hits)
		}
	})
}

func TestMultiSearchHandler(t *testing.T) {
	router, eng := setupTestRouter(t)
	testutil.BuildTestIndex(t, eng, "docs", testutil.ExampleTable())

	body := MultiSearchRequest{
		Queries: []NamedSearchRequest{
			{Name: "svd", Query: "svd"},
			{Name: "array", Query: "array"},
		},
	}
	w := doRequest(router, "POST", "/indexes/docs/_multi_search", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result services.MultiSearchResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.TotalQueries != 2 {
		t.Errorf("Expected 2 queries, got %d", result.TotalQueries)
	}
	if hits := result.Results["svd"].Hits; len(hits) == 0 || hits[0].Location != "a#1" {
		t.Errorf("Unexpected svd results: %+v", hits)
	}
	if hits := result.Results["array"].Hits; len(hits) == 0 || hits[0].Location != "b#1" {
		t.Errorf("Unexpected array results: %+v", hits)
	}

	// All named results come from the same snapshot
	if result.Results["svd"].Generation != result.Results["array"].Generation {
		t.Error("Expected both queries to run against one generation")
	}

	dup := MultiSearchRequest{Queries: []NamedSearchRequest{{Name: "q", Query: "a"}, {Name: "q", Query: "b"}}}
	w = doRequest(router, "POST", "/indexes/docs/_multi_search", dup)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for duplicate names, got %d", w.Code)
	}

	w = doRequest(router, "POST", "/indexes/docs/_multi_search", MultiSearchRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for no queries, got %d", w.Code)
	}
}

func TestReplaceRecordsHandler(t *testing.T) {
	router, eng := setupTestRouter(t)
	testutil.CreateTestIndex(t, eng, "docs")

	t.Run("JSON array", func(t *testing.T) {
		rows := append(testutil.ExampleTable(), model.RawRecord{"title": "no location"})
		w := doRequest(router, "PUT", "/indexes/docs/records", rows)
		if w.Code != http.StatusAccepted {
			t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
		}
		var accepted struct {
			JobID string `json:"job_id"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &accepted); err != nil || accepted.JobID == "" {
			t.Fatalf("Expected a job ID, got %s", w.Body.String())
		}

		job := testutil.WaitForJobCompletion(t, eng, accepted.JobID, testutil.DefaultJobPollingOptions())
		testutil.AssertJobCompleted(t, job, model.JobTypeReplaceRecords, "docs")

		w = doRequest(router, "GET", "/indexes/docs/stats", nil)
		var stats model.IndexStats
		if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
			t.Fatal(err)
		}
		if stats.RecordCount != 5 || stats.SkippedRecords != 1 {
			t.Errorf("Expected 5 records and 1 skipped, got %+v", stats)
		}
	})

	t.Run("Documenter search index", func(t *testing.T) {
		table := `var documenterSearchIndex = {"docs":
[{"location":"z#1","page":"z","title":"QR","text":"qr decomposition","category":"method"}]
}`
		w := doRequest(router, "PUT", "/indexes/docs/records", table)
		if w.Code != http.StatusAccepted {
			t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
		}
		var accepted struct {
			JobID string `json:"job_id"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &accepted)
		testutil.WaitForJobCompletion(t, eng, accepted.JobID, testutil.DefaultJobPollingOptions())

		w = doRequest(router, "POST", "/indexes/docs/_search", SearchRequest{Query: "qr"})
		result := decodeSearchResult(t, w)
		if got := testutil.Locations(result); len(got) != 1 || got[0] != "z#1" {
			t.Errorf("Expected only z#1 after replacement, got %v", got)
		}
	})

	t.Run("invalid bodies", func(t *testing.T) {
		for name, body := range map[string]string{
			"not JSON":    "this is not a table",
			"empty array": "[]",
			"broken JSON": "[{",
		} {
			w := doRequest(router, "PUT", "/indexes/docs/records", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d: %s", name, w.Code, w.Body.String())
			}
		}
	})

	t.Run("unknown index", func(t *testing.T) {
		w := doRequest(router, "PUT", "/indexes/missing/records", testutil.ExampleTable())
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", w.Code)
		}
	})
}

func TestUpdateIndexSettingsHandler(t *testing.T) {
	router, eng := setupTestRouter(t)
	testutil.BuildTestIndex(t, eng, "docs", testutil.ExampleTable())

	w := doRequest(router, "PATCH", "/indexes/docs/settings", map[string]interface{}{
		"split_camel_case": true,
		"category_boosts":  map[string]float64{"type": 3},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var accepted struct {
		JobID string `json:"job_id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &accepted)
	job := testutil.WaitForJobCompletion(t, eng, accepted.JobID, testutil.DefaultJobPollingOptions())
	testutil.AssertJobCompleted(t, job, model.JobTypeUpdateSettings, "docs")

	settings, err := eng.GetIndexSettings("docs")
	if err != nil {
		t.Fatal(err)
	}
	if !settings.SplitCamelCase || settings.CategoryBoosts["type"] != 3 {
		t.Errorf("Settings not applied: %+v", settings)
	}
	if settings.TitleWeight != config.DefaultTitleWeight {
		t.Errorf("Expected untouched fields to keep their values, got title weight %f", settings.TitleWeight)
	}

	tests := []struct {
		name           string
		index          string
		body           interface{}
		expectedStatus int
	}{
		{"no fields", "docs", map[string]interface{}{}, http.StatusBadRequest},
		{"invalid value", "docs", map[string]interface{}{"prefix_penalty": 7}, http.StatusBadRequest},
		{"invalid JSON", "docs", "{", http.StatusBadRequest},
		{"unknown index", "missing", map[string]interface{}{"stem": true}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, "PATCH", "/indexes/"+tt.index+"/settings", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestRebuildIndexHandler(t *testing.T) {
	router, eng := setupTestRouter(t)
	testutil.CreateTestIndex(t, eng, "docs")

	w := doRequest(router, "POST", "/indexes/docs/rebuild", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409 before the first build, got %d", w.Code)
	}

	if _, err := eng.Build(t.Context(), "docs", testutil.ExampleTable()); err != nil {
		t.Fatal(err)
	}
	w = doRequest(router, "POST", "/indexes/docs/rebuild", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var accepted struct {
		JobID string `json:"job_id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &accepted)
	job := testutil.WaitForJobCompletion(t, eng, accepted.JobID, testutil.DefaultJobPollingOptions())
	testutil.AssertJobCompleted(t, job, model.JobTypeRebuild, "docs")
}

func TestJobHandlers(t *testing.T) {
	router, eng := setupTestRouter(t)
	testutil.CreateTestIndex(t, eng, "docs")

	jobID, err := eng.ReplaceRecordsAsync("docs", testutil.ExampleTable())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// WaitForJob returns once the job metrics are recorded
	if _, err := eng.WaitForJob(ctx, jobID); err != nil {
		t.Fatalf("Failed waiting for job: %v", err)
	}

	w := doRequest(router, "GET", "/jobs/"+jobID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var job model.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}
	if job.ID != jobID || job.Status != model.JobStatusCompleted {
		t.Errorf("Unexpected job: %+v", job)
	}

	w = doRequest(router, "GET", "/jobs/does-not-exist", nil)
	if w.Code != http.StatusNotFound || decodeAPIError(t, w).Code != ErrorCodeJobNotFound {
		t.Errorf("Expected JOB_NOT_FOUND, got %d %s", w.Code, w.Body.String())
	}

	var list struct {
		Jobs  []model.Job `json:"jobs"`
		Total int         `json:"total"`
	}
	w = doRequest(router, "GET", "/indexes/docs/jobs?status=completed", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 {
		t.Errorf("Expected 1 completed job, got %d", list.Total)
	}

	w = doRequest(router, "GET", "/jobs", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 {
		t.Errorf("Expected 1 job overall, got %d", list.Total)
	}

	w = doRequest(router, "GET", "/indexes/docs/jobs?status=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown status, got %d", w.Code)
	}

	w = doRequest(router, "GET", "/jobs/metrics", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"jobs_completed":1`) {
		t.Errorf("Unexpected job metrics: %d %s", w.Code, w.Body.String())
	}
}

func TestHealthAnalyticsAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New()
	eng := testutil.CreateTestEngine(t, engine.WithMetrics(m))
	router := gin.New()
	SetupRoutes(router, eng, WithMetrics(m), WithLogger(logging.Discard()))
	testutil.BuildTestIndex(t, eng, "docs", testutil.ExampleTable())

	w := doRequest(router, "GET", "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"healthy"`) {
		t.Fatalf("Unexpected health response: %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("Expected a generated request ID header")
	}

	doRequest(router, "POST", "/indexes/docs/_search", SearchRequest{Query: "svd"})
	doRequest(router, "POST", "/indexes/docs/_search", SearchRequest{Query: "qwertyuiop"})

	w = doRequest(router, "GET", "/analytics", nil)
	var dashboard model.AnalyticsDashboard
	if err := json.Unmarshal(w.Body.Bytes(), &dashboard); err != nil {
		t.Fatal(err)
	}
	if dashboard.TotalSearches != 2 {
		t.Errorf("Expected 2 tracked searches, got %d", dashboard.TotalSearches)
	}
	if len(dashboard.ZeroResultSearches) != 1 || dashboard.ZeroResultSearches[0].Query != "qwertyuiop" {
		t.Errorf("Unexpected zero-result searches: %+v", dashboard.ZeroResultSearches)
	}
	if dashboard.TotalRecords != 5 {
		t.Errorf("Expected 5 records, got %d", dashboard.TotalRecords)
	}

	w = doRequest(router, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`docsearch_http_requests_total{method="POST",route="/indexes/:indexName/_search",status="200"} 2`,
		`docsearch_search_queries_total{index="docs",match_type="exact"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected /metrics to contain %q", want)
		}
	}
}

func TestRequestIDPropagation(t *testing.T) {
	router, _ := setupTestRouter(t)

	req, _ := http.NewRequest("GET", "/indexes/missing", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "req-123" {
		t.Errorf("Expected request ID to be echoed, got %q", got)
	}
	if apiErr := decodeAPIError(t, w); apiErr.RequestID != "req-123" {
		t.Errorf("Expected error body to carry the request ID, got %q", apiErr.RequestID)
	}
}
