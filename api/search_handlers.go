package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/docsearch/model"
	"github.com/gcbaptista/docsearch/services"
)

// SearchRequest defines the structure for search queries.
type SearchRequest struct {
	Query      string   `json:"query"`
	Limit      *int     `json:"limit,omitempty"`      // Optional: defaults to the index's default_limit
	Categories []string `json:"categories,omitempty"` // Optional: keep only these record categories
	Pages      []string `json:"pages,omitempty"`      // Optional: keep only records from these pages
}

// MultiSearchRequest represents the JSON request for multi-search
type MultiSearchRequest struct {
	Queries []NamedSearchRequest `json:"queries"`
	Limit   *int                 `json:"limit,omitempty"`
}

// NamedSearchRequest represents a single named search query in the request
type NamedSearchRequest struct {
	Name       string   `json:"name"`
	Query      string   `json:"query"`
	Limit      *int     `json:"limit,omitempty"` // Overrides the request-level limit when set
	Categories []string `json:"categories,omitempty"`
	Pages      []string `json:"pages,omitempty"`
}

// SearchHandler handles search requests to an index.
// Request Body: SearchRequest
func (api *API) SearchHandler(c *gin.Context) {
	startTime := time.Now()
	indexName := c.Param("indexName")

	if result := ValidateIndexName(indexName); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		sendEngineError(c, indexName, "get index", err)
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidQuery, "Invalid request body: "+err.Error())
		return
	}
	if result := ValidateSearchRequest("", req.Query, req.Limit, req.Categories, req.Pages); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	limit := indexAccessor.Settings().DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	results, err := indexAccessor.Search(services.SearchQuery{
		Query:      req.Query,
		Limit:      limit,
		Categories: req.Categories,
		Pages:      req.Pages,
	})
	if err != nil {
		sendEngineError(c, indexName, "search", err)
		return
	}

	api.trackSearch(indexName, req.Query, results, time.Since(startTime))
	c.JSON(http.StatusOK, results)
}

// MultiSearchHandler handles multi-query search requests to an index.
// All queries run against the same snapshot.
// Request Body: MultiSearchRequest
func (api *API) MultiSearchHandler(c *gin.Context) {
	startTime := time.Now()
	indexName := c.Param("indexName")

	if result := ValidateIndexName(indexName); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		sendEngineError(c, indexName, "get index", err)
		return
	}

	var req MultiSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidQuery, "Invalid request body: "+err.Error())
		return
	}
	if result := ValidateMultiSearchRequest(&req); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	multiQuery := services.MultiSearchQuery{
		Queries: make([]services.NamedSearchQuery, 0, len(req.Queries)),
		Limit:   indexAccessor.Settings().DefaultLimit,
	}
	if req.Limit != nil {
		multiQuery.Limit = *req.Limit
	}
	for _, q := range req.Queries {
		named := services.NamedSearchQuery{
			Name:       q.Name,
			Query:      q.Query,
			Categories: q.Categories,
			Pages:      q.Pages,
		}
		if q.Limit != nil {
			// Zero means "inherit" downstream, so an explicit zero becomes -1
			named.Limit = *q.Limit
			if named.Limit <= 0 {
				named.Limit = -1
			}
		}
		multiQuery.Queries = append(multiQuery.Queries, named)
	}

	results, err := indexAccessor.MultiSearch(c.Request.Context(), multiQuery)
	if err != nil {
		sendEngineError(c, indexName, "multi-search", err)
		return
	}

	elapsed := time.Since(startTime)
	for _, q := range req.Queries {
		if r, ok := results.Results[q.Name]; ok {
			api.trackSearch(indexName, q.Query, r, elapsed)
		}
	}
	c.JSON(http.StatusOK, results)
}

func (api *API) trackSearch(indexName, query string, results services.SearchResult, elapsed time.Duration) {
	api.analytics.TrackSearchEvent(model.SearchEvent{
		IndexName:    indexName,
		Query:        query,
		MatchType:    results.MatchType,
		ResponseTime: elapsed,
		ResultCount:  results.Total,
		Cached:       results.Cached,
	})
}
