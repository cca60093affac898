package api

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/model"
)

const (
	maxSearchLimit   = 1000
	maxQueryLength   = 512 // Characters
	maxMultiQueries  = 20
	maxFilterEntries = 100
)

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of validation operations
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// ValidateIndexName validates an index name parameter
func ValidateIndexName(indexName string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if indexName == "" {
		result.AddError("indexName", "Index name is required")
		return result
	}

	if strings.TrimSpace(indexName) != indexName {
		result.AddError("indexName", "Index name cannot have leading or trailing whitespace")
		return result
	}

	return result
}

// ValidateIndexSettings applies defaults to settings and validates them for
// index creation.
func ValidateIndexSettings(settings *config.IndexSettings) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if settings == nil {
		result.AddError("settings", "Index settings are required")
		return result
	}

	if settings.Name == "" {
		result.AddError("name", "Index name is required")
		return result
	}

	settings.ApplyDefaults()
	for _, conflict := range settings.Validate() {
		result.AddError("settings", conflict)
	}

	return result
}

// ValidateSearchRequest checks the query length, the limit and the filters.
// prefix qualifies the reported field names.
// A missing limit is fine: the index default applies.
func ValidateSearchRequest(prefix, query string, limit *int, categories, pages []string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if utf8.RuneCountInString(query) > maxQueryLength {
		result.AddError(prefix+"query", fmt.Sprintf("Query must be at most %d characters", maxQueryLength))
	}
	if limit != nil && *limit > maxSearchLimit {
		result.AddError(prefix+"limit", fmt.Sprintf("Limit must be at most %d", maxSearchLimit))
	}
	if len(categories) > maxFilterEntries {
		result.AddError(prefix+"categories", fmt.Sprintf("At most %d categories may be given", maxFilterEntries))
	}
	if len(pages) > maxFilterEntries {
		result.AddError(prefix+"pages", fmt.Sprintf("At most %d pages may be given", maxFilterEntries))
	}

	return result
}

// ValidateMultiSearchRequest validates every named query and their names.
func ValidateMultiSearchRequest(req *MultiSearchRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if len(req.Queries) == 0 {
		result.AddError("queries", "At least one query is required")
		return result
	}
	if len(req.Queries) > maxMultiQueries {
		result.AddError("queries", fmt.Sprintf("At most %d queries may be given", maxMultiQueries))
		return result
	}
	if req.Limit != nil && *req.Limit > maxSearchLimit {
		result.AddError("limit", fmt.Sprintf("Limit must be at most %d", maxSearchLimit))
	}

	seen := make(map[string]bool, len(req.Queries))
	for i, q := range req.Queries {
		prefix := fmt.Sprintf("queries[%d].", i)
		if strings.TrimSpace(q.Name) == "" {
			result.AddError(prefix+"name", "Query name is required")
		} else if seen[q.Name] {
			result.AddError(prefix+"name", "Duplicate query name '"+q.Name+"'")
		}
		seen[q.Name] = true

		sub := ValidateSearchRequest(prefix, q.Query, q.Limit, q.Categories, q.Pages)
		result.Errors = append(result.Errors, sub.Errors...)
	}
	if len(result.Errors) > 0 {
		result.Valid = false
	}

	return result
}

// ValidateRecords checks that a record table has at least one row. Row
// contents are validated during the build, where malformed rows are skipped.
func ValidateRecords(rows []model.RawRecord) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if len(rows) == 0 {
		result.AddError("records", "No records provided")
	}

	return result
}

// SendValidationError sends a standardized validation error response
func SendValidationError(c *gin.Context, result *ValidationResult) {
	SendStructuredValidationError(c, result)
}

// ValidateJSONBinding validates JSON binding and returns a standardized error
func ValidateJSONBinding(c *gin.Context, target interface{}) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if err := c.ShouldBindJSON(target); err != nil {
		result.AddError("request_body", "Invalid request body: "+err.Error())
	}

	return result
}
