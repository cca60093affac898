package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	internalErrors "github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/internal/ingest"
)

// ReplaceRecordsHandler replaces the record table of an index and rebuilds
// it in a background job. The body is a JSON array of records, an object
// with a "docs" array, or a Documenter search_index.js file. Malformed rows
// are skipped by the build and counted in the job result.
func (api *API) ReplaceRecordsHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	if _, err := api.engine.GetIndex(indexName); err != nil {
		sendEngineError(c, indexName, "get index", err)
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			SendError(c, http.StatusRequestEntityTooLarge, ErrorCodeInvalidRequest,
				"Record table exceeds the "+strconv.FormatInt(maxBytesErr.Limit, 10)+" byte limit")
			return
		}
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, "Failed to read request body: "+err.Error())
		return
	}

	rows, err := ingest.Decode(body)
	if err != nil {
		var validationErr *internalErrors.ValidationError
		if errors.As(err, &validationErr) {
			SendError(c, http.StatusBadRequest, ErrorCodeInvalidTable, validationErr.Message)
			return
		}
		SendInvalidJSONError(c, err)
		return
	}
	if result := ValidateRecords(rows); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	jobID, err := api.engine.ReplaceRecordsAsync(indexName, rows)
	if err != nil {
		sendEngineError(c, indexName, "replace records", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": "Rebuild of index '" + indexName + "' started with " + strconv.Itoa(len(rows)) + " records",
		"job_id":  jobID,
	})
}

// RebuildIndexHandler rebuilds an index from its current records with its
// current settings.
func (api *API) RebuildIndexHandler(c *gin.Context) {
	indexName := c.Param("indexName")

	jobID, err := api.engine.RebuildAsync(indexName)
	if err != nil {
		sendEngineError(c, indexName, "rebuild", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": "Rebuild of index '" + indexName + "' started",
		"job_id":  jobID,
	})
}
