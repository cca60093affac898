package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	internalErrors "github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/model"
)

// GetJobHandler handles requests to get job status by ID
func (api *API) GetJobHandler(c *gin.Context) {
	jobID := c.Param("jobId")

	job, err := api.engine.GetJob(jobID)
	if err != nil {
		if errors.Is(err, internalErrors.ErrJobNotFound) {
			SendJobNotFoundError(c, jobID)
			return
		}
		SendInternalError(c, "get job", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobsHandler handles requests to list jobs for an index
func (api *API) ListJobsHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	if _, err := api.engine.GetIndex(indexName); err != nil {
		sendEngineError(c, indexName, "get index", err)
		return
	}
	api.listJobs(c, indexName)
}

// ListAllJobsHandler lists the jobs of every index
func (api *API) ListAllJobsHandler(c *gin.Context) {
	api.listJobs(c, "")
}

func (api *API) listJobs(c *gin.Context, indexName string) {
	var statusFilter *model.JobStatus
	if statusParam := c.Query("status"); statusParam != "" {
		status := model.JobStatus(statusParam)
		switch status {
		case model.JobStatusPending, model.JobStatusRunning, model.JobStatusCompleted,
			model.JobStatusFailed, model.JobStatusCancelled:
		default:
			result := &ValidationResult{Valid: true}
			result.AddError("status", "Unknown job status '"+statusParam+"'")
			SendValidationError(c, result)
			return
		}
		statusFilter = &status
	}

	jobs := api.engine.ListJobs(indexName, statusFilter)
	response := gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	}
	if indexName != "" {
		response["index_name"] = indexName
	}
	c.JSON(http.StatusOK, response)
}

// GetJobMetricsHandler handles requests to get job performance metrics
func (api *API) GetJobMetricsHandler(c *gin.Context) {
	metrics := api.engine.GetJobMetrics()
	c.JSON(http.StatusOK, gin.H{
		"metrics":      metrics,
		"success_rate": metrics.SuccessRate,
	})
}
