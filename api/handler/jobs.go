package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mapscout/jobs"
	"github.com/use-agent/mapscout/models"
)

// PostAsync returns a handler for POST /api/v1/scrape/async.
// It validates the request, queues a job and answers 202 with its ID.
func PostAsync(m *jobs.Manager, d Defaults) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}
		if err := d.prepare(&req); err != nil {
			invalidInput(c, err)
			return
		}

		id, err := m.Submit(req)
		if err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeSessionFailure, err.Error(), err), models.TimingInfo{})
			return
		}

		c.JSON(http.StatusAccepted, models.AsyncResponse{
			JobID:  id,
			Status: models.JobPending,
		})
	}
}

// GetJob returns a handler for GET /api/v1/jobs/:id.
func GetJob(m *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := m.Get(c.Param("id"))
		if !ok {
			notFound(c, "job")
			return
		}
		c.JSON(http.StatusOK, job)
	}
}
