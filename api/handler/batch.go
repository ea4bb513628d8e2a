package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mapscout/jobs"
	"github.com/use-agent/mapscout/models"
)

// PostBatch returns a handler for POST /api/v1/scrape/batch.
// Every query becomes its own job; the whole batch is rejected if any
// query is invalid.
func PostBatch(m *jobs.Manager, d Defaults) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}

		if d.MaxBatchSize > 0 && len(req.Queries) > d.MaxBatchSize {
			invalidInput(c, fmt.Errorf("maximum %d queries per batch", d.MaxBatchSize))
			return
		}

		reqs := req.Requests()
		for i := range reqs {
			if err := d.prepare(&reqs[i]); err != nil {
				invalidInput(c, fmt.Errorf("queries[%d]: %w", i, err))
				return
			}
		}

		resp, err := m.SubmitBatch(reqs, req.WebhookURL)
		if err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeSessionFailure, err.Error(), err), models.TimingInfo{})
			return
		}

		slog.Info("batch submitted", "batch_id", resp.BatchID, "total", resp.Total)
		c.JSON(http.StatusAccepted, resp)
	}
}

// GetBatch returns a handler for GET /api/v1/batches/:id.
func GetBatch(m *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, ok := m.GetBatch(c.Param("id"))
		if !ok {
			notFound(c, "batch")
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
