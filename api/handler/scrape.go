package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mapscout/jobs"
	"github.com/use-agent/mapscout/models"
)

// Scrape returns a handler for POST /api/v1/scrape (JSON body) and
// GET /api/v1/scrape (query string).
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Manager.Scrape → cache lookup, then a browser session under the
//     session limit, then cache store.
//  3. Fill Timing, return 200. An empty result is still a success.
func Scrape(m *jobs.Manager, d Defaults) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		var err error
		if c.Request.Method == http.MethodGet {
			err = c.ShouldBindQuery(&req)
		} else {
			err = c.ShouldBindJSON(&req)
		}
		if err != nil {
			invalidInput(c, err)
			return
		}
		if err := d.prepare(&req); err != nil {
			invalidInput(c, err)
			return
		}

		// ── 2. Scrape ───────────────────────────────────────────────
		places, cacheStatus, err := m.Scrape(c.Request.Context(), req)
		if err != nil {
			respondError(c,
				models.NewScrapeError(models.ErrCodeTimeout, "request canceled while waiting for a browser session", err),
				models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()},
			)
			return
		}
		if places == nil {
			places = []models.Place{}
		}

		// ── 3. Respond ──────────────────────────────────────────────
		c.JSON(http.StatusOK, models.ScrapeResponse{
			Success:     true,
			Query:       req.Query,
			Count:       len(places),
			Places:      places,
			CacheStatus: cacheStatus,
			Timing:      models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()},
		})
	}
}
