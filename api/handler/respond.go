package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mapscout/config"
	"github.com/use-agent/mapscout/models"
)

// Defaults are the request defaults and limits the handlers apply.
type Defaults struct {
	Lang           string
	MaxPlaces      int
	MaxPlacesLimit int
	Headless       bool
	MaxBatchSize   int
}

// DefaultsFrom picks the handler defaults out of cfg.
func DefaultsFrom(cfg *config.Config) Defaults {
	return Defaults{
		Lang:           cfg.Scraper.DefaultLang,
		MaxPlaces:      cfg.Scraper.DefaultMaxPlaces,
		MaxPlacesLimit: cfg.Scraper.MaxPlacesLimit,
		Headless:       cfg.Browser.Headless,
		MaxBatchSize:   cfg.Jobs.MaxBatchSize,
	}
}

// prepare applies defaults to req and validates it.
func (d Defaults) prepare(req *models.ScrapeRequest) error {
	req.Defaults(d.Lang, d.MaxPlaces, d.Headless)
	return req.Validate(d.MaxPlacesLimit)
}

// respondError maps err to the correct HTTP status code and writes a
// structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.ScrapeResponse{
		Success: false,
		Places:  []models.Place{},
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}

func invalidInput(c *gin.Context, err error) {
	respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
}

func notFound(c *gin.Context, what string) {
	respondError(c, models.NewScrapeError(models.ErrCodeNotFound, what+" not found", nil), models.TimingInfo{})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeSessionFailure:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}
