package scraper

import (
	"context"
	"errors"

	"github.com/use-agent/mapscout/models"
)

// categorizeError wraps raw errors into typed ScrapeErrors so failures can
// be logged with a stable code.
func categorizeError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	switch {
	case errors.As(err, &se):
		return se
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
