package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/use-agent/mapscout/browser"
	"github.com/use-agent/mapscout/models"
	"github.com/use-agent/mapscout/stealth"
)

// session is the browser, context and page owned by one Scrape call.
// Any of them may be nil when opening failed part-way.
type session struct {
	browser browser.Browser
	bctx    browser.Context
	page    browser.Page
	once    sync.Once
}

// open acquires browser, context and page in that order and applies the
// fingerprint patch before anything navigates. On error, whatever was
// acquired stays on s for release.
func (s *session) open(ctx context.Context, l browser.Launcher, headless bool,
	fp stealth.Fingerprint, lang string, log *slog.Logger) error {
	b, err := l.Launch(ctx, headless)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeSessionFailure, "failed to launch browser", err)
	}
	s.browser = b

	c, err := b.NewContext(ctx, fp.ContextOptions(lang))
	if err != nil {
		return models.NewScrapeError(models.ErrCodeSessionFailure, "failed to create browser context", err)
	}
	s.bctx = c

	p, err := c.NewPage(ctx)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeSessionFailure, "failed to open page", err)
	}
	if p == nil {
		return models.NewScrapeError(models.ErrCodeSessionFailure, "browser returned no page", nil)
	}
	s.page = p

	if err := stealth.Apply(ctx, p, fp); err != nil {
		log.Warn("fingerprint patch failed, proceeding without it", "error", err)
	}
	return nil
}

// release closes page, context and browser, skipping the ones never
// opened. Only the first call has any effect.
func (s *session) release(log *slog.Logger) {
	s.once.Do(func() {
		if s.page != nil {
			closeQuietly(log, "page", s.page.Close)
		}
		if s.bctx != nil {
			closeQuietly(log, "context", s.bctx.Close)
		}
		if s.browser != nil {
			closeQuietly(log, "browser", s.browser.Close)
		}
	})
}

func closeQuietly(log *slog.Logger, what string, closeFn func() error) {
	defer func() {
		if p := recover(); p != nil {
			log.Warn("cleanup: close panicked", "resource", what, "error", fmt.Sprint(p))
		}
	}()
	if err := closeFn(); err != nil {
		log.Warn("cleanup: close failed", "resource", what, "error", err)
	}
}
