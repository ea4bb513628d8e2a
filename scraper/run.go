package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/mapscout/browser"
	"github.com/use-agent/mapscout/config"
	"github.com/use-agent/mapscout/decoder"
	"github.com/use-agent/mapscout/models"
	"github.com/use-agent/mapscout/stealth"
)

const (
	searchBaseURL = "https://www.google.com/maps/search/"

	// singlePlacePattern marks a place page URL, both for the redirect
	// taken on a single match and for the links in the results feed.
	singlePlacePattern = "/maps/place/"

	consentButtonSelector = `form[action^="https://consent.google"] button`
	feedSelector          = `div[role="feed"]`
	placeLinkSelector     = `a[href*="/maps/place/"]`
	endOfListSelector     = `span.HlvSq`

	readLinksJS  = `els => els.map(e => e.href)`
	scrollFeedJS = `() => {
		const feed = document.querySelector('div[role="feed"]');
		if (!feed) return 0;
		feed.scrollTop = feed.scrollHeight;
		return feed.scrollHeight;
	}`
)

// BuildSearchURL returns the Maps search URL for query in lang.
func BuildSearchURL(query, lang string) string {
	return searchBaseURL + "?q=" + url.QueryEscape(query) + "&hl=" + url.QueryEscape(lang)
}

type resultKind int

const (
	resultEmpty resultKind = iota
	resultSingle
	resultListing
)

func (k resultKind) String() string {
	switch k {
	case resultSingle:
		return "single"
	case resultListing:
		return "listing"
	default:
		return "empty"
	}
}

// run is the state of one Scrape call.
type run struct {
	cfg    config.ScraperConfig
	q      Query
	log    *slog.Logger
	human  *stealth.Humanizer
	places []models.Place
}

func (r *run) execute(ctx context.Context, page browser.Page) error {
	if err := r.search(ctx, page); err != nil {
		return err
	}
	if stealth.CheckDetected(ctx, page) {
		r.log.Warn("search returned what looks like a block or captcha page")
	}

	kind, finalURL, err := r.classify(ctx, page)
	if err != nil {
		return err
	}
	r.log.Debug("search classified", "result", kind.String(), "url", finalURL)

	switch kind {
	case resultSingle:
		return r.single(ctx, page, finalURL)
	case resultEmpty:
		r.log.Info("search returned no results")
		return nil
	}

	links, err := r.collectLinks(ctx, page)
	if err != nil {
		return err
	}
	r.log.Info("place links collected", "links", len(links))
	return r.visitAll(ctx, page, links)
}

// search navigates to the results page and dismisses the consent
// interstitial if one shows up.
func (r *run) search(ctx context.Context, page browser.Page) error {
	searchURL := BuildSearchURL(r.q.Query, r.q.Lang)
	r.log.Debug("navigating to search", "url", searchURL)

	if err := page.Goto(ctx, searchURL, r.cfg.NavigationTimeout); err != nil {
		return categorizeError(err, "search navigation failed")
	}
	return r.dismissConsent(ctx, page)
}

func (r *run) dismissConsent(ctx context.Context, page browser.Page) error {
	if err := page.WaitForSelector(ctx, consentButtonSelector, r.cfg.ConsentTimeout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return categorizeError(ctxErr, "waiting for consent dialog")
		}
		r.log.Debug("no consent dialog")
		return nil
	}

	if err := r.human.Delay(ctx, 300*time.Millisecond, 900*time.Millisecond); err != nil {
		return categorizeError(err, "consent delay")
	}
	if err := page.Locator(consentButtonSelector).Click(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return categorizeError(ctxErr, "clicking consent button")
		}
		r.log.Debug("consent button click failed", "error", err)
		return nil
	}
	r.log.Debug("consent dialog dismissed")

	if err := stealth.WaitForStableNetwork(ctx, page, r.cfg.SettleTimeout); err != nil {
		return categorizeError(err, "waiting after consent")
	}
	return nil
}

// classify decides between a direct place page, a results feed and no
// results at all.
func (r *run) classify(ctx context.Context, page browser.Page) (resultKind, string, error) {
	finalURL, err := page.URL(ctx)
	if err != nil {
		r.log.Debug("reading page URL failed", "error", err)
	}
	if strings.Contains(finalURL, singlePlacePattern) {
		return resultSingle, finalURL, nil
	}

	if err := page.WaitForSelector(ctx, feedSelector, r.cfg.FeedTimeout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return resultEmpty, finalURL, categorizeError(ctxErr, "waiting for results feed")
		}
		r.log.Debug("results feed not found",
			"error", models.NewScrapeError(models.ErrCodeSelectorNotFound, feedSelector, err))
		return resultEmpty, finalURL, nil
	}
	return resultListing, finalURL, nil
}

// single decodes the place page the search redirected to.
func (r *run) single(ctx context.Context, page browser.Page, finalURL string) error {
	html, err := page.Content(ctx)
	if err != nil {
		return categorizeError(err, "reading place page")
	}
	place := decoder.ExtractPlaceRecord(html)
	if place == nil {
		r.log.Info("single result could not be decoded", "url", finalURL, "error", decodeFailure(html))
		return nil
	}
	place.Link = finalURL
	r.places = append(r.places, *place)
	r.progress(1, 1)
	return nil
}

// visitAll opens every collected link in turn and keeps the decodable ones.
func (r *run) visitAll(ctx context.Context, page browser.Page, links []string) error {
	for i, link := range links {
		if i > 0 {
			if err := r.human.Delay(ctx, r.cfg.PlaceDelayMin, r.cfg.PlaceDelayMax); err != nil {
				return categorizeError(err, "pausing between places")
			}
		}

		place, err := r.visit(ctx, page, link)
		switch {
		case err != nil && ctx.Err() != nil:
			return categorizeError(ctx.Err(), "visiting places")
		case err != nil:
			r.log.Debug("skipping place", "url", link, "error", err)
		default:
			r.places = append(r.places, *place)
		}
		r.progress(i+1, len(links))
	}
	return nil
}

func (r *run) visit(ctx context.Context, page browser.Page, link string) (*models.Place, error) {
	if err := page.Goto(ctx, link, r.cfg.NavigationTimeout); err != nil {
		return nil, categorizeError(err, "place navigation failed")
	}
	if err := stealth.WaitForStableNetwork(ctx, page, r.cfg.SettleTimeout); err != nil {
		return nil, categorizeError(err, "waiting for place page")
	}
	html, err := page.Content(ctx)
	if err != nil {
		return nil, categorizeError(err, "reading place page")
	}
	place := decoder.ExtractPlaceRecord(html)
	if place == nil {
		return nil, decodeFailure(html)
	}
	place.Link = link
	return place, nil
}

// decodeFailure tells a page without embedded state apart from one whose
// state no longer has the expected shape.
func decodeFailure(html string) *models.ScrapeError {
	if _, ok := decoder.ExtractEmbeddedState(html); ok {
		return models.NewScrapeError(models.ErrCodeDecodeMismatch, "embedded state has an unexpected shape", nil)
	}
	return models.NewScrapeError(models.ErrCodeExtractionMiss, "page carries no embedded state", nil)
}

func (r *run) progress(done, total int) {
	if r.q.Progress != nil {
		r.q.Progress(done, total)
	}
}

// logFailure records why a scrape ended early. Cancellation is expected
// when callers give up, so it is logged below warning level.
func (r *run) logFailure(err error) {
	code := models.AsScrapeError(err, models.ErrCodeInternal).Code
	attrs := []any{"code", code, "error", err, "places", len(r.places)}
	if errors.Is(err, context.Canceled) {
		r.log.Info("scrape canceled", attrs...)
		return
	}
	r.log.Warn("scrape ended early", attrs...)
}
