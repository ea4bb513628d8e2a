package models

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// ScrapeRequest is the payload for POST /api/v1/scrape and the query string
// for GET /api/v1/scrape.
type ScrapeRequest struct {
	// Query is the free-text Maps search, e.g. "coffee in Lisbon". Required.
	Query string `json:"query" form:"query" binding:"required,min=1,max=200"`

	// MaxPlaces caps how many listings are collected and visited.
	// Default: ScraperConfig.DefaultMaxPlaces. Max: ScraperConfig.MaxPlacesLimit.
	MaxPlaces int `json:"max_places,omitempty" form:"max_places" binding:"omitempty,min=1"`

	// Lang is the interface language passed as the hl parameter and used
	// as the browser locale. Default: ScraperConfig.DefaultLang.
	Lang string `json:"lang,omitempty" form:"lang" binding:"omitempty,min=2,max=10"`

	// Headless overrides BrowserConfig.Headless for this request.
	Headless *bool `json:"headless,omitempty" form:"headless"`

	// NoCache skips the cache lookup. The fresh result is still stored.
	NoCache bool `json:"no_cache,omitempty" form:"no_cache"`

	// WebhookURL receives the job result. Only used by the async and batch
	// endpoints; must be https.
	WebhookURL string `json:"webhook_url,omitempty" form:"webhook_url" binding:"omitempty,url"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults(lang string, maxPlaces int, headless bool) {
	r.Query = strings.TrimSpace(r.Query)
	if r.Lang == "" {
		r.Lang = lang
	}
	if r.MaxPlaces == 0 {
		r.MaxPlaces = maxPlaces
	}
	if r.Headless == nil {
		r.Headless = &headless
	}
}

// Validate checks the constraints the binding tags cannot express.
func (r *ScrapeRequest) Validate(maxPlacesLimit int) error {
	if err := validateQuery(r.Query); err != nil {
		return err
	}
	if r.MaxPlaces < 0 || r.MaxPlaces > maxPlacesLimit {
		return fmt.Errorf("max_places must be between 1 and %d", maxPlacesLimit)
	}
	if err := validateLang(r.Lang); err != nil {
		return err
	}
	return validateWebhookURL(r.WebhookURL)
}

// BatchRequest is the payload for POST /api/v1/scrape/batch.
type BatchRequest struct {
	// Queries is the list of searches to run, one job each. Required.
	Queries []string `json:"queries" binding:"required,min=1"`

	MaxPlaces  int    `json:"max_places,omitempty" binding:"omitempty,min=1"`
	Lang       string `json:"lang,omitempty" binding:"omitempty,min=2,max=10"`
	Headless   *bool  `json:"headless,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Requests expands the batch into one ScrapeRequest per query.
func (b *BatchRequest) Requests() []ScrapeRequest {
	out := make([]ScrapeRequest, 0, len(b.Queries))
	for _, q := range b.Queries {
		out = append(out, ScrapeRequest{
			Query:      q,
			MaxPlaces:  b.MaxPlaces,
			Lang:       b.Lang,
			Headless:   b.Headless,
			WebhookURL: b.WebhookURL,
		})
	}
	return out
}

func validateQuery(q string) error {
	if q == "" {
		return fmt.Errorf("query must not be empty")
	}
	if len([]rune(q)) > 200 {
		return fmt.Errorf("query must be at most 200 characters")
	}
	for _, r := range q {
		if unicode.IsControl(r) {
			return fmt.Errorf("query must not contain control characters")
		}
	}
	return nil
}

func validateLang(lang string) error {
	if len(lang) < 2 || len(lang) > 10 {
		return fmt.Errorf("lang must be 2 to 10 characters")
	}
	for _, r := range lang {
		if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return fmt.Errorf("lang %q is not a language code", lang)
		}
	}
	return nil
}

func validateWebhookURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("webhook_url is not a valid URL")
	}
	if u.Scheme != "https" {
		return fmt.Errorf("webhook_url must use https")
	}
	return nil
}
