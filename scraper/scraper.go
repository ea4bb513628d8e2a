package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"

	"github.com/use-agent/mapscout/browser"
	"github.com/use-agent/mapscout/config"
	"github.com/use-agent/mapscout/models"
	"github.com/use-agent/mapscout/stealth"
)

// defaultMaxIdleScrolls applies when the config leaves MaxIdleScrolls unset.
const defaultMaxIdleScrolls = 5

// Query is one scrape request.
type Query struct {
	Query string

	// MaxPlaces caps how many listings are collected and visited.
	// Zero or negative means no cap.
	MaxPlaces int

	// Lang is the interface language (hl) and browser locale.
	// Empty uses ScraperConfig.DefaultLang.
	Lang string

	Headless bool

	// Progress, when set, is called after each collected link is visited
	// with the number visited so far and the number collected.
	Progress func(done, total int)
}

// Scraper runs Maps searches, one fresh browser session per call.
// It is safe for concurrent use; calls share no browser state.
type Scraper struct {
	launcher browser.Launcher
	cfg      config.ScraperConfig
	logger   *slog.Logger
	newRand  func() *rand.Rand
	sleep    stealth.SleepFunc
	active   atomic.Int32
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// WithRand sets the source of per-call randomness (fingerprints, delays,
// jitter). Default: a randomly seeded PCG per call.
func WithRand(fn func() *rand.Rand) Option {
	return func(s *Scraper) { s.newRand = fn }
}

// WithSleep replaces the pause primitive. Default: stealth.Sleep.
func WithSleep(fn stealth.SleepFunc) Option {
	return func(s *Scraper) { s.sleep = fn }
}

// New returns a Scraper that launches browsers with launcher.
func New(launcher browser.Launcher, cfg config.ScraperConfig, opts ...Option) *Scraper {
	if cfg.MaxIdleScrolls <= 0 {
		cfg.MaxIdleScrolls = defaultMaxIdleScrolls
	}
	if cfg.DefaultLang == "" {
		cfg.DefaultLang = "en"
	}
	s := &Scraper{
		launcher: launcher,
		cfg:      cfg,
		logger:   slog.Default(),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		sleep: stealth.Sleep,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Active returns the number of Scrape calls currently holding a session.
func (s *Scraper) Active() int {
	return int(s.active.Load())
}

// Result is the outcome of one Run.
type Result struct {
	// Places is never nil.
	Places []models.Place

	// Err is why the run stopped before the search was exhausted: a
	// canceled or expired ctx, a failed session or navigation, a panic.
	// It is nil when the run finished on its own.
	Err error
}

// Complete reports whether the run finished without being cut short.
func (r Result) Complete() bool { return r.Err == nil }

// Scrape searches Maps for q and returns the decoded listings in the order
// they were discovered. It never fails: every problem is logged and the
// places gathered so far are returned, possibly none. The result is never
// nil. The browser session is released exactly once before Scrape returns.
func (s *Scraper) Scrape(ctx context.Context, q Query) []models.Place {
	return s.Run(ctx, q).Places
}

// Run is Scrape, additionally reporting whether the listing came back
// partial.
func (s *Scraper) Run(ctx context.Context, q Query) (res Result) {
	if q.Lang == "" {
		q.Lang = s.cfg.DefaultLang
	}
	if s.cfg.ScrapeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ScrapeTimeout)
		defer cancel()
	}

	s.active.Add(1)
	defer s.active.Add(-1)

	rng := s.newRand()
	r := &run{
		cfg:    s.cfg,
		q:      q,
		log:    s.logger.With("query", q.Query, "lang", q.Lang),
		human:  stealth.NewHumanizer(rng, s.sleep),
		places: []models.Place{},
	}
	sess := &session{}

	defer func() {
		if p := recover(); p != nil {
			err := models.NewScrapeError(models.ErrCodeInternal, fmt.Sprint(p), nil)
			r.log.Error("scrape panicked, returning partial results",
				"error", err, "places", len(r.places))
			res.Err = err
		}
		sess.release(r.log)
		res.Places = r.places
	}()

	fp := stealth.NewFingerprint(rng)
	if err := sess.open(ctx, s.launcher, q.Headless, fp, q.Lang, r.log); err != nil {
		r.logFailure(err)
		return Result{Err: err}
	}
	err := r.execute(ctx, sess.page)
	if err == nil && ctx.Err() != nil {
		err = categorizeError(ctx.Err(), "scrape interrupted")
	}
	if err != nil {
		r.logFailure(err)
		return Result{Err: err}
	}

	r.log.Info("scrape finished", "places", len(r.places))
	return Result{}
}
