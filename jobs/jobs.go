// Package jobs runs scrape queries in the background with bounded
// concurrency and keeps their results in memory for a retention window.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/mapscout/cache"
	"github.com/use-agent/mapscout/models"
	"github.com/use-agent/mapscout/scraper"
	"github.com/use-agent/mapscout/webhook"
)

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("jobs: manager closed")

// Runner executes one scrape. *scraper.Scraper satisfies it.
type Runner interface {
	Run(ctx context.Context, q scraper.Query) scraper.Result
}

// Notifier delivers webhook events. *webhook.Sender satisfies it.
type Notifier interface {
	DeliverAsync(url string, event *webhook.Event)
}

// Options configures a Manager.
type Options struct {
	// MaxSessions caps concurrently running scrapes, synchronous ones
	// included. Default: 3.
	MaxSessions int

	// Retention is how long finished jobs stay queryable. Default: 24h.
	Retention time.Duration

	// Cache, when set, is consulted before scraping and filled after.
	Cache *cache.Cache

	// Notifier, when set, receives job and batch completion events.
	Notifier Notifier

	Logger *slog.Logger
}

type job struct {
	resp    models.JobResponse
	req     models.ScrapeRequest
	webhook string
}

type batch struct {
	id      string
	jobIDs  []string
	webhook string
	done    bool
}

// Manager owns every job and batch. It is safe for concurrent use.
type Manager struct {
	runner    Runner
	cache     *cache.Cache
	notifier  Notifier
	logger    *slog.Logger
	retention time.Duration
	now       func() time.Time

	sem    chan struct{}
	queued atomic.Int32

	mu      sync.RWMutex
	jobs    map[string]*job
	batches map[string]*batch
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager and starts its retention sweep.
func NewManager(runner Runner, opts Options) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 3
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		runner:    runner,
		cache:     opts.Cache,
		notifier:  opts.Notifier,
		logger:    opts.Logger,
		retention: opts.Retention,
		now:       time.Now,
		sem:       make(chan struct{}, opts.MaxSessions),
		jobs:      make(map[string]*job),
		batches:   make(map[string]*batch),
		ctx:       ctx,
		cancel:    cancel,
	}

	go m.sweepLoop(max(opts.Retention/24, time.Minute))
	return m
}

// Scrape runs req synchronously under the session limit. The returned
// cache status is "hit", "miss", or empty when caching is off. A listing
// cut short by ctx or the scraper's own deadline is returned but not cached.
func (m *Manager) Scrape(ctx context.Context, req models.ScrapeRequest) ([]models.Place, string, error) {
	key := cacheKey(req)
	if m.cache != nil && !req.NoCache {
		if places, ok := m.cache.Get(key); ok {
			return places, "hit", nil
		}
	}

	if err := m.acquire(ctx); err != nil {
		return nil, "", err
	}
	res := func() scraper.Result {
		defer m.release()
		return m.runner.Run(ctx, toQuery(req, nil))
	}()

	if m.cache == nil {
		return res.Places, "", nil
	}
	if res.Complete() && ctx.Err() == nil {
		m.cache.Set(key, res.Places)
	}
	return res.Places, "miss", nil
}

// Submit queues req as an async job and returns its ID.
func (m *Manager) Submit(req models.ScrapeRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}
	j := m.newJobLocked(req, "")
	m.start(j.resp.ID)
	return j.resp.ID, nil
}

// SubmitBatch queues one job per request under a single batch. Per-job
// webhooks are suppressed; webhookURL receives one batch.completed event.
func (m *Manager) SubmitBatch(reqs []models.ScrapeRequest, webhookURL string) (models.BatchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return models.BatchResponse{}, ErrClosed
	}

	b := &batch{id: "batch_" + uuid.NewString(), webhook: webhookURL}
	for _, req := range reqs {
		j := m.newJobLocked(req, b.id)
		b.jobIDs = append(b.jobIDs, j.resp.ID)
	}
	m.batches[b.id] = b
	for _, id := range b.jobIDs {
		m.start(id)
	}

	return models.BatchResponse{
		BatchID: b.id,
		JobIDs:  slices.Clone(b.jobIDs),
		Total:   len(b.jobIDs),
	}, nil
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (models.JobResponse, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return models.JobResponse{}, false
	}
	return snapshot(j), true
}

// GetBatch returns the aggregated status of a batch.
func (m *Manager) GetBatch(id string) (models.BatchStatusResponse, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batches[id]
	if !ok {
		return models.BatchStatusResponse{}, false
	}
	return m.batchStatusLocked(b), true
}

// Stats reports session usage.
func (m *Manager) Stats() models.SessionStats {
	return models.SessionStats{
		MaxSessions:    cap(m.sem),
		ActiveSessions: len(m.sem),
		QueuedJobs:     int(m.queued.Load()),
	}
}

// Close cancels running jobs and waits for them to finish or for ctx to
// expire. Jobs interrupted this way end as failed.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) newJobLocked(req models.ScrapeRequest, batchID string) *job {
	j := &job{
		req:     req,
		webhook: req.WebhookURL,
		resp: models.JobResponse{
			ID:        "job_" + uuid.NewString(),
			BatchID:   batchID,
			Status:    models.JobPending,
			Query:     req.Query,
			CreatedAt: m.now(),
		},
	}
	m.jobs[j.resp.ID] = j
	return j
}

func (m *Manager) start(id string) {
	m.wg.Add(1)
	m.queued.Add(1)
	go m.run(id)
}

func (m *Manager) run(id string) {
	defer m.wg.Done()

	err := m.acquire(m.ctx)
	m.queued.Add(-1)
	if err != nil {
		m.finish(id, nil, models.NewScrapeError(models.ErrCodeTimeout, "job canceled before start", err))
		return
	}
	defer m.release()

	m.mu.Lock()
	j := m.jobs[id]
	started := m.now()
	j.resp.Status = models.JobProcessing
	j.resp.StartedAt = &started
	req := j.req
	m.mu.Unlock()

	log := m.logger.With("job_id", id, "query", req.Query)
	log.Info("job started")

	key := cacheKey(req)
	if m.cache != nil && !req.NoCache {
		if places, ok := m.cache.Get(key); ok {
			log.Info("job served from cache", "places", len(places))
			m.finish(id, places, nil)
			return
		}
	}

	places, complete, err := m.scrape(req, id)
	if err != nil {
		log.Error("job failed", "error", err)
		m.finish(id, places, err)
		return
	}
	if m.cache != nil && complete {
		m.cache.Set(key, places)
	}
	log.Info("job completed", "places", len(places))
	m.finish(id, places, nil)
}

// scrape runs the job's query and reports whether the listing is whole.
// A panicking runner or a shutdown while running fails the job.
func (m *Manager) scrape(req models.ScrapeRequest, id string) (places []models.Place, complete bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = models.NewScrapeError(models.ErrCodeInternal, fmt.Sprint(p), nil)
		}
	}()

	progress := func(done, total int) {
		m.mu.Lock()
		if j, ok := m.jobs[id]; ok {
			j.resp.Progress = models.Progress{Done: done, Total: total}
		}
		m.mu.Unlock()
	}
	res := m.runner.Run(m.ctx, toQuery(req, progress))
	if ctxErr := m.ctx.Err(); ctxErr != nil {
		return res.Places, false, models.NewScrapeError(models.ErrCodeTimeout, "job canceled by shutdown", ctxErr)
	}
	return res.Places, res.Complete(), nil
}

func (m *Manager) finish(id string, places []models.Place, err error) {
	if places == nil {
		places = []models.Place{}
	}

	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	completed := m.now()
	j.resp.CompletedAt = &completed
	j.resp.Places = places
	j.resp.Count = len(places)
	j.resp.Status = models.JobCompleted
	event := webhook.EventJobCompleted
	if err != nil {
		j.resp.Status = models.JobFailed
		event = webhook.EventJobFailed
		j.resp.Error = models.AsScrapeError(err, models.ErrCodeInternal).ToDetail()
	}
	snap := snapshot(j)
	url := j.webhook

	var batchEvent *webhook.Event
	var batchURL string
	if b, ok := m.batches[j.resp.BatchID]; ok {
		url = ""
		if status := m.batchStatusLocked(b); status.Status.Terminal() && !b.done {
			b.done = true
			batchURL = b.webhook
			batchEvent = &webhook.Event{
				Type:      webhook.EventBatchCompleted,
				JobID:     b.id,
				Timestamp: completed.Unix(),
				Data:      status,
			}
		}
	}
	m.mu.Unlock()

	if m.notifier == nil {
		return
	}
	if url != "" {
		m.notifier.DeliverAsync(url, &webhook.Event{
			Type:      event,
			JobID:     id,
			Timestamp: completed.Unix(),
			Data:      snap,
		})
	}
	if batchEvent != nil && batchURL != "" {
		m.notifier.DeliverAsync(batchURL, batchEvent)
	}
}

// batchStatusLocked aggregates a batch. The batch is processing while any
// job is not terminal, failed when every job failed, completed otherwise.
func (m *Manager) batchStatusLocked(b *batch) models.BatchStatusResponse {
	out := models.BatchStatusResponse{
		ID:    b.id,
		Total: len(b.jobIDs),
		Jobs:  make([]models.JobResponse, 0, len(b.jobIDs)),
	}
	pending := false
	for _, id := range b.jobIDs {
		j, ok := m.jobs[id]
		if !ok {
			continue
		}
		switch j.resp.Status {
		case models.JobCompleted:
			out.Completed++
		case models.JobFailed:
			out.Failed++
		default:
			pending = true
		}
		out.Jobs = append(out.Jobs, snapshot(j))
	}

	switch {
	case pending:
		out.Status = models.JobProcessing
	case out.Failed == out.Total:
		out.Status = models.JobFailed
	default:
		out.Status = models.JobCompleted
	}
	return out
}

func (m *Manager) acquire(ctx context.Context) error {
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) release() { <-m.sem }

// sweep drops finished jobs older than the retention window and batches
// whose jobs are all gone.
func (m *Manager) sweep() {
	cutoff := m.now().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range m.jobs {
		if j.resp.Status.Terminal() && j.resp.CompletedAt != nil && j.resp.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
	for id, b := range m.batches {
		alive := slices.ContainsFunc(b.jobIDs, func(jid string) bool {
			_, ok := m.jobs[jid]
			return ok
		})
		if !alive {
			delete(m.batches, id)
		}
	}
}

func (m *Manager) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func snapshot(j *job) models.JobResponse {
	out := j.resp
	out.Places = models.ClonePlaces(j.resp.Places)
	return out
}

func cacheKey(req models.ScrapeRequest) string {
	return cache.Key(req.Query, req.MaxPlaces, req.Lang)
}

func toQuery(req models.ScrapeRequest, progress func(done, total int)) scraper.Query {
	headless := true
	if req.Headless != nil {
		headless = *req.Headless
	}
	return scraper.Query{
		Query:     req.Query,
		MaxPlaces: req.MaxPlaces,
		Lang:      req.Lang,
		Headless:  headless,
		Progress:  progress,
	}
}
