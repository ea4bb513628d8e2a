package jobs

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/use-agent/mapscout/cache"
	"github.com/use-agent/mapscout/models"
	"github.com/use-agent/mapscout/scraper"
	"github.com/use-agent/mapscout/webhook"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []scraper.Query
	fn    func(ctx context.Context, q scraper.Query) []models.Place

	// cutShort, when set, is reported as the reason every run stopped early.
	cutShort error
}

// Run reports a run as incomplete when cutShort is set or ctx ended, the
// way the scraper does.
func (r *fakeRunner) Run(ctx context.Context, q scraper.Query) scraper.Result {
	r.mu.Lock()
	r.calls = append(r.calls, q)
	r.mu.Unlock()
	places := []models.Place{{Name: ptr(q.Query)}}
	if r.fn != nil {
		places = r.fn(ctx, q)
	}
	if places == nil {
		places = []models.Place{}
	}
	err := r.cutShort
	if err == nil {
		err = ctx.Err()
	}
	return scraper.Result{Places: places, Err: err}
}

func (r *fakeRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type sent struct {
	url   string
	event *webhook.Event
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (n *fakeNotifier) DeliverAsync(url string, event *webhook.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{url, event})
}

func (n *fakeNotifier) Sent() []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sent(nil), n.sent...)
}

func newTestManager(t *testing.T, r Runner, opts Options) *Manager {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := NewManager(r, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitStatus(t *testing.T, m *Manager, id string, want models.JobStatus) models.JobResponse {
	t.Helper()
	var got models.JobResponse
	waitFor(t, "job "+id+" to reach "+string(want), func() bool {
		got, _ = m.Get(id)
		return got.Status == want
	})
	return got
}

func request(query string) models.ScrapeRequest {
	headless := false
	return models.ScrapeRequest{Query: query, MaxPlaces: 5, Lang: "de", Headless: &headless}
}

func TestSubmitCompletes(t *testing.T) {
	r := &fakeRunner{fn: func(_ context.Context, q scraper.Query) []models.Place {
		q.Progress(1, 2)
		q.Progress(2, 2)
		return []models.Place{{Name: ptr("A")}, {Name: ptr("B")}}
	}}
	n := &fakeNotifier{}
	m := newTestManager(t, r, Options{Notifier: n})

	req := request("cafes")
	req.WebhookURL = "https://hooks.example.com/x"
	id, err := m.Submit(req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got := waitStatus(t, m, id, models.JobCompleted)
	if got.Count != 2 || len(got.Places) != 2 {
		t.Errorf("count = %d, places = %d, want 2", got.Count, len(got.Places))
	}
	if got.Progress != (models.Progress{Done: 2, Total: 2}) {
		t.Errorf("progress = %+v", got.Progress)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("timestamps not set")
	}
	if got.Error != nil {
		t.Errorf("unexpected error %+v", got.Error)
	}

	r.mu.Lock()
	q := r.calls[0]
	r.mu.Unlock()
	if q.Query != "cafes" || q.MaxPlaces != 5 || q.Lang != "de" || q.Headless {
		t.Errorf("query passed to runner = %+v", q)
	}

	waitFor(t, "webhook", func() bool { return len(n.Sent()) == 1 })
	s := n.Sent()[0]
	if s.url != req.WebhookURL || s.event.Type != webhook.EventJobCompleted || s.event.JobID != id {
		t.Errorf("webhook = %s %+v", s.url, s.event)
	}
}

func TestGetUnknown(t *testing.T) {
	m := newTestManager(t, &fakeRunner{}, Options{})
	if _, ok := m.Get("job_missing"); ok {
		t.Error("Get(unknown) ok = true")
	}
	if _, ok := m.GetBatch("batch_missing"); ok {
		t.Error("GetBatch(unknown) ok = true")
	}
}

func TestSessionLimit(t *testing.T) {
	gate := make(chan struct{})
	r := &fakeRunner{fn: func(_ context.Context, q scraper.Query) []models.Place {
		<-gate
		return []models.Place{{Name: ptr(q.Query)}}
	}}
	m := newTestManager(t, r, Options{MaxSessions: 1})

	var ids []string
	for _, q := range []string{"a", "b", "c"} {
		id, err := m.Submit(request(q))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	waitFor(t, "one running, two queued", func() bool {
		return m.Stats() == models.SessionStats{MaxSessions: 1, ActiveSessions: 1, QueuedJobs: 2}
	})
	if got := r.Calls(); got != 1 {
		t.Errorf("runner calls = %d, want 1", got)
	}

	close(gate)
	for _, id := range ids {
		waitStatus(t, m, id, models.JobCompleted)
	}
	waitFor(t, "sessions released", func() bool {
		return m.Stats().ActiveSessions == 0
	})
}

func TestSyncScrapeUsesCache(t *testing.T) {
	c := cache.New(10, time.Hour)
	t.Cleanup(c.Close)
	r := &fakeRunner{}
	m := newTestManager(t, r, Options{Cache: c})

	places, status, err := m.Scrape(context.Background(), request("Pizza"))
	if err != nil {
		t.Fatal(err)
	}
	if status != "miss" || len(places) != 1 {
		t.Errorf("first call = %v %q", places, status)
	}

	places, status, err = m.Scrape(context.Background(), request("  pizza "))
	if err != nil {
		t.Fatal(err)
	}
	if status != "hit" || len(places) != 1 {
		t.Errorf("second call = %v %q", places, status)
	}
	if r.Calls() != 1 {
		t.Errorf("runner calls = %d, want 1", r.Calls())
	}

	fresh := request("pizza")
	fresh.NoCache = true
	if _, status, _ = m.Scrape(context.Background(), fresh); status != "miss" {
		t.Errorf("no_cache call status = %q, want miss", status)
	}
	if r.Calls() != 2 {
		t.Errorf("runner calls = %d, want 2", r.Calls())
	}
}

func TestSyncScrapeDoesNotCachePartialResults(t *testing.T) {
	c := cache.New(10, time.Hour)
	t.Cleanup(c.Close)
	r := &fakeRunner{fn: func(ctx context.Context, q scraper.Query) []models.Place {
		<-ctx.Done()
		return []models.Place{{Name: ptr("first of twenty")}}
	}}
	m := newTestManager(t, r, Options{Cache: c})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	places, status, err := m.Scrape(ctx, request("museums"))
	if err != nil {
		t.Fatal(err)
	}
	if status != "miss" || len(places) != 1 {
		t.Errorf("canceled call = %d places, %q", len(places), status)
	}
	if c.Len() != 0 {
		t.Fatalf("cache holds %d entries after a canceled scrape, want 0", c.Len())
	}

	r.fn = nil
	places, status, _ = m.Scrape(context.Background(), request("museums"))
	if status != "miss" || r.Calls() != 2 {
		t.Errorf("next call = %q after %d runner calls, want a fresh miss", status, r.Calls())
	}
	if diff := cmp.Diff([]models.Place{{Name: ptr("museums")}}, places); diff != "" {
		t.Errorf("places mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncScrapeDoesNotCacheTimedOutRun(t *testing.T) {
	c := cache.New(10, time.Hour)
	t.Cleanup(c.Close)
	r := &fakeRunner{cutShort: models.NewScrapeError(models.ErrCodeTimeout, "visiting places", context.DeadlineExceeded)}
	m := newTestManager(t, r, Options{Cache: c})

	if _, status, err := m.Scrape(context.Background(), request("zoo")); err != nil || status != "miss" {
		t.Fatalf("Scrape = %q, %v", status, err)
	}
	if c.Len() != 0 {
		t.Errorf("cache holds %d entries after a timed-out scrape, want 0", c.Len())
	}
}

func TestJobDoesNotCacheTimedOutRun(t *testing.T) {
	c := cache.New(10, time.Hour)
	t.Cleanup(c.Close)
	r := &fakeRunner{cutShort: models.NewScrapeError(models.ErrCodeTimeout, "visiting places", context.DeadlineExceeded)}
	m := newTestManager(t, r, Options{Cache: c})

	id, err := m.Submit(request("aquarium"))
	if err != nil {
		t.Fatal(err)
	}
	got := waitStatus(t, m, id, models.JobCompleted)
	if got.Count != 1 {
		t.Errorf("Count = %d, want the partial place", got.Count)
	}
	if c.Len() != 0 {
		t.Errorf("cache holds %d entries after a timed-out job, want 0", c.Len())
	}
}

func TestSyncScrapeWithoutCache(t *testing.T) {
	m := newTestManager(t, &fakeRunner{}, Options{})
	_, status, err := m.Scrape(context.Background(), request("x"))
	if err != nil || status != "" {
		t.Errorf("Scrape = %q, %v", status, err)
	}
}

func TestSyncScrapeCanceledWhileWaiting(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	r := &fakeRunner{fn: func(context.Context, scraper.Query) []models.Place {
		<-gate
		return nil
	}}
	m := newTestManager(t, r, Options{MaxSessions: 1})
	if _, err := m.Submit(request("busy")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "session taken", func() bool { return m.Stats().ActiveSessions == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := m.Scrape(ctx, request("other")); err == nil {
		t.Error("Scrape succeeded while every session was busy")
	}
}

func TestBatch(t *testing.T) {
	r := &fakeRunner{fn: func(_ context.Context, q scraper.Query) []models.Place {
		if q.Query == "boom" {
			panic("adapter exploded")
		}
		return []models.Place{{Name: ptr(q.Query)}}
	}}
	n := &fakeNotifier{}
	m := newTestManager(t, r, Options{Notifier: n})

	breq := models.BatchRequest{
		Queries:    []string{"ok", "boom"},
		WebhookURL: "https://hooks.example.com/batch",
	}
	resp, err := m.SubmitBatch(breq.Requests(), breq.WebhookURL)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.JobIDs) != 2 {
		t.Fatalf("batch response = %+v", resp)
	}

	okJob := waitStatus(t, m, resp.JobIDs[0], models.JobCompleted)
	if okJob.BatchID != resp.BatchID {
		t.Errorf("batch id = %q, want %q", okJob.BatchID, resp.BatchID)
	}
	failed := waitStatus(t, m, resp.JobIDs[1], models.JobFailed)
	if failed.Error == nil || failed.Error.Code != models.ErrCodeInternal {
		t.Errorf("failed job error = %+v", failed.Error)
	}
	if failed.Places == nil || len(failed.Places) != 0 {
		t.Errorf("failed job places = %#v, want empty list", failed.Places)
	}

	status, ok := m.GetBatch(resp.BatchID)
	if !ok {
		t.Fatal("batch not found")
	}
	if status.Status != models.JobCompleted || status.Completed != 1 || status.Failed != 1 || len(status.Jobs) != 2 {
		t.Errorf("batch status = %+v", status)
	}

	waitFor(t, "batch webhook", func() bool { return len(n.Sent()) >= 1 })
	time.Sleep(20 * time.Millisecond)
	got := n.Sent()
	if len(got) != 1 {
		t.Fatalf("webhooks sent = %d, want only the batch event", len(got))
	}
	if got[0].event.Type != webhook.EventBatchCompleted || got[0].event.JobID != resp.BatchID {
		t.Errorf("batch event = %+v", got[0].event)
	}
}

func TestBatchAllFailed(t *testing.T) {
	r := &fakeRunner{fn: func(context.Context, scraper.Query) []models.Place { panic("no") }}
	m := newTestManager(t, r, Options{})

	resp, err := m.SubmitBatch([]models.ScrapeRequest{request("a"), request("b")}, "")
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "batch failed", func() bool {
		s, _ := m.GetBatch(resp.BatchID)
		return s.Status == models.JobFailed
	})
}

func TestCloseFailsRunningJobs(t *testing.T) {
	r := &fakeRunner{fn: func(ctx context.Context, _ scraper.Query) []models.Place {
		<-ctx.Done()
		return []models.Place{{Name: ptr("partial")}}
	}}
	m := NewManager(r, Options{MaxSessions: 1, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	running, _ := m.Submit(request("a"))
	queued, _ := m.Submit(request("b"))
	waitStatus(t, m, running, models.JobProcessing)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, _ := m.Get(running)
	if got.Status != models.JobFailed || got.Error == nil || got.Error.Code != models.ErrCodeTimeout {
		t.Errorf("running job = %+v", got)
	}
	if diff := cmp.Diff([]models.Place{{Name: ptr("partial")}}, got.Places); diff != "" {
		t.Errorf("partial places (-want +got):\n%s", diff)
	}
	if q, _ := m.Get(queued); q.Status != models.JobFailed {
		t.Errorf("queued job status = %s, want failed", q.Status)
	}

	if _, err := m.Submit(request("c")); err != ErrClosed {
		t.Errorf("Submit after Close = %v, want ErrClosed", err)
	}
	if _, err := m.SubmitBatch([]models.ScrapeRequest{request("c")}, ""); err != ErrClosed {
		t.Errorf("SubmitBatch after Close = %v, want ErrClosed", err)
	}
}

func TestSweep(t *testing.T) {
	m := newTestManager(t, &fakeRunner{}, Options{Retention: time.Hour})
	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	m.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	resp, err := m.SubmitBatch([]models.ScrapeRequest{request("a")}, "")
	if err != nil {
		t.Fatal(err)
	}
	id := resp.JobIDs[0]
	waitStatus(t, m, id, models.JobCompleted)

	m.sweep()
	if _, ok := m.Get(id); !ok {
		t.Fatal("fresh job swept")
	}

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()
	m.sweep()
	if _, ok := m.Get(id); ok {
		t.Error("expired job kept")
	}
	if _, ok := m.GetBatch(resp.BatchID); ok {
		t.Error("empty batch kept")
	}
}

func TestToQueryDefaultsHeadless(t *testing.T) {
	q := toQuery(models.ScrapeRequest{Query: "x"}, nil)
	if !q.Headless {
		t.Error("nil Headless should mean headless")
	}
}

func ptr[T any](v T) *T { return &v }
