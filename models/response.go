package models

// ScrapeResponse is the response for /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether the scrape ran. A scrape that found
	// nothing is still successful with Count == 0.
	Success bool   `json:"success"`
	Query   string `json:"query"`
	Count   int    `json:"count"`

	// Places is always a list, never null.
	Places []Place `json:"places"`

	// CacheStatus is "hit" or "miss", empty when caching is disabled.
	CacheStatus string `json:"cache_status,omitempty"`

	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent serving a request.
type TimingInfo struct {
	TotalMs int64 `json:"total_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports browser session usage across running jobs and
// synchronous requests.
type SessionStats struct {
	MaxSessions    int `json:"max_sessions"`
	ActiveSessions int `json:"active_sessions"`
	QueuedJobs     int `json:"queued_jobs"`
}
