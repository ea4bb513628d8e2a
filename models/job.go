package models

import "time"

// JobStatus is the lifecycle state of an async scrape job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the job will not change state again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Progress counts visited links against the number collected.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// AsyncResponse is the immediate response for POST /api/v1/scrape/async.
type AsyncResponse struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

// JobResponse is the response for GET /api/v1/jobs/:id and the webhook body.
type JobResponse struct {
	ID          string       `json:"job_id"`
	BatchID     string       `json:"batch_id,omitempty"`
	Status      JobStatus    `json:"status"`
	Query       string       `json:"query"`
	Progress    Progress     `json:"progress"`
	Count       int          `json:"count"`
	Places      []Place      `json:"places,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// BatchResponse is the immediate response for POST /api/v1/scrape/batch.
type BatchResponse struct {
	BatchID string   `json:"batch_id"`
	JobIDs  []string `json:"job_ids"`
	Total   int      `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batches/:id.
type BatchStatusResponse struct {
	ID        string        `json:"batch_id"`
	Status    JobStatus     `json:"status"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Jobs      []JobResponse `json:"jobs"`
}
