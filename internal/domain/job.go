package domain

import "time"

// JobStatus enumerates ledger lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Terminal reports whether no further transition is valid from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// CanTransition reports whether moving from s to next respects the monotonic
// PENDING -> RUNNING -> {SUCCEEDED|FAILED} lifecycle.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusSucceeded || next == JobStatusFailed
	default:
		return false
	}
}

// Well-known metadata keys written by the dispatcher and poller.
const (
	MetaResultURLs   = "result_urls"
	MetaResultCount  = "result_count"
	MetaVendorTaskID = "vendor_task_id"
	MetaModel        = "model"
	MetaAspectRatio  = "aspect_ratio"
	MetaFailedItems  = "failed_items"
)

// Job is the persisted state machine for one unit of user-visible generation
// work. It is created PENDING by the producer and mutated only by the worker
// owning its task message.
type Job struct {
	ID           string
	UserID       string
	ProjectID    string
	Kind         TaskKind
	Status       JobStatus
	DoneItems    int
	TotalItems   int
	ResultURL    string
	Metadata     map[string]any
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Progress derives the completion percentage from the item counters.
func (j *Job) Progress() int {
	if j == nil || j.TotalItems <= 0 {
		return 0
	}
	p := j.DoneItems * 100 / j.TotalItems
	if p > 100 {
		p = 100
	}
	return p
}
