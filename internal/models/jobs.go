package models

import (
	"math"
	"time"
)

// JobStatus is the persisted record of the refresh job.
type JobStatus struct {
	JobID          string     `json:"jobId,omitempty"`
	Running        bool       `json:"updating"`
	StartedAt      *time.Time `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
	TotalItems     int        `json:"totalCompanies"`
	ProcessedItems int        `json:"processedCompanies"`
	CurrentItem    string     `json:"currentCompany"`
	Error          *string    `json:"error"`
	ProgressPct    int        `json:"progress"`
}

// State returns the lifecycle state derived from the record.
func (s JobStatus) State() string {
	switch {
	case s.Running:
		return JobStateRunning
	case s.Error != nil:
		return JobStateFailed
	case s.CompletedAt != nil:
		return JobStateCompleted
	default:
		return JobStateIdle
	}
}

// ErrorMessage returns the failure message, or "" when there is none.
func (s JobStatus) ErrorMessage() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

// Recompute derives ProgressPct from the counters.
func (s *JobStatus) Recompute() {
	s.ProgressPct = ProgressPercent(s.ProcessedItems, s.TotalItems)
}

// ProgressPercent returns round(done/total*100), or 0 when total is 0.
func ProgressPercent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

// Job lifecycle states
const (
	JobStateIdle      = "idle"
	JobStateRunning   = "running"
	JobStateCompleted = "completed"
	JobStateFailed    = "failed"
)

// Job event types pushed to websocket subscribers
const (
	JobEventStarted   = "job_started"
	JobEventProgress  = "job_progress"
	JobEventCompleted = "job_completed"
	JobEventFailed    = "job_failed"
)

// JobEvent is broadcast on every job status transition.
type JobEvent struct {
	Type      string    `json:"type"`
	Status    JobStatus `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
