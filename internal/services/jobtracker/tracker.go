// Package jobtracker records the progress of the dividend refresh job in a
// persisted status file and publishes every transition to subscribers.
package jobtracker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/models"
	"github.com/bobmcallan/dividendos/internal/storage/filestore"
	"github.com/google/uuid"
)

const statusKey = "update-status"

// InterruptedMessage is recorded on jobs found running at startup.
const InterruptedMessage = "interrupted by restart"

// Publisher receives job events. JobWSHub implements it.
type Publisher interface {
	Broadcast(event models.JobEvent)
}

// Tracker is a read-modify-write state machine over one status file.
// TryStart is the only operation that arbitrates between callers; the
// rest record whatever the job owner reports.
type Tracker struct {
	files     *filestore.Store
	logger    *common.Logger
	publisher Publisher
	now       func() time.Time

	mu      sync.Mutex
	claimed bool
}

// NewTracker returns a tracker persisting into files. publisher may be nil.
func NewTracker(logger *common.Logger, files *filestore.Store, publisher Publisher) *Tracker {
	return &Tracker{
		files:     files,
		logger:    logger,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Read returns the persisted status, or an idle record when none exists.
func (t *Tracker) Read() models.JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.read()
}

func (t *Tracker) read() models.JobStatus {
	var status models.JobStatus
	if err := t.files.ReadJSON(statusKey, &status); err != nil {
		if !errors.Is(err, filestore.ErrNotFound) {
			t.logger.Warn().Err(err).Msg("Job status unreadable, reporting idle")
		}
		return models.JobStatus{}
	}
	return status
}

// TryStart claims the job slot. It returns false when a job is already
// running in this process. On success the status is persisted as running
// with a new job ID and no total yet.
func (t *Tracker) TryStart() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.claimed {
		return false
	}
	t.claimed = true

	now := t.now()
	status := models.JobStatus{
		JobID:     uuid.NewString(),
		Running:   true,
		StartedAt: &now,
	}
	if err := t.write(models.JobEventStarted, status); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to persist claimed job")
	}
	t.logger.Info().Str("job_id", status.JobID).Msg("Dividend refresh job claimed")
	return true
}

// Start resets the record to a running job over total items.
func (t *Tracker) Start(total int) error {
	return t.update(models.JobEventStarted, func(s *models.JobStatus) {
		now := t.now()
		if s.JobID == "" || !s.Running {
			s.JobID = uuid.NewString()
		}
		s.Running = true
		s.TotalItems = total
		s.ProcessedItems = 0
		s.CurrentItem = ""
		s.Error = nil
		s.CompletedAt = nil
		s.StartedAt = &now
	})
}

// ReportProgress records done items and the label being worked on.
func (t *Tracker) ReportProgress(done int, label string) error {
	return t.update(models.JobEventProgress, func(s *models.JobStatus) {
		s.ProcessedItems = done
		s.CurrentItem = label
	})
}

// Complete marks the job finished. Counters keep their last values.
func (t *Tracker) Complete() error {
	err := t.update(models.JobEventCompleted, func(s *models.JobStatus) {
		now := t.now()
		s.Running = false
		s.CompletedAt = &now
	})
	t.release()
	return err
}

// Fail marks the job finished with an error message.
func (t *Tracker) Fail(message string) error {
	err := t.update(models.JobEventFailed, func(s *models.JobStatus) {
		now := t.now()
		msg := message
		s.Running = false
		s.Error = &msg
		s.CompletedAt = &now
	})
	t.release()
	return err
}

// Recover rewrites a status left running by a previous process as failed.
// It must run before any job is started. Returns true when a record was
// recovered.
func (t *Tracker) Recover() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := t.read()
	if !status.Running || t.claimed {
		return false
	}

	now := t.now()
	msg := InterruptedMessage
	status.Running = false
	status.Error = &msg
	status.CompletedAt = &now
	status.Recompute()
	if err := t.files.WriteJSON(statusKey, status); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to recover orphaned job status")
		return false
	}

	t.logger.Warn().
		Str("job_id", status.JobID).
		Int("processed", status.ProcessedItems).
		Int("total", status.TotalItems).
		Msg("Orphaned running job marked as failed")
	return true
}

func (t *Tracker) release() {
	t.mu.Lock()
	t.claimed = false
	t.mu.Unlock()
}

func (t *Tracker) update(eventType string, fn func(*models.JobStatus)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := t.read()
	fn(&status)
	return t.write(eventType, status)
}

// write persists status with the percentage recomputed, then publishes it.
func (t *Tracker) write(eventType string, status models.JobStatus) error {
	status.Recompute()
	if err := t.files.WriteJSON(statusKey, status); err != nil {
		return fmt.Errorf("failed to persist job status: %w", err)
	}
	if t.publisher != nil {
		t.publisher.Broadcast(models.JobEvent{
			Type:      eventType,
			Status:    status,
			Timestamp: t.now(),
		})
	}
	return nil
}
