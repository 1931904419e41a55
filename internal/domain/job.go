package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job represents one background task tracked by the job queue. Jobs are held
// in memory only; terminal jobs are garbage-collected after a retention window.
type Job struct {
	ID          uuid.UUID
	Type        JobType
	Title       string
	Description string
	Status      JobStatus
	Progress    int
	Message     string
	PaperID     *uuid.UUID
	Result      string
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewJob creates a pending job with a fresh identifier.
func NewJob(jobType JobType, title, description string, paperID *uuid.UUID) *Job {
	return &Job{
		ID:          uuid.New(),
		Type:        jobType,
		Title:       title,
		Description: description,
		Status:      JobStatusPending,
		PaperID:     paperID,
		CreatedAt:   time.Now(),
	}
}

// Clone returns a copy of the job safe to hand out to readers while the
// original keeps being mutated under the queue's lock.
func (j *Job) Clone() *Job {
	c := *j
	if j.PaperID != nil {
		id := *j.PaperID
		c.PaperID = &id
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Duration returns the job's run time, or 0 if it never started.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	return end.Sub(*j.StartedAt)
}
