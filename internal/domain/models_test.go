package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusPending, false},
		{JobStatusRunning, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}

func TestJobStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"pending to running", JobStatusPending, JobStatusRunning, true},
		{"pending to cancelled", JobStatusPending, JobStatusCancelled, true},
		{"pending to completed", JobStatusPending, JobStatusCompleted, false},
		{"pending to failed", JobStatusPending, JobStatusFailed, false},
		{"running to completed", JobStatusRunning, JobStatusCompleted, true},
		{"running to failed", JobStatusRunning, JobStatusFailed, true},
		{"running to cancelled", JobStatusRunning, JobStatusCancelled, true},
		{"running to pending", JobStatusRunning, JobStatusPending, false},
		{"completed is final", JobStatusCompleted, JobStatusRunning, false},
		{"failed is final", JobStatusFailed, JobStatusCancelled, false},
		{"cancelled is final", JobStatusCancelled, JobStatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestNarrativeStyle_IsValid(t *testing.T) {
	t.Parallel()

	for _, s := range AvailableStyles() {
		assert.True(t, s.IsValid(), "style %q should be valid", s)
	}
	assert.False(t, NarrativeStyle("haiku").IsValid())
	assert.False(t, NarrativeStyle("").IsValid())
}

func TestNarrativeLanguage_IsValid(t *testing.T) {
	t.Parallel()

	for _, l := range AvailableLanguages() {
		assert.True(t, l.IsValid(), "language %q should be valid", l)
	}
	assert.False(t, NarrativeLanguage("fr").IsValid())
}

func TestNarrativeGenerationRequest_Validate(t *testing.T) {
	t.Parallel()

	valid := NarrativeGenerationRequest{
		PaperID:   uuid.New(),
		Styles:    []NarrativeStyle{StyleLongform},
		Languages: []NarrativeLanguage{LanguageEnglish},
	}

	tests := []struct {
		name    string
		mutate  func(r *NarrativeGenerationRequest)
		wantErr bool
	}{
		{"valid request", func(r *NarrativeGenerationRequest) {}, false},
		{"missing paper id", func(r *NarrativeGenerationRequest) { r.PaperID = uuid.Nil }, true},
		{"no styles", func(r *NarrativeGenerationRequest) { r.Styles = nil }, true},
		{"no languages", func(r *NarrativeGenerationRequest) { r.Languages = nil }, true},
		{"bad style", func(r *NarrativeGenerationRequest) { r.Styles = []NarrativeStyle{"sonnet"} }, true},
		{"bad language", func(r *NarrativeGenerationRequest) { r.Languages = []NarrativeLanguage{"xx"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNarrativeGenerationRequest_TotalNarratives(t *testing.T) {
	t.Parallel()

	req := NarrativeGenerationRequest{
		Styles:    []NarrativeStyle{StyleLongform, StyleCasual},
		Languages: []NarrativeLanguage{LanguageEnglish, LanguageKorean},
	}
	assert.Equal(t, 4, req.TotalNarratives())
}

func TestJob_Clone(t *testing.T) {
	t.Parallel()

	paperID := uuid.New()
	job := NewJob(JobTypeNarrativeGeneration, "Generate narratives", "desc", &paperID)
	started := time.Now()
	job.StartedAt = &started

	clone := job.Clone()
	require.NotSame(t, job, clone)
	assert.Equal(t, job.ID, clone.ID)
	require.NotNil(t, clone.PaperID)
	assert.Equal(t, paperID, *clone.PaperID)

	// Mutating the clone's pointers must not affect the original.
	*clone.StartedAt = started.Add(time.Hour)
	assert.Equal(t, started, *job.StartedAt)
}

func TestNewJob(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeAutoTagging, "Auto-tag paper", "runs the tagger", nil)
	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Nil(t, job.PaperID)
	assert.Zero(t, job.Progress)
	assert.WithinDuration(t, time.Now(), job.CreatedAt, time.Second)
}

func TestStageError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := NewStageError("structural_understanding", cause)
	assert.True(t, errors.Is(err, ErrStageFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "structural_understanding")
}

func TestNotFoundError(t *testing.T) {
	t.Parallel()

	err := NewNotFoundError("paper", "123")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "paper not found: 123")
}
