// Package domain provides domain models and business logic for the Potero narrative core.
package domain

// NarrativeStyle represents the rendering style of a generated narrative.
// These values must match the database column narratives.style.
type NarrativeStyle string

const (
	StyleLongform     NarrativeStyle = "longform"
	StyleJournalistic NarrativeStyle = "journalistic"
	StyleCasual       NarrativeStyle = "casual"
)

// IsValid returns true if the style is one of the supported values.
func (s NarrativeStyle) IsValid() bool {
	switch s {
	case StyleLongform, StyleJournalistic, StyleCasual:
		return true
	default:
		return false
	}
}

// NarrativeLanguage represents the output language of a generated narrative.
// These values must match the database column narratives.language.
type NarrativeLanguage string

const (
	LanguageEnglish NarrativeLanguage = "en"
	LanguageKorean  NarrativeLanguage = "ko"
)

// IsValid returns true if the language is one of the supported values.
func (l NarrativeLanguage) IsValid() bool {
	switch l {
	case LanguageEnglish, LanguageKorean:
		return true
	default:
		return false
	}
}

// AvailableStyles returns all supported narrative styles in display order.
func AvailableStyles() []NarrativeStyle {
	return []NarrativeStyle{StyleLongform, StyleJournalistic, StyleCasual}
}

// AvailableLanguages returns all supported narrative languages in display order.
func AvailableLanguages() []NarrativeLanguage {
	return []NarrativeLanguage{LanguageEnglish, LanguageKorean}
}

// JobType represents the kind of background task a job runs.
type JobType string

const (
	JobTypeNarrativeGeneration JobType = "narrative_generation"
	JobTypePaperAnalysis       JobType = "paper_analysis"
	JobTypeAutoTagging         JobType = "auto_tagging"
	JobTypeMetadataRefresh     JobType = "metadata_refresh"
)

// JobStatus represents the lifecycle states of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the forward-only job state machine permits
// a transition from s to next. Terminal states admit no transitions; a pending
// job may be cancelled without ever running.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusCancelled
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusCancelled
	default:
		return false
	}
}
