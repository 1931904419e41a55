// Package usagelog provides an in-memory, bounded log of LLM calls.
//
// Every pipeline stage records its gateway calls here, successes and failures
// alike. The log is a single shared most-recent-first list capped at a maximum
// entry count; once the cap is exceeded the oldest entries are dropped. All
// operations are safe for concurrent use by parallel stages.
package usagelog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEntries is the capacity used when the configured maximum is zero.
const DefaultMaxEntries = 200

// Entry is one immutable record of an LLM call.
type Entry struct {
	ID                    uuid.UUID  `json:"id"`
	Timestamp             time.Time  `json:"timestamp"`
	Provider              string     `json:"provider"`
	Purpose               string     `json:"purpose"`
	Prompt                string     `json:"prompt"`
	Response              string     `json:"response,omitempty"`
	EstimatedInputTokens  int        `json:"estimated_input_tokens"`
	EstimatedOutputTokens int        `json:"estimated_output_tokens"`
	Duration              time.Duration `json:"duration"`
	Success               bool       `json:"success"`
	Error                 string     `json:"error,omitempty"`
	PaperID               *uuid.UUID `json:"paper_id,omitempty"`
	PaperTitle            string     `json:"paper_title,omitempty"`
}

// Record carries the inputs of one Log call.
type Record struct {
	Provider   string
	Purpose    string
	Prompt     string
	Response   string
	Duration   time.Duration
	Success    bool
	Error      string
	PaperID    *uuid.UUID
	PaperTitle string
}

// Stats aggregates the current log contents.
type Stats struct {
	TotalCalls            int            `json:"total_calls"`
	SuccessfulCalls       int            `json:"successful_calls"`
	FailedCalls           int            `json:"failed_calls"`
	EstimatedInputTokens  int            `json:"estimated_input_tokens"`
	EstimatedOutputTokens int            `json:"estimated_output_tokens"`
	AverageDuration       time.Duration  `json:"average_duration"`
	CallsByPurpose        map[string]int `json:"calls_by_purpose"`
	CallsByProvider       map[string]int `json:"calls_by_provider"`
}

// Logger is the bounded most-recent-first call log.
type Logger struct {
	mu         sync.Mutex
	entries    []Entry
	maxEntries int
}

// New creates a Logger capped at maxEntries (DefaultMaxEntries when <= 0).
func New(maxEntries int) *Logger {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Logger{
		maxEntries: maxEntries,
	}
}

// EstimateTokens is the deliberately crude token heuristic used for usage
// accounting: ceil(len/3) with a floor of 1. It is not a tokenizer.
func EstimateTokens(text string) int {
	if text == "" {
		return 1
	}
	n := (len(text) + 2) / 3
	if n < 1 {
		n = 1
	}
	return n
}

// Log appends a record to the front of the list, evicting the oldest entries
// once the capacity is exceeded, and returns the stored entry.
func (l *Logger) Log(rec Record) Entry {
	entry := Entry{
		ID:                    uuid.New(),
		Timestamp:             time.Now(),
		Provider:              rec.Provider,
		Purpose:               rec.Purpose,
		Prompt:                rec.Prompt,
		Response:              rec.Response,
		EstimatedInputTokens:  EstimateTokens(rec.Prompt),
		EstimatedOutputTokens: 0,
		Duration:              rec.Duration,
		Success:               rec.Success,
		Error:                 rec.Error,
		PaperID:               rec.PaperID,
		PaperTitle:            rec.PaperTitle,
	}
	if rec.Response != "" {
		entry.EstimatedOutputTokens = EstimateTokens(rec.Response)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]Entry{entry}, l.entries...)
	if len(l.entries) > l.maxEntries {
		l.entries = l.entries[:l.maxEntries]
	}

	return entry
}

// Logs returns up to limit entries, most recent first. A non-positive limit
// returns everything.
func (l *Logger) Logs(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	copy(out, l.entries[:n])
	return out
}

// LogsByPurpose returns up to limit entries with the given purpose tag,
// most recent first.
func (l *Logger) LogsByPurpose(purpose string, limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for _, e := range l.entries {
		if e.Purpose != purpose {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Stats returns aggregate statistics over the retained entries.
func (l *Logger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{
		CallsByPurpose:  make(map[string]int),
		CallsByProvider: make(map[string]int),
	}

	var totalDuration time.Duration
	for _, e := range l.entries {
		stats.TotalCalls++
		if e.Success {
			stats.SuccessfulCalls++
		} else {
			stats.FailedCalls++
		}
		stats.EstimatedInputTokens += e.EstimatedInputTokens
		stats.EstimatedOutputTokens += e.EstimatedOutputTokens
		totalDuration += e.Duration
		stats.CallsByPurpose[e.Purpose]++
		stats.CallsByProvider[e.Provider]++
	}

	if stats.TotalCalls > 0 {
		stats.AverageDuration = totalDuration / time.Duration(stats.TotalCalls)
	}

	return stats
}

// Clear discards all retained entries.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
