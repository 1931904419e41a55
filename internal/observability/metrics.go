package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the narrative service.
// Metrics are organized by subsystem: narratives, pipeline stages, the stage
// cache, background jobs, and LLM operations. All counters and histograms are
// registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// NarrativesGenerated counts narratives generated successfully, labeled by style and language.
	NarrativesGenerated *prometheus.CounterVec

	// NarrativesFailed counts narrative variants that ended in failure, labeled by style and language.
	NarrativesFailed *prometheus.CounterVec

	// NarrativesDeleted counts narratives removed on regeneration or deletion.
	NarrativesDeleted prometheus.Counter

	// NarrativeDuration observes the end-to-end duration of one narrative variant in seconds.
	NarrativeDuration prometheus.Histogram

	// StageDuration observes pipeline stage duration in seconds, labeled by stage.
	StageDuration *prometheus.HistogramVec

	// StageFailures counts pipeline stage failures, labeled by stage.
	StageFailures *prometheus.CounterVec

	// CacheHits counts stage cache hits, labeled by stage.
	CacheHits *prometheus.CounterVec

	// CacheMisses counts stage cache misses, labeled by stage.
	CacheMisses *prometheus.CounterVec

	// JobsSubmitted counts jobs submitted to the queue, labeled by job type.
	JobsSubmitted *prometheus.CounterVec

	// JobsCompleted counts jobs reaching a terminal state, labeled by job type and status.
	JobsCompleted *prometheus.CounterVec

	// JobDuration observes job duration from start to terminal state in seconds, labeled by job type.
	JobDuration *prometheus.HistogramVec

	// JobsActive gauges the number of currently running jobs.
	JobsActive prometheus.Gauge

	// LLMRequestsTotal counts LLM API requests, labeled by purpose and provider.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by purpose and provider.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by purpose and provider.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensEstimated counts estimated tokens consumed, labeled by purpose, provider, and token type.
	LLMTokensEstimated *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Narratives
		NarrativesGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narratives_generated_total",
			Help:      "Total number of narratives generated successfully",
		}, []string{"style", "language"}),
		NarrativesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narratives_failed_total",
			Help:      "Total number of narrative variants that failed",
		}, []string{"style", "language"}),
		NarrativesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narratives_deleted_total",
			Help:      "Total number of narratives deleted",
		}),
		NarrativeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "narrative_duration_seconds",
			Help:      "Duration of one narrative variant end to end in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		// Pipeline stages
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Total number of pipeline stage failures",
		}, []string{"stage"}),

		// Stage cache
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_cache_hits_total",
			Help:      "Total number of stage cache hits",
		}, []string{"stage"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_cache_misses_total",
			Help:      "Total number of stage cache misses",
		}, []string{"stage"}),

		// Jobs
		JobsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs submitted",
		}, []string{"type"}),
		JobsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs reaching a terminal state",
		}, []string{"type", "status"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of jobs from start to terminal state in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800},
		}, []string{"type"}),
		JobsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Number of currently running jobs",
		}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by purpose",
		}, []string{"purpose", "provider"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by purpose",
		}, []string{"purpose", "provider"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"purpose", "provider"}),
		LLMTokensEstimated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_estimated_total",
			Help:      "Estimated number of tokens used by LLM operations",
		}, []string{"purpose", "provider", "token_type"}),
	}
}

// RecordNarrativeGenerated records a successfully generated narrative variant.
func (m *Metrics) RecordNarrativeGenerated(style, language string, durationSeconds float64) {
	m.NarrativesGenerated.WithLabelValues(style, language).Inc()
	m.NarrativeDuration.Observe(durationSeconds)
}

// RecordNarrativeFailed records a failed narrative variant.
func (m *Metrics) RecordNarrativeFailed(style, language string) {
	m.NarrativesFailed.WithLabelValues(style, language).Inc()
}

// RecordNarrativesDeleted records removed narratives.
func (m *Metrics) RecordNarrativesDeleted(count int) {
	m.NarrativesDeleted.Add(float64(count))
}

// RecordStageDuration records a completed pipeline stage.
func (m *Metrics) RecordStageDuration(stage string, durationSeconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordStageFailure records a pipeline stage failure.
func (m *Metrics) RecordStageFailure(stage string) {
	m.StageFailures.WithLabelValues(stage).Inc()
}

// RecordCacheHit records a stage cache hit.
func (m *Metrics) RecordCacheHit(stage string) {
	m.CacheHits.WithLabelValues(stage).Inc()
}

// RecordCacheMiss records a stage cache miss.
func (m *Metrics) RecordCacheMiss(stage string) {
	m.CacheMisses.WithLabelValues(stage).Inc()
}

// RecordJobSubmitted records a job submitted to the queue.
func (m *Metrics) RecordJobSubmitted(jobType string) {
	m.JobsSubmitted.WithLabelValues(jobType).Inc()
}

// RecordJobStarted records a job entering the running state.
func (m *Metrics) RecordJobStarted() {
	m.JobsActive.Inc()
}

// RecordJobFinished records a job reaching a terminal state after running.
func (m *Metrics) RecordJobFinished(jobType, status string, durationSeconds float64) {
	m.JobsActive.Dec()
	m.JobsCompleted.WithLabelValues(jobType, status).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(durationSeconds)
}

// RecordJobCancelledPending records a job cancelled before it started running.
func (m *Metrics) RecordJobCancelledPending(jobType string) {
	m.JobsCompleted.WithLabelValues(jobType, "cancelled").Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(purpose, provider string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(purpose, provider).Inc()
	m.LLMRequestDuration.WithLabelValues(purpose, provider).Observe(durationSeconds)
	m.LLMTokensEstimated.WithLabelValues(purpose, provider, "input").Add(float64(inputTokens))
	m.LLMTokensEstimated.WithLabelValues(purpose, provider, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(purpose, provider string) {
	m.LLMRequestsFailed.WithLabelValues(purpose, provider).Inc()
}
