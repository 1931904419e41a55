// Package observability provides logging, metrics, and request-scoped context
// helpers for the narrative service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for narratives, pipeline stages, jobs, and LLM calls
//   - Context helpers for propagating request and job identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("paper_id", paperID).Msg("narrative generation started")
//
// Add pipeline context to a logger:
//
//	logger = observability.WithStageContext(logger, "recomposition", "longform", "en")
//
// # Metrics
//
// Initialize metrics once at startup:
//
//	metrics := observability.NewMetrics("potero")
//
// Record metrics:
//
//	metrics.RecordNarrativeGenerated("longform", "en", elapsed.Seconds())
//	metrics.RecordStageDuration("structural_understanding", elapsed.Seconds())
//
// # Context Helpers
//
// Store and retrieve request-scoped identifiers:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithJobID(ctx, jobID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	jobID := observability.JobIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - job_id: background job identifier
//   - paper_id: paper identifier
//   - stage: pipeline stage name
//   - style, language: narrative variant identity
package observability
