package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/poteroapp/potero/internal/domain"
	"github.com/poteroapp/potero/internal/jobs"
	"github.com/poteroapp/potero/internal/llm"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
	defaultLogLimit    = 50
	maxLogLimit        = 500
)

var validate = validator.New()

// generateRequest is the JSON request body for starting narrative generation.
type generateRequest struct {
	Styles          []string `json:"styles,omitempty" validate:"omitempty,dive,oneof=longform journalistic casual"`
	Languages       []string `json:"languages,omitempty" validate:"omitempty,dive,oneof=en ko"`
	Regenerate      bool     `json:"regenerate,omitempty"`
	ExplainConcepts *bool    `json:"explain_concepts,omitempty"`
}

// generateNarratives handles POST /papers/{paperID}/narratives.
// Generation runs asynchronously; the response carries the job ID.
func (s *Server) generateNarratives(w http.ResponseWriter, r *http.Request) {
	paperID, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	var req generateRequest
	if r.ContentLength != 0 {
		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON request body")
				return
			}
		}
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	genReq := s.buildGenerationRequest(paperID, req)
	s.submitGeneration(w, paperID, genReq,
		fmt.Sprintf("Generate narratives (%d variants)", genReq.TotalNarratives()))
}

// regenerateNarratives handles POST /papers/{paperID}/narratives/regenerate.
// It discards existing narratives and rebuilds every style and language.
func (s *Server) regenerateNarratives(w http.ResponseWriter, r *http.Request) {
	paperID, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	genReq := domain.NarrativeGenerationRequest{
		PaperID:         paperID,
		Styles:          domain.AvailableStyles(),
		Languages:       domain.AvailableLanguages(),
		Regenerate:      true,
		ExplainConcepts: true,
	}
	s.submitGeneration(w, paperID, genReq, "Regenerate all narratives")
}

// submitGeneration queues one narrative generation job and writes 202.
func (s *Server) submitGeneration(w http.ResponseWriter, paperID uuid.UUID, genReq domain.NarrativeGenerationRequest, title string) {
	task := func(ctx context.Context, report jobs.ReportFunc) (string, error) {
		total := genReq.TotalNarratives()
		generated, err := s.narratives.GenerateNarratives(ctx, genReq, func(p domain.NarrativeGenerationProgress) {
			if p.Total == 0 {
				return
			}
			pct := p.Completed * 100 / p.Total
			report(pct, fmt.Sprintf("%s/%s: %s", p.CurrentStyle, p.CurrentLanguage, p.CurrentStage))
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("generated %d of %d narratives", len(generated), total), nil
	}

	job, err := s.queue.Submit(domain.JobTypeNarrativeGeneration, title,
		fmt.Sprintf("paper %s", paperID), &paperID, task)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, generateAcceptedResponse{
		JobID:     job.ID.String(),
		PaperID:   paperID.String(),
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt,
		Message:   "narrative generation queued",
	})
}

// buildGenerationRequest fills request defaults from server configuration.
func (s *Server) buildGenerationRequest(paperID uuid.UUID, req generateRequest) domain.NarrativeGenerationRequest {
	styles := make([]domain.NarrativeStyle, 0, len(req.Styles))
	for _, st := range req.Styles {
		styles = append(styles, domain.NarrativeStyle(st))
	}
	if len(styles) == 0 {
		for _, st := range s.defaults.Styles {
			styles = append(styles, domain.NarrativeStyle(st))
		}
	}

	languages := make([]domain.NarrativeLanguage, 0, len(req.Languages))
	for _, l := range req.Languages {
		languages = append(languages, domain.NarrativeLanguage(l))
	}
	if len(languages) == 0 {
		for _, l := range s.defaults.Languages {
			languages = append(languages, domain.NarrativeLanguage(l))
		}
	}

	explain := s.defaults.ExplainConcepts
	if req.ExplainConcepts != nil {
		explain = *req.ExplainConcepts
	}

	return domain.NarrativeGenerationRequest{
		PaperID:         paperID,
		Styles:          styles,
		Languages:       languages,
		Regenerate:      req.Regenerate,
		ExplainConcepts: explain,
	}
}

// listNarratives handles GET /papers/{paperID}/narratives.
func (s *Server) listNarratives(w http.ResponseWriter, r *http.Request) {
	paperID, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	narratives, err := s.narratives.GetNarratives(r.Context(), paperID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]narrativeResponse, len(narratives))
	for i, n := range narratives {
		out[i] = domainNarrativeToResponse(n)
	}
	writeJSON(w, http.StatusOK, listNarrativesResponse{
		Narratives: out,
		TotalCount: len(out),
	})
}

// getNarrative handles GET /papers/{paperID}/narratives/{style}/{language}.
func (s *Server) getNarrative(w http.ResponseWriter, r *http.Request) {
	paperID, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	style := domain.NarrativeStyle(chi.URLParam(r, "style"))
	language := domain.NarrativeLanguage(chi.URLParam(r, "language"))

	narrative, err := s.narratives.GetNarrative(r.Context(), paperID, style, language)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainNarrativeToResponse(narrative))
}

// deleteNarratives handles DELETE /papers/{paperID}/narratives.
func (s *Server) deleteNarratives(w http.ResponseWriter, r *http.Request) {
	paperID, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	deleted, err := s.narratives.DeleteNarratives(r.Context(), paperID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteNarrativesResponse{Deleted: deleted})
}

// listStyles handles GET /narratives/styles.
func (s *Server) listStyles(w http.ResponseWriter, r *http.Request) {
	styles := domain.AvailableStyles()
	out := make([]string, len(styles))
	for i, st := range styles {
		out[i] = string(st)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"styles": out})
}

// listLanguages handles GET /narratives/languages.
func (s *Server) listLanguages(w http.ResponseWriter, r *http.Request) {
	languages := domain.AvailableLanguages()
	out := make([]string, len(languages))
	for i, l := range languages {
		out[i] = string(l)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"languages": out})
}

// listJobs handles GET /jobs.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domainJobsToResponse(s.queue.All()))
}

// listActiveJobs handles GET /jobs/active.
func (s *Server) listActiveJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domainJobsToResponse(s.queue.Active()))
}

// getJob handles GET /jobs/{jobID}.
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseUUID(w, chi.URLParam(r, "jobID"), "job_id")
	if !ok {
		return
	}

	job, err := s.queue.Get(jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainJobToResponse(job))
}

// cancelJob handles DELETE /jobs/{jobID}.
func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseUUID(w, chi.URLParam(r, "jobID"), "job_id")
	if !ok {
		return
	}

	if err := s.queue.Cancel(jobID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelJobResponse{
		Success: true,
		Message: "cancellation requested",
	})
}

// clearCompletedJobs handles DELETE /jobs/completed.
func (s *Server) clearCompletedJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, clearedResponse{Cleared: s.queue.ClearCompleted()})
}

// listUsageLogs handles GET /llm/logs.
func (s *Server) listUsageLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	var entries interface{}
	if purpose := r.URL.Query().Get("purpose"); purpose != "" {
		entries = s.usage.LogsByPurpose(purpose, limit)
	} else {
		entries = s.usage.Logs(limit)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": entries})
}

// clearUsageLogs handles DELETE /llm/logs.
func (s *Server) clearUsageLogs(w http.ResponseWriter, r *http.Request) {
	s.usage.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// usageStats handles GET /llm/stats.
func (s *Server) usageStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.usage.Stats())
}

// writeDomainError maps domain errors to appropriate HTTP status codes and
// writes a JSON error response. Internal error details are not leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrTextUnavailable):
		writeError(w, http.StatusConflict, "paper has no preprocessed text")
	case errors.Is(err, domain.ErrStageFailed):
		writeError(w, http.StatusBadGateway, "narrative generation failed")
	case errors.Is(err, llm.ErrMissingAPIKey):
		writeError(w, http.StatusBadGateway, "LLM provider is not configured")
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusConflict, "operation cancelled")
	case errors.Is(err, domain.ErrQueueClosed):
		writeError(w, http.StatusServiceUnavailable, "service shutting down")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// validationMessage flattens a validator error into a readable message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		parts[i] = fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
	}
	return strings.Join(parts, "; ")
}

// parseUUID parses a UUID from a string, writing a 400 error response if
// invalid. The parse error details are not echoed back.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}
