package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/poteroapp/potero/internal/domain"
)

// Narrative and job response types for JSON serialization.

type narrativeResponse struct {
	ID                  string                       `json:"id"`
	PaperID             string                       `json:"paper_id"`
	Style               string                       `json:"style"`
	Language            string                       `json:"language"`
	Title               string                       `json:"title"`
	Content             string                       `json:"content"`
	Summary             string                       `json:"summary"`
	FigureExplanations  []domain.FigureExplanation  `json:"figure_explanations"`
	ConceptExplanations []domain.ConceptExplanation `json:"concept_explanations"`
	EstimatedReadTime   int                          `json:"estimated_read_time"`
	CreatedAt           time.Time                    `json:"created_at"`
	UpdatedAt           time.Time                    `json:"updated_at"`
}

type listNarrativesResponse struct {
	Narratives []narrativeResponse `json:"narratives"`
	TotalCount int                 `json:"total_count"`
}

type generateAcceptedResponse struct {
	JobID     string    `json:"job_id"`
	PaperID   string    `json:"paper_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message"`
}

type deleteNarrativesResponse struct {
	Deleted int `json:"deleted"`
}

type jobResponse struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message,omitempty"`
	PaperID     string     `json:"paper_id,omitempty"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type listJobsResponse struct {
	Jobs       []jobResponse `json:"jobs"`
	TotalCount int           `json:"total_count"`
}

type cancelJobResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type clearedResponse struct {
	Cleared int `json:"cleared"`
}

// Converter functions

func domainNarrativeToResponse(n *domain.Narrative) narrativeResponse {
	figures := n.FigureExplanations
	if figures == nil {
		figures = []domain.FigureExplanation{}
	}
	concepts := n.ConceptExplanations
	if concepts == nil {
		concepts = []domain.ConceptExplanation{}
	}
	return narrativeResponse{
		ID:                  n.ID.String(),
		PaperID:             n.PaperID.String(),
		Style:               string(n.Style),
		Language:            string(n.Language),
		Title:               n.Title,
		Content:             n.Content,
		Summary:             n.Summary,
		FigureExplanations:  figures,
		ConceptExplanations: concepts,
		EstimatedReadTime:   n.EstimatedReadTime,
		CreatedAt:           n.CreatedAt,
		UpdatedAt:           n.UpdatedAt,
	}
}

func domainJobToResponse(j *domain.Job) jobResponse {
	resp := jobResponse{
		ID:          j.ID.String(),
		Type:        string(j.Type),
		Title:       j.Title,
		Description: j.Description,
		Status:      string(j.Status),
		Progress:    j.Progress,
		Message:     j.Message,
		Result:      j.Result,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.PaperID != nil {
		resp.PaperID = j.PaperID.String()
	}
	return resp
}

func domainJobsToResponse(jobsList []*domain.Job) listJobsResponse {
	out := make([]jobResponse, len(jobsList))
	for i, j := range jobsList {
		out[i] = domainJobToResponse(j)
	}
	return listJobsResponse{Jobs: out, TotalCount: len(out)}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
