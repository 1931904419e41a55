package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SectionSummary is a per-section digest inside a StructuralUnderstanding.
type SectionSummary struct {
	Title     string   `json:"title"`
	Purpose   string   `json:"purpose"`
	KeyPoints []string `json:"key_points"`
}

// StructuralUnderstanding is the stage-1 summary of a paper. One instance per
// paper; immutable once cached and invalidated only by explicit cache
// invalidation.
type StructuralUnderstanding struct {
	PaperID              uuid.UUID
	MainObjective        string
	ResearchQuestion     string
	Methodology          string
	KeyFindings          []string
	Contributions        []string
	Sections             []SectionSummary
	TargetAudience       string
	PrerequisiteConcepts []string
}

// NarrativeSection is one entry of the stage-2 recomposed outline.
type NarrativeSection struct {
	Heading         string `json:"heading"`
	Purpose         string `json:"purpose"`
	PaperSource     string `json:"paper_source"`
	SuggestedLength string `json:"suggested_length"`
}

// RecomposedContent is the stage-2 narrative outline for a paper, consuming
// the stage-1 output. Same lifecycle as StructuralUnderstanding.
type RecomposedContent struct {
	PaperID           uuid.UUID
	Sections          []NarrativeSection
	FigurePlacements  map[string]string
	FormulaPlacements map[string]string
	ConceptsToExplain []string
}

// ConceptExplanation is a plain-language explanation of a single concept,
// owned by one narrative. Each render gets a fresh set so explanations match
// the target language and tone.
type ConceptExplanation struct {
	ID           uuid.UUID `json:"id"`
	Term         string    `json:"term"`
	Definition   string    `json:"definition"`
	Analogy      string    `json:"analogy,omitempty"`
	RelatedTerms []string  `json:"related_terms,omitempty"`
}

// FigureExplanation is a per-narrative reader-friendly explanation of one figure.
type FigureExplanation struct {
	ID          uuid.UUID `json:"id"`
	Label       string    `json:"label"`
	Caption     string    `json:"caption"`
	Explanation string    `json:"explanation"`
	Relevance   string    `json:"relevance,omitempty"`
}

// Narrative is the terminal artifact of the generation pipeline. Domain
// identity is (PaperID, Style, Language); each row still carries its own
// generated ID.
type Narrative struct {
	ID                  uuid.UUID
	PaperID             uuid.UUID
	Style               NarrativeStyle
	Language            NarrativeLanguage
	Title               string
	Content             string
	Summary             string
	FigureExplanations  []FigureExplanation
	ConceptExplanations []ConceptExplanation
	EstimatedReadTime   int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NarrativeGenerationRequest is the orchestrator input. Transient, never persisted.
type NarrativeGenerationRequest struct {
	PaperID         uuid.UUID
	Styles          []NarrativeStyle
	Languages       []NarrativeLanguage
	Regenerate      bool
	ExplainConcepts bool
}

// TotalNarratives returns the number of narratives the request will produce.
func (r NarrativeGenerationRequest) TotalNarratives() int {
	return len(r.Styles) * len(r.Languages)
}

// Validate checks that the request names at least one valid style and language.
func (r NarrativeGenerationRequest) Validate() error {
	if r.PaperID == uuid.Nil {
		return NewValidationError("paper_id", "must not be empty")
	}
	if len(r.Styles) == 0 {
		return NewValidationError("styles", "at least one style is required")
	}
	if len(r.Languages) == 0 {
		return NewValidationError("languages", "at least one language is required")
	}
	for _, s := range r.Styles {
		if !s.IsValid() {
			return NewValidationError("styles", fmt.Sprintf("unsupported style %q", s))
		}
	}
	for _, l := range r.Languages {
		if !l.IsValid() {
			return NewValidationError("languages", fmt.Sprintf("unsupported language %q", l))
		}
	}
	return nil
}

// NarrativeGenerationProgress is a transient progress snapshot emitted through
// the orchestrator's callback. Never persisted.
type NarrativeGenerationProgress struct {
	PaperID         uuid.UUID
	Total           int
	Completed       int
	CurrentStage    string
	CurrentStyle    NarrativeStyle
	CurrentLanguage NarrativeLanguage
}
