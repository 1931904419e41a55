package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/poteroapp/potero/internal/domain"
	"github.com/poteroapp/potero/internal/llm"
)

// Defaults used when the model omits a structural field.
const (
	defaultObjective   = "Unable to determine the main objective"
	defaultQuestion    = "Unable to determine the research question"
	defaultMethodology = "Methodology not identified"
	defaultAudience    = "researchers in the field"
)

type structuralPayload struct {
	MainObjective        string                  `json:"mainObjective"`
	ResearchQuestion     string                  `json:"researchQuestion"`
	Methodology          string                  `json:"methodology"`
	KeyFindings          []string                `json:"keyFindings"`
	Contributions        []string                `json:"contributions"`
	Sections             []structuralSectionItem `json:"sections"`
	TargetAudience       string                  `json:"targetAudience"`
	PrerequisiteConcepts []string                `json:"prerequisiteConcepts"`
}

type structuralSectionItem struct {
	Title     string   `json:"title"`
	Purpose   string   `json:"purpose"`
	KeyPoints []string `json:"keyPoints"`
}

// StructuralUnderstanding runs stage 1: one LLM call that digests the paper's
// metadata, full text, and figure captions into a structured summary. A call
// failure fails the stage; a malformed response does not, missing fields fall
// back to defaults.
func (p *Pipeline) StructuralUnderstanding(ctx context.Context, paper *domain.Paper, fullText string, figures []domain.Figure) (*domain.StructuralUnderstanding, error) {
	start := time.Now()

	prompt := buildStructuralPrompt(paper, fullText, figures)
	response, err := p.chat(ctx, PurposeStructural, prompt, paper)
	if err != nil {
		p.observeStage(PurposeStructural, start, err)
		return nil, domain.NewStageError(PurposeStructural, fmt.Errorf("llm call: %w", err))
	}

	understanding := parseStructural(response, paper.ID)
	p.observeStage(PurposeStructural, start, nil)
	p.logger.Debug().
		Str("paper_id", paper.ID.String()).
		Int("sections", len(understanding.Sections)).
		Msg("structural understanding complete")
	return understanding, nil
}

func parseStructural(response string, paperID uuid.UUID) *domain.StructuralUnderstanding {
	out := &domain.StructuralUnderstanding{
		PaperID:       paperID,
		MainObjective: defaultObjective,
	}

	var payload structuralPayload
	if raw, ok := llm.ExtractJSON(response); ok {
		_ = json.Unmarshal([]byte(raw), &payload)
	}

	if payload.MainObjective != "" {
		out.MainObjective = payload.MainObjective
	}
	out.ResearchQuestion = payload.ResearchQuestion
	if out.ResearchQuestion == "" {
		out.ResearchQuestion = defaultQuestion
	}
	out.Methodology = payload.Methodology
	if out.Methodology == "" {
		out.Methodology = defaultMethodology
	}
	out.KeyFindings = payload.KeyFindings
	out.Contributions = payload.Contributions
	out.TargetAudience = payload.TargetAudience
	if out.TargetAudience == "" {
		out.TargetAudience = defaultAudience
	}
	out.PrerequisiteConcepts = payload.PrerequisiteConcepts

	for _, s := range payload.Sections {
		if s.Title == "" {
			continue
		}
		out.Sections = append(out.Sections, domain.SectionSummary{
			Title:     s.Title,
			Purpose:   s.Purpose,
			KeyPoints: s.KeyPoints,
		})
	}

	return out
}
