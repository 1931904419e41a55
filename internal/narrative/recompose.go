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

type recompositionPayload struct {
	Sections          []recompositionSectionItem `json:"sections"`
	FigurePlacements  map[string]string          `json:"figurePlacements"`
	FormulaPlacements map[string]string          `json:"formulaPlacements"`
	ConceptsToExplain []string                   `json:"conceptsToExplain"`
}

type recompositionSectionItem struct {
	Heading         string `json:"heading"`
	Purpose         string `json:"purpose"`
	PaperSource     string `json:"paperSource"`
	SuggestedLength string `json:"suggestedLength"`
}

// Recompose runs stage 2: one LLM call that turns the structural
// understanding into a style-agnostic narrative reading plan. A call failure
// fails the stage; a plan without sections falls back to a fixed
// five-section outline.
func (p *Pipeline) Recompose(ctx context.Context, paper *domain.Paper, understanding *domain.StructuralUnderstanding, figures []domain.Figure, formulas []domain.Formula) (*domain.RecomposedContent, error) {
	start := time.Now()

	prompt := buildRecompositionPrompt(understanding, figures, formulas)
	response, err := p.chat(ctx, PurposeRecomposition, prompt, paper)
	if err != nil {
		p.observeStage(PurposeRecomposition, start, err)
		return nil, domain.NewStageError(PurposeRecomposition, fmt.Errorf("llm call: %w", err))
	}

	plan := parseRecomposition(response, paper.ID)
	p.observeStage(PurposeRecomposition, start, nil)
	p.logger.Debug().
		Str("paper_id", paper.ID.String()).
		Int("sections", len(plan.Sections)).
		Int("concepts", len(plan.ConceptsToExplain)).
		Msg("recomposition complete")
	return plan, nil
}

func parseRecomposition(response string, paperID uuid.UUID) *domain.RecomposedContent {
	plan := &domain.RecomposedContent{PaperID: paperID}

	var payload recompositionPayload
	if raw, ok := llm.ExtractJSON(response); ok {
		_ = json.Unmarshal([]byte(raw), &payload)
	}

	for _, s := range payload.Sections {
		if s.Heading == "" {
			continue
		}
		plan.Sections = append(plan.Sections, domain.NarrativeSection{
			Heading:         s.Heading,
			Purpose:         s.Purpose,
			PaperSource:     s.PaperSource,
			SuggestedLength: s.SuggestedLength,
		})
	}
	plan.FigurePlacements = payload.FigurePlacements
	plan.FormulaPlacements = payload.FormulaPlacements
	plan.ConceptsToExplain = payload.ConceptsToExplain

	if len(plan.Sections) == 0 {
		plan.Sections = fallbackOutline()
	}
	return plan
}

// fallbackOutline is the section plan used when the model returns no usable
// sections, so a degraded stage 2 never blocks rendering.
func fallbackOutline() []domain.NarrativeSection {
	return []domain.NarrativeSection{
		{Heading: "Introduction", Purpose: "Set the scene and explain why the work matters", PaperSource: "abstract and introduction", SuggestedLength: "medium"},
		{Heading: "Problem", Purpose: "Describe the question the paper tackles", PaperSource: "introduction and background", SuggestedLength: "medium"},
		{Heading: "Solution", Purpose: "Explain how the authors attacked the problem", PaperSource: "methodology", SuggestedLength: "long"},
		{Heading: "Results", Purpose: "Walk through the results", PaperSource: "results and evaluation", SuggestedLength: "long"},
		{Heading: "Conclusion", Purpose: "Close with implications and open questions", PaperSource: "discussion and conclusion", SuggestedLength: "short"},
	}
}
