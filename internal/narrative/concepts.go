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

type conceptPayload struct {
	Explanations []conceptItem `json:"explanations"`
}

type conceptItem struct {
	Term         string   `json:"term"`
	Definition   string   `json:"definition"`
	Analogy      string   `json:"analogy"`
	RelatedTerms []string `json:"relatedTerms"`
}

// SimplifyConcepts runs stage 3: one LLM call that turns the plan's concept
// list into plain-language explanations. An empty concept list is a no-op
// with no LLM call. Explanations missing a term or definition are dropped.
func (p *Pipeline) SimplifyConcepts(ctx context.Context, paper *domain.Paper, concepts []string, audience string) ([]domain.ConceptExplanation, error) {
	if len(concepts) == 0 {
		return nil, nil
	}
	start := time.Now()

	prompt := buildConceptPrompt(concepts, audience)
	response, err := p.chat(ctx, PurposeConcepts, prompt, paper)
	if err != nil {
		p.observeStage(PurposeConcepts, start, err)
		return nil, domain.NewStageError(PurposeConcepts, fmt.Errorf("llm call: %w", err))
	}

	explanations := parseConcepts(response)
	p.observeStage(PurposeConcepts, start, nil)
	p.logger.Debug().
		Str("paper_id", paper.ID.String()).
		Int("requested", len(concepts)).
		Int("explained", len(explanations)).
		Msg("concept simplification complete")
	return explanations, nil
}

func parseConcepts(response string) []domain.ConceptExplanation {
	var payload conceptPayload
	if raw, ok := llm.ExtractJSON(response); ok {
		_ = json.Unmarshal([]byte(raw), &payload)
	}

	var out []domain.ConceptExplanation
	for _, item := range payload.Explanations {
		if item.Term == "" || item.Definition == "" {
			continue
		}
		out = append(out, domain.ConceptExplanation{
			ID:           uuid.New(),
			Term:         item.Term,
			Definition:   item.Definition,
			Analogy:      item.Analogy,
			RelatedTerms: item.RelatedTerms,
		})
	}
	return out
}
