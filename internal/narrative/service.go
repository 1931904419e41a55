package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/poteroapp/potero/internal/domain"
	"github.com/poteroapp/potero/internal/observability"
)

// ProgressFunc receives progress snapshots during generation. May be nil.
// Callbacks are invoked synchronously from the generation goroutine.
type ProgressFunc func(domain.NarrativeGenerationProgress)

// Service orchestrates the four pipeline stages across the requested style
// and language combinations and persists the results.
type Service struct {
	papers     PaperStore
	narratives NarrativeStore
	figures    FigureProvider
	formulas   FormulaProvider
	fullText   FullTextProvider
	pipeline   *Pipeline
	cache      *StageCache
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// ServiceParams bundles the Service dependencies.
type ServiceParams struct {
	Papers     PaperStore
	Narratives NarrativeStore
	Figures    FigureProvider
	Formulas   FormulaProvider
	FullText   FullTextProvider
	Pipeline   *Pipeline
	Cache      *StageCache
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
}

// NewService creates the narrative orchestrator.
func NewService(params ServiceParams) *Service {
	return &Service{
		papers:     params.Papers,
		narratives: params.Narratives,
		figures:    params.Figures,
		formulas:   params.Formulas,
		fullText:   params.FullText,
		pipeline:   params.Pipeline,
		cache:      params.Cache,
		metrics:    params.Metrics,
		logger:     params.Logger.With().Str("component", "narrative_service").Logger(),
	}
}

// GenerateNarratives produces one narrative per requested style and language
// combination. Stages 1 and 2 run once per paper via the stage cache; stages
// 3 and 4 run per combination so tone and language match the variant.
//
// Generation stops at the first failing combination. Narratives persisted
// before the failure are kept. With Regenerate set, existing narratives are
// deleted and the stage cache invalidated before anything runs; without it,
// combinations that already exist are skipped.
func (s *Service) GenerateNarratives(ctx context.Context, req domain.NarrativeGenerationRequest, progress ProgressFunc) ([]*domain.Narrative, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	paper, err := s.papers.GetByID(ctx, req.PaperID)
	if err != nil {
		return nil, fmt.Errorf("load paper: %w", err)
	}
	logger := observability.WithPaperContext(s.logger, paper.ID.String(), paper.Title)

	if req.Regenerate {
		deleted, err := s.narratives.DeleteByPaper(ctx, paper.ID)
		if err != nil {
			return nil, fmt.Errorf("delete existing narratives: %w", err)
		}
		s.cache.Invalidate(paper.ID)
		if deleted > 0 && s.metrics != nil {
			s.metrics.RecordNarrativesDeleted(deleted)
		}
		logger.Info().Int("deleted", deleted).Msg("regenerating narratives")
	}

	fullText, err := s.fullText.FullText(ctx, paper.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTextUnavailable, err)
	}
	if fullText == "" {
		return nil, fmt.Errorf("%w: paper has no extracted text", domain.ErrTextUnavailable)
	}

	// Degraded inputs: a failing figure or formula source never blocks
	// generation, the narrative just goes without them.
	figures, err := s.figures.FiguresByPaper(ctx, paper.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("figures unavailable, continuing without")
		figures = nil
	}
	formulas, err := s.formulas.FormulasByPaper(ctx, paper.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("formulas unavailable, continuing without")
		formulas = nil
	}

	total := req.TotalNarratives()
	report := func(completed int, stage string, style domain.NarrativeStyle, language domain.NarrativeLanguage) {
		if progress == nil {
			return
		}
		progress(domain.NarrativeGenerationProgress{
			PaperID:         paper.ID,
			Total:           total,
			Completed:       completed,
			CurrentStage:    stage,
			CurrentStyle:    style,
			CurrentLanguage: language,
		})
	}

	understanding, err := s.cache.GetOrComputeStructural(ctx, paper.ID, func(ctx context.Context) (*domain.StructuralUnderstanding, error) {
		report(0, PurposeStructural, "", "")
		return s.pipeline.StructuralUnderstanding(ctx, paper, fullText, figures)
	})
	if err != nil {
		return nil, err
	}

	plan, err := s.cache.GetOrComputeRecomposed(ctx, paper.ID, func(ctx context.Context) (*domain.RecomposedContent, error) {
		report(0, PurposeRecomposition, "", "")
		return s.pipeline.Recompose(ctx, paper, understanding, figures, formulas)
	})
	if err != nil {
		return nil, err
	}

	// Stage 3 explains the concepts named by either earlier stage.
	conceptTerms := mergeConceptTerms(understanding.PrerequisiteConcepts, plan.ConceptsToExplain)

	var generated []*domain.Narrative
	completed := 0
	for _, style := range req.Styles {
		for _, language := range req.Languages {
			if err := ctx.Err(); err != nil {
				return generated, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
			}

			if !req.Regenerate {
				existing, err := s.narratives.GetByPaperStyleLanguage(ctx, paper.ID, style, language)
				if err == nil {
					completed++
					report(completed, "done", style, language)
					generated = append(generated, existing)
					continue
				}
				if !errors.Is(err, domain.ErrNotFound) {
					return generated, fmt.Errorf("check existing narrative: %w", err)
				}
			}

			narrative, err := s.generateOne(ctx, paper, understanding, plan, conceptTerms, figures, style, language, req.ExplainConcepts, func(stage string) {
				report(completed, stage, style, language)
			})
			if err != nil {
				if s.metrics != nil {
					s.metrics.RecordNarrativeFailed(string(style), string(language))
				}
				return generated, fmt.Errorf("generate %s/%s narrative: %w", style, language, err)
			}

			completed++
			report(completed, "done", style, language)
			generated = append(generated, narrative)
		}
	}

	if len(generated) > 0 {
		if err := s.papers.MarkNarrativeAvailable(ctx, paper.ID, true); err != nil {
			logger.Warn().Err(err).Msg("failed to flag paper narrative availability")
		}
	}
	logger.Info().Int("generated", len(generated)).Msg("narrative generation complete")
	return generated, nil
}

func (s *Service) generateOne(ctx context.Context, paper *domain.Paper, understanding *domain.StructuralUnderstanding, plan *domain.RecomposedContent, conceptTerms []string, figures []domain.Figure, style domain.NarrativeStyle, language domain.NarrativeLanguage, explainConcepts bool, stageStarted func(stage string)) (*domain.Narrative, error) {
	start := time.Now()

	// Fresh explanations per variant so wording follows the target
	// language and tone.
	var concepts []domain.ConceptExplanation
	if explainConcepts && len(conceptTerms) > 0 {
		stageStarted(PurposeConcepts)
		var err error
		concepts, err = s.pipeline.SimplifyConcepts(ctx, paper, conceptTerms, understanding.TargetAudience)
		if err != nil {
			return nil, err
		}
	}

	stageStarted(PurposeBody)
	narrative, err := s.pipeline.Render(ctx, paper, understanding, plan, concepts, figures, style, language)
	if err != nil {
		return nil, err
	}

	if err := s.narratives.Insert(ctx, narrative); err != nil {
		return nil, fmt.Errorf("persist narrative: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordNarrativeGenerated(string(style), string(language), time.Since(start).Seconds())
	}
	return narrative, nil
}

// RegenerateNarratives rebuilds every default style and language variant for
// the paper from scratch.
func (s *Service) RegenerateNarratives(ctx context.Context, paperID uuid.UUID, progress ProgressFunc) ([]*domain.Narrative, error) {
	return s.GenerateNarratives(ctx, domain.NarrativeGenerationRequest{
		PaperID:         paperID,
		Styles:          domain.AvailableStyles(),
		Languages:       domain.AvailableLanguages(),
		Regenerate:      true,
		ExplainConcepts: true,
	}, progress)
}

// GetNarratives returns all stored narratives for a paper.
func (s *Service) GetNarratives(ctx context.Context, paperID uuid.UUID) ([]*domain.Narrative, error) {
	return s.narratives.ListByPaper(ctx, paperID)
}

// GetNarrative returns one narrative by its domain identity.
func (s *Service) GetNarrative(ctx context.Context, paperID uuid.UUID, style domain.NarrativeStyle, language domain.NarrativeLanguage) (*domain.Narrative, error) {
	if !style.IsValid() {
		return nil, domain.NewValidationError("style", fmt.Sprintf("unsupported style %q", style))
	}
	if !language.IsValid() {
		return nil, domain.NewValidationError("language", fmt.Sprintf("unsupported language %q", language))
	}
	return s.narratives.GetByPaperStyleLanguage(ctx, paperID, style, language)
}

// HasNarratives reports whether the paper has any stored narratives.
func (s *Service) HasNarratives(ctx context.Context, paperID uuid.UUID) (bool, error) {
	return s.narratives.ExistsForPaper(ctx, paperID)
}

// DeleteNarratives removes all narratives for a paper, invalidates its stage
// cache, and clears the paper's narrative flag.
func (s *Service) DeleteNarratives(ctx context.Context, paperID uuid.UUID) (int, error) {
	deleted, err := s.narratives.DeleteByPaper(ctx, paperID)
	if err != nil {
		return 0, err
	}
	s.cache.Invalidate(paperID)
	if deleted > 0 && s.metrics != nil {
		s.metrics.RecordNarrativesDeleted(deleted)
	}
	if err := s.papers.MarkNarrativeAvailable(ctx, paperID, false); err != nil {
		s.logger.Warn().Err(err).Str("paper_id", paperID.String()).Msg("failed to clear paper narrative availability")
	}
	return deleted, nil
}

// mergeConceptTerms unions the stage-1 prerequisite concepts with the
// stage-2 concepts to explain, dropping blanks and case-insensitive
// duplicates while keeping first-seen order.
func mergeConceptTerms(prerequisites, planned []string) []string {
	seen := make(map[string]struct{}, len(prerequisites)+len(planned))
	var merged []string
	for _, term := range append(append([]string{}, prerequisites...), planned...) {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, term)
	}
	return merged
}
