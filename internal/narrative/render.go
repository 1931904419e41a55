package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/poteroapp/potero/internal/domain"
	"github.com/poteroapp/potero/internal/llm"
	"github.com/poteroapp/potero/internal/observability"
)

// wordsPerMinute is the reading speed used for the read time estimate.
const wordsPerMinute = 200

type figurePayload struct {
	Explanations []figureItem `json:"explanations"`
}

type figureItem struct {
	Label       string `json:"label"`
	Explanation string `json:"explanation"`
	Relevance   string `json:"relevance"`
}

type titleSummaryPayload struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Render runs stage 4: up to three LLM calls producing one finished
// narrative. The body call is fatal on failure. The figure call is skipped
// when there are no figures and tolerated on failure, leaving the
// explanations empty. The title/summary call falls back to per-style
// templates on failure.
func (p *Pipeline) Render(ctx context.Context, paper *domain.Paper, understanding *domain.StructuralUnderstanding, plan *domain.RecomposedContent, concepts []domain.ConceptExplanation, figures []domain.Figure, style domain.NarrativeStyle, language domain.NarrativeLanguage) (*domain.Narrative, error) {
	start := time.Now()

	body, err := p.chat(ctx, PurposeBody, buildBodyPrompt(paper, understanding, plan, concepts, style, language), paper)
	if err != nil {
		p.observeStage(PurposeBody, start, err)
		return nil, domain.NewStageError(PurposeBody, fmt.Errorf("llm call: %w", err))
	}
	body = strings.TrimSpace(body)
	if body == "" {
		err := fmt.Errorf("empty narrative body")
		p.observeStage(PurposeBody, start, err)
		return nil, domain.NewStageError(PurposeBody, err)
	}

	figureExplanations := p.explainFigures(ctx, paper, understanding, figures, language)
	title, summary := p.titleAndSummary(ctx, paper, body, style, language)

	now := time.Now().UTC()
	narrative := &domain.Narrative{
		ID:                  uuid.New(),
		PaperID:             paper.ID,
		Style:               style,
		Language:            language,
		Title:               title,
		Content:             body,
		Summary:             summary,
		FigureExplanations:  figureExplanations,
		ConceptExplanations: concepts,
		EstimatedReadTime:   estimateReadTime(body),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	p.observeStage(PurposeBody, start, nil)
	stageLogger := observability.WithStageContext(p.logger, PurposeBody, string(style), string(language))
	stageLogger.Debug().
		Str("paper_id", paper.ID.String()).
		Int("read_time_min", narrative.EstimatedReadTime).
		Dur("elapsed", time.Since(start)).
		Msg("narrative rendered")
	return narrative, nil
}

// explainFigures issues the figure explanation call. Failures degrade to an
// empty result rather than failing the render.
func (p *Pipeline) explainFigures(ctx context.Context, paper *domain.Paper, understanding *domain.StructuralUnderstanding, figures []domain.Figure, language domain.NarrativeLanguage) []domain.FigureExplanation {
	if len(figures) == 0 {
		return nil
	}

	response, err := p.chat(ctx, PurposeFigures, buildFigurePrompt(figures, understanding, language), paper)
	if err != nil {
		p.logger.Warn().Err(err).Str("paper_id", paper.ID.String()).Msg("figure explanation skipped")
		return nil
	}

	var payload figurePayload
	if raw, ok := llm.ExtractJSON(response); ok {
		_ = json.Unmarshal([]byte(raw), &payload)
	}

	captions := make(map[string]string, len(figures))
	for _, f := range figures {
		captions[f.Label] = f.Caption
	}

	var out []domain.FigureExplanation
	for _, item := range payload.Explanations {
		if item.Label == "" || item.Explanation == "" {
			continue
		}
		out = append(out, domain.FigureExplanation{
			ID:          uuid.New(),
			Label:       item.Label,
			Caption:     captions[item.Label],
			Explanation: item.Explanation,
			Relevance:   item.Relevance,
		})
	}
	return out
}

// titleAndSummary issues the title/summary call, falling back to templates
// when the call fails or the response is unusable.
func (p *Pipeline) titleAndSummary(ctx context.Context, paper *domain.Paper, body string, style domain.NarrativeStyle, language domain.NarrativeLanguage) (string, string) {
	title := fallbackTitle(paper.Title, style, language)
	summary := fallbackSummary(paper.Title, language)

	response, err := p.chat(ctx, PurposeTitleSummary, buildTitleSummaryPrompt(paper, body, style, language), paper)
	if err != nil {
		p.logger.Warn().Err(err).Str("paper_id", paper.ID.String()).Msg("title generation fell back to template")
		return title, summary
	}

	var payload titleSummaryPayload
	if raw, ok := llm.ExtractJSON(response); ok {
		_ = json.Unmarshal([]byte(raw), &payload)
	}
	if payload.Title != "" {
		title = payload.Title
	}
	if payload.Summary != "" {
		summary = payload.Summary
	}
	return title, summary
}

func fallbackTitle(paperTitle string, style domain.NarrativeStyle, language domain.NarrativeLanguage) string {
	if language == domain.LanguageKorean {
		switch style {
		case domain.StyleLongform:
			return fmt.Sprintf("심층 탐구: %s", paperTitle)
		case domain.StyleJournalistic:
			return fmt.Sprintf("연구 속으로: %s", paperTitle)
		case domain.StyleCasual:
			return fmt.Sprintf("쉽게 풀어 보는 %s", paperTitle)
		}
	}
	switch style {
	case domain.StyleLongform:
		return fmt.Sprintf("A Deep Dive into %s", paperTitle)
	case domain.StyleJournalistic:
		return fmt.Sprintf("Inside the Research: %s", paperTitle)
	case domain.StyleCasual:
		return fmt.Sprintf("Let's Talk About %s", paperTitle)
	}
	return paperTitle
}

func fallbackSummary(paperTitle string, language domain.NarrativeLanguage) string {
	if language == domain.LanguageKorean {
		return fmt.Sprintf("%q 논문을 읽기 쉽게 풀어 쓴 이야기입니다.", paperTitle)
	}
	return fmt.Sprintf("An accessible retelling of %q.", paperTitle)
}

// estimateReadTime returns the reading time in minutes, never below one.
func estimateReadTime(text string) int {
	words := len(strings.Fields(text))
	minutes := words / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
