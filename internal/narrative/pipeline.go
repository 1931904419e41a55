package narrative

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/poteroapp/potero/internal/domain"
	"github.com/poteroapp/potero/internal/observability"
	"github.com/poteroapp/potero/internal/usagelog"
)

// Stage purpose tags. They label usage log entries and metrics so calls can
// be traced back to the pipeline stage that issued them.
const (
	PurposeStructural    = "structural_understanding"
	PurposeRecomposition = "content_recomposition"
	PurposeConcepts      = "concept_simplification"
	PurposeBody          = "narrative_body"
	PurposeFigures       = "figure_explanation"
	PurposeTitleSummary  = "title_summary"
)

// Pipeline runs the individual Paper-to-Narrative stages. Each stage issues
// at most a handful of LLM calls, records them in the usage log, and parses
// the response leniently: model chatter around the JSON payload is tolerated,
// missing fields fall back to defaults.
type Pipeline struct {
	gateway ChatGateway
	usage   *usagelog.Logger
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewPipeline creates a stage processor backed by the given gateway.
func NewPipeline(gateway ChatGateway, usage *usagelog.Logger, metrics *observability.Metrics, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		gateway: gateway,
		usage:   usage,
		metrics: metrics,
		logger:  logger.With().Str("component", "narrative_pipeline").Logger(),
	}
}

// chat issues one LLM call, logging it under the given purpose tag. The
// returned text is the raw model response.
func (p *Pipeline) chat(ctx context.Context, purpose, prompt string, paper *domain.Paper) (string, error) {
	start := time.Now()
	response, err := p.gateway.Chat(ctx, prompt)
	elapsed := time.Since(start)

	rec := usagelog.Record{
		Provider: p.gateway.Provider(),
		Purpose:  purpose,
		Prompt:   prompt,
		Response: response,
		Duration: elapsed,
		Success:  err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if paper != nil {
		id := paper.ID
		rec.PaperID = &id
		rec.PaperTitle = paper.Title
	}
	entry := p.usage.Log(rec)

	if p.metrics != nil {
		if err != nil {
			p.metrics.RecordLLMRequestFailed(purpose, rec.Provider)
		} else {
			p.metrics.RecordLLMRequest(purpose, rec.Provider, elapsed.Seconds(), entry.EstimatedInputTokens, entry.EstimatedOutputTokens)
		}
	}

	if err != nil {
		p.logger.Warn().Err(err).Str("purpose", purpose).Dur("elapsed", elapsed).Msg("llm call failed")
		return "", err
	}
	return response, nil
}

func (p *Pipeline) observeStage(stage string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	if err != nil {
		p.metrics.RecordStageFailure(stage)
		return
	}
	p.metrics.RecordStageDuration(stage, time.Since(start).Seconds())
}
