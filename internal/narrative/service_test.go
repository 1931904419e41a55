package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poteroapp/potero/internal/domain"
	"github.com/poteroapp/potero/internal/usagelog"
)

type fakePaperStore struct {
	mu     sync.Mutex
	papers map[uuid.UUID]*domain.Paper
	marked map[uuid.UUID]bool
}

func newFakePaperStore(papers ...*domain.Paper) *fakePaperStore {
	s := &fakePaperStore{
		papers: make(map[uuid.UUID]*domain.Paper),
		marked: make(map[uuid.UUID]bool),
	}
	for _, p := range papers {
		s.papers[p.ID] = p
	}
	return s
}

func (s *fakePaperStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.papers[id]
	if !ok {
		return nil, domain.NewNotFoundError("paper", id.String())
	}
	return p, nil
}

func (s *fakePaperStore) MarkNarrativeAvailable(_ context.Context, id uuid.UUID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked[id] = available
	return nil
}

type fakeNarrativeStore struct {
	mu        sync.Mutex
	byKey     map[string]*domain.Narrative
	insertErr error
}

func newFakeNarrativeStore() *fakeNarrativeStore {
	return &fakeNarrativeStore{byKey: make(map[string]*domain.Narrative)}
}

func narrativeKey(paperID uuid.UUID, style domain.NarrativeStyle, language domain.NarrativeLanguage) string {
	return fmt.Sprintf("%s/%s/%s", paperID, style, language)
}

func (s *fakeNarrativeStore) Insert(_ context.Context, n *domain.Narrative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.byKey[narrativeKey(n.PaperID, n.Style, n.Language)] = n
	return nil
}

func (s *fakeNarrativeStore) DeleteByPaper(_ context.Context, paperID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, n := range s.byKey {
		if n.PaperID == paperID {
			delete(s.byKey, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *fakeNarrativeStore) ListByPaper(_ context.Context, paperID uuid.UUID) ([]*domain.Narrative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Narrative
	for _, n := range s.byKey {
		if n.PaperID == paperID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeNarrativeStore) GetByPaperStyleLanguage(_ context.Context, paperID uuid.UUID, style domain.NarrativeStyle, language domain.NarrativeLanguage) (*domain.Narrative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byKey[narrativeKey(paperID, style, language)]
	if !ok {
		return nil, domain.NewNotFoundError("narrative", narrativeKey(paperID, style, language))
	}
	return n, nil
}

func (s *fakeNarrativeStore) ExistsForPaper(_ context.Context, paperID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.byKey {
		if n.PaperID == paperID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeNarrativeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}

type fakeFigureProvider struct {
	figures []domain.Figure
	err     error
}

func (f *fakeFigureProvider) FiguresByPaper(context.Context, uuid.UUID) ([]domain.Figure, error) {
	return f.figures, f.err
}

type fakeFormulaProvider struct {
	formulas []domain.Formula
	err      error
}

func (f *fakeFormulaProvider) FormulasByPaper(context.Context, uuid.UUID) ([]domain.Formula, error) {
	return f.formulas, f.err
}

type fakeFullTextProvider struct {
	text string
	err  error
}

func (f *fakeFullTextProvider) FullText(context.Context, uuid.UUID) (string, error) {
	return f.text, f.err
}

// happyResponder answers every stage prompt with a usable response.
func happyResponder(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, markerStructural):
		return structuralResponse, nil
	case strings.Contains(prompt, markerRecompose):
		return recompositionResponse, nil
	case strings.Contains(prompt, markerConcepts):
		return `{"explanations": [{"term": "attention", "definition": "a weighting scheme"}]}`, nil
	case strings.Contains(prompt, markerFigures):
		return `{"explanations": [{"label": "Figure 1", "explanation": "shows the stack"}]}`, nil
	case strings.Contains(prompt, markerTitle):
		return `{"title": "Generated Title", "summary": "Generated summary."}`, nil
	default:
		return strings.Repeat("word ", 300), nil
	}
}

type serviceFixture struct {
	service    *Service
	gateway    *scriptedGateway
	papers     *fakePaperStore
	narratives *fakeNarrativeStore
	paper      *domain.Paper
}

func newServiceFixture(t *testing.T, respond func(string) (string, error)) *serviceFixture {
	t.Helper()

	paper := testPaper()
	gw := &scriptedGateway{respond: respond}
	papers := newFakePaperStore(paper)
	narratives := newFakeNarrativeStore()

	svc := NewService(ServiceParams{
		Papers:     papers,
		Narratives: narratives,
		Figures:    &fakeFigureProvider{figures: []domain.Figure{{Label: "Figure 1", Caption: "overview"}}},
		Formulas:   &fakeFormulaProvider{},
		FullText:   &fakeFullTextProvider{text: "the full text of the paper"},
		Pipeline:   NewPipeline(gw, usagelog.New(0), nil, zerolog.Nop()),
		Cache:      NewStageCache(nil),
		Logger:     zerolog.Nop(),
	})

	return &serviceFixture{service: svc, gateway: gw, papers: papers, narratives: narratives, paper: paper}
}

func TestGenerateNarratives(t *testing.T) {
	t.Parallel()

	t.Run("generates full style and language cross product", func(t *testing.T) {
		fx := newServiceFixture(t, happyResponder)

		req := domain.NarrativeGenerationRequest{
			PaperID:         fx.paper.ID,
			Styles:          []domain.NarrativeStyle{domain.StyleLongform, domain.StyleCasual},
			Languages:       []domain.NarrativeLanguage{domain.LanguageEnglish, domain.LanguageKorean},
			ExplainConcepts: true,
		}
		got, err := fx.service.GenerateNarratives(context.Background(), req, nil)
		require.NoError(t, err)

		assert.Len(t, got, 4)
		assert.Equal(t, 4, fx.narratives.count())

		// stages 1 and 2 run once, stages 3 and 4 run per variant
		assert.Equal(t, 1, fx.gateway.callCount(markerStructural))
		assert.Equal(t, 1, fx.gateway.callCount(markerRecompose))
		assert.Equal(t, 4, fx.gateway.callCount(markerConcepts))
		assert.Equal(t, 4, fx.gateway.callCount(markerTitle))

		assert.True(t, fx.papers.marked[fx.paper.ID])
	})

	t.Run("reports progress", func(t *testing.T) {
		fx := newServiceFixture(t, happyResponder)

		var snapshots []domain.NarrativeGenerationProgress
		req := domain.NarrativeGenerationRequest{
			PaperID:   fx.paper.ID,
			Styles:    []domain.NarrativeStyle{domain.StyleLongform},
			Languages: []domain.NarrativeLanguage{domain.LanguageEnglish, domain.LanguageKorean},
		}
		_, err := fx.service.GenerateNarratives(context.Background(), req, func(p domain.NarrativeGenerationProgress) {
			snapshots = append(snapshots, p)
		})
		require.NoError(t, err)

		require.NotEmpty(t, snapshots)
		last := snapshots[len(snapshots)-1]
		assert.Equal(t, 2, last.Total)
		assert.Equal(t, 2, last.Completed)
		for _, p := range snapshots {
			assert.GreaterOrEqual(t, p.Completed, 0)
			assert.LessOrEqual(t, p.Completed, p.Total)
		}
	})

	t.Run("rejects invalid request", func(t *testing.T) {
		fx := newServiceFixture(t, happyResponder)

		_, err := fx.service.GenerateNarratives(context.Background(), domain.NarrativeGenerationRequest{
			PaperID: fx.paper.ID,
			Styles:  []domain.NarrativeStyle{"epic-poem"},
		}, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unknown paper", func(t *testing.T) {
		fx := newServiceFixture(t, happyResponder)

		_, err := fx.service.GenerateNarratives(context.Background(), domain.NarrativeGenerationRequest{
			PaperID:   uuid.New(),
			Styles:    []domain.NarrativeStyle{domain.StyleLongform},
			Languages: []domain.NarrativeLanguage{domain.LanguageEnglish},
		}, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("missing full text aborts generation", func(t *testing.T) {
		fx := newServiceFixture(t, happyResponder)
		fx.service.fullText = &fakeFullTextProvider{err: errors.New("no pdf text")}

		_, err := fx.service.GenerateNarratives(context.Background(), domain.NarrativeGenerationRequest{
			PaperID:   fx.paper.ID,
			Styles:    []domain.NarrativeStyle{domain.StyleLongform},
			Languages: []domain.NarrativeLanguage{domain.LanguageEnglish},
		}, nil)
		assert.ErrorIs(t, err, domain.ErrTextUnavailable)
		assert.Empty(t, fx.gateway.prompts)
	})

	t.Run("figure provider failure degrades to no figures", func(t *testing.T) {
		fx := newServiceFixture(t, happyResponder)
		fx.service.figures = &fakeFigureProvider{err: errors.New("extractor crashed")}

		got, err := fx.service.GenerateNarratives(context.Background(), domain.NarrativeGenerationRequest{
			PaperID:   fx.paper.ID,
			Styles:    []domain.NarrativeStyle{domain.StyleLongform},
			Languages: []domain.NarrativeLanguage{domain.LanguageEnglish},
		}, nil)
		require.NoError(t, err)

		require.Len(t, got, 1)
		assert.Empty(t, got[0].FigureExplanations)
		assert.Equal(t, 0, fx.gateway.callCount(markerFigures))
	})

	t.Run("explains prerequisite concepts when the plan names none", func(t *testing.T) {
		planWithoutConcepts := `{
			"sections": [
				{"heading": "Why Attention", "purpose": "Set up the problem", "paperSource": "introduction", "suggestedLength": "medium"}
			],
			"conceptsToExplain": []
		}`
		fx := newServiceFixture(t, func(prompt string) (string, error) {
			if strings.Contains(prompt, markerRecompose) {
				return planWithoutConcepts, nil
			}
			return happyResponder(prompt)
		})

		got, err := fx.service.GenerateNarratives(context.Background(), domain.NarrativeGenerationRequest{
			PaperID:         fx.paper.ID,
			Styles:          []domain.NarrativeStyle{domain.StyleLongform},
			Languages:       []domain.NarrativeLanguage{domain.LanguageEnglish},
			ExplainConcepts: true,
		}, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)

		// Stage 1 listed "attention" and "beam search" as prerequisites,
		// so stage 3 still runs on them.
		require.Equal(t, 1, fx.gateway.callCount(markerConcepts))
		for _, prompt := range fx.gateway.prompts {
			if strings.Contains(prompt, markerConcepts) {
				assert.Contains(t, prompt, "attention")
				assert.Contains(t, prompt, "beam search")
			}
		}
	})

	t.Run("earlier narratives survive a later failure", func(t *testing.T) {
		var bodies int32
		fx := newServiceFixture(t, func(prompt string) (string, error) {
			if strings.Contains(prompt, markerBody) && !strings.Contains(prompt, markerTitle) {
				bodies++
				if bodies > 1 {
					return "", errors.New("provider down")
				}
			}
			return happyResponder(prompt)
		})

		got, err := fx.service.GenerateNarratives(context.Background(), domain.NarrativeGenerationRequest{
			PaperID:   fx.paper.ID,
			Styles:    []domain.NarrativeStyle{domain.StyleLongform, domain.StyleCasual},
			Languages: []domain.NarrativeLanguage{domain.LanguageEnglish},
		}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrStageFailed)

		assert.Len(t, got, 1)
		assert.Equal(t, 1, fx.narratives.count())
	})

	t.Run("skips existing variants without regenerate", func(t *testing.T) {
		fx := newServiceFixture(t, happyResponder)

		req := domain.NarrativeGenerationRequest{
			PaperID:   fx.paper.ID,
			Styles:    []domain.NarrativeStyle{domain.StyleLongform},
			Languages: []domain.NarrativeLanguage{domain.LanguageEnglish},
		}
		first, err := fx.service.GenerateNarratives(context.Background(), req, nil)
		require.NoError(t, err)
		require.Len(t, first, 1)

		bodyCalls := fx.gateway.callCount(markerBody)
		second, err := fx.service.GenerateNarratives(context.Background(), req, nil)
		require.NoError(t, err)

		require.Len(t, second, 1)
		assert.Equal(t, first[0].ID, second[0].ID)
		assert.Equal(t, bodyCalls, fx.gateway.callCount(markerBody))
	})

	t.Run("regenerate replaces existing variants", func(t *testing.T) {
		fx := newServiceFixture(t, happyResponder)

		req := domain.NarrativeGenerationRequest{
			PaperID:   fx.paper.ID,
			Styles:    []domain.NarrativeStyle{domain.StyleLongform},
			Languages: []domain.NarrativeLanguage{domain.LanguageEnglish},
		}
		first, err := fx.service.GenerateNarratives(context.Background(), req, nil)
		require.NoError(t, err)

		req.Regenerate = true
		second, err := fx.service.GenerateNarratives(context.Background(), req, nil)
		require.NoError(t, err)

		require.Len(t, second, 1)
		assert.NotEqual(t, first[0].ID, second[0].ID)
		assert.Equal(t, 1, fx.narratives.count())

		// regenerate invalidated the stage cache, stage 1 ran again
		assert.Equal(t, 2, fx.gateway.callCount(markerStructural))
	})

	t.Run("cancelled context stops between variants", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		fx := newServiceFixture(t, func(prompt string) (string, error) {
			if strings.Contains(prompt, markerTitle) {
				cancel()
			}
			return happyResponder(prompt)
		})

		got, err := fx.service.GenerateNarratives(ctx, domain.NarrativeGenerationRequest{
			PaperID:   fx.paper.ID,
			Styles:    []domain.NarrativeStyle{domain.StyleLongform, domain.StyleCasual},
			Languages: []domain.NarrativeLanguage{domain.LanguageEnglish},
		}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCancelled)
		assert.Len(t, got, 1)
	})
}

func TestMergeConceptTerms(t *testing.T) {
	t.Parallel()

	got := mergeConceptTerms(
		[]string{"attention", "Beam Search", " ", "attention"},
		[]string{"beam search", "positional encoding", ""},
	)
	assert.Equal(t, []string{"attention", "Beam Search", "positional encoding"}, got)

	assert.Nil(t, mergeConceptTerms(nil, nil))
	assert.Equal(t, []string{"dropout"}, mergeConceptTerms(nil, []string{"dropout"}))
}

func TestDeleteNarratives(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t, happyResponder)

	_, err := fx.service.GenerateNarratives(context.Background(), domain.NarrativeGenerationRequest{
		PaperID:   fx.paper.ID,
		Styles:    []domain.NarrativeStyle{domain.StyleLongform},
		Languages: []domain.NarrativeLanguage{domain.LanguageEnglish, domain.LanguageKorean},
	}, nil)
	require.NoError(t, err)

	deleted, err := fx.service.DeleteNarratives(context.Background(), fx.paper.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 0, fx.narratives.count())
	assert.False(t, fx.papers.marked[fx.paper.ID])

	has, err := fx.service.HasNarratives(context.Background(), fx.paper.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGetNarrative(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t, happyResponder)

	_, err := fx.service.GetNarrative(context.Background(), fx.paper.ID, "epic-poem", domain.LanguageEnglish)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = fx.service.GetNarrative(context.Background(), fx.paper.ID, domain.StyleLongform, domain.LanguageEnglish)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
