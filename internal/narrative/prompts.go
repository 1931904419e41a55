package narrative

import (
	"fmt"
	"strings"

	"github.com/poteroapp/potero/internal/domain"
)

const (
	// maxPaperTextChars bounds the amount of full text embedded in a prompt.
	maxPaperTextChars = 8000

	// maxFormulasShown bounds how many formulas a prompt lists in full.
	maxFormulasShown = 10

	// bodyExcerptChars bounds the narrative body excerpt used when asking
	// for a title and summary.
	bodyExcerptChars = 1000
)

func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "\n[... text truncated ...]"
}

func buildStructuralPrompt(paper *domain.Paper, fullText string, figures []domain.Figure) string {
	var b strings.Builder

	b.WriteString("You are analyzing an academic paper to extract its structure.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", paper.Title)
	if len(paper.Authors) > 0 {
		fmt.Fprintf(&b, "Authors: %s\n", paper.AuthorNames())
	}
	if paper.Abstract != "" {
		fmt.Fprintf(&b, "Abstract: %s\n", paper.Abstract)
	}
	if len(figures) > 0 {
		b.WriteString("\nFigure captions:\n")
		for _, f := range figures {
			fmt.Fprintf(&b, "- %s: %s\n", f.Label, f.Caption)
		}
	}
	b.WriteString("\nFull text:\n")
	b.WriteString(truncateText(fullText, maxPaperTextChars))

	b.WriteString(`

Analyze the paper and respond with ONLY a JSON object in this exact shape:
{
  "mainObjective": "what the paper sets out to do",
  "researchQuestion": "the question it answers",
  "methodology": "how the work was carried out",
  "keyFindings": ["finding 1", "finding 2"],
  "contributions": ["contribution 1"],
  "sections": [{"title": "section title", "purpose": "what the section covers", "keyPoints": ["point"]}],
  "targetAudience": "who the paper is written for",
  "prerequisiteConcepts": ["concept the reader must already know"]
}
Do not include any text outside the JSON object.`)

	return b.String()
}

func buildRecompositionPrompt(understanding *domain.StructuralUnderstanding, figures []domain.Figure, formulas []domain.Formula) string {
	var b strings.Builder

	b.WriteString("You are planning a narrative retelling of an academic paper.\n\n")
	fmt.Fprintf(&b, "Main objective: %s\n", understanding.MainObjective)
	fmt.Fprintf(&b, "Research question: %s\n", understanding.ResearchQuestion)
	fmt.Fprintf(&b, "Methodology: %s\n", understanding.Methodology)
	if len(understanding.KeyFindings) > 0 {
		fmt.Fprintf(&b, "Key findings: %s\n", strings.Join(understanding.KeyFindings, "; "))
	}
	if len(understanding.Sections) > 0 {
		b.WriteString("Paper sections:\n")
		for _, s := range understanding.Sections {
			fmt.Fprintf(&b, "- %s: %s\n", s.Title, s.Purpose)
		}
	}

	if len(figures) > 0 {
		b.WriteString("\nAvailable figures:\n")
		for _, f := range figures {
			fmt.Fprintf(&b, "- %s: %s\n", f.Label, f.Caption)
		}
	}
	writeFormulaList(&b, formulas)

	b.WriteString(`
Design a reading plan and respond with ONLY a JSON object in this exact shape:
{
  "sections": [{"heading": "narrative section heading", "purpose": "what this section achieves", "paperSource": "which part of the paper it draws on", "suggestedLength": "short|medium|long"}],
  "figurePlacements": {"figure label": "section heading it belongs in"},
  "formulaPlacements": {"formula label": "section heading it belongs in"},
  "conceptsToExplain": ["technical term worth a plain-language explanation"]
}
Do not include any text outside the JSON object.`)

	return b.String()
}

func writeFormulaList(b *strings.Builder, formulas []domain.Formula) {
	if len(formulas) == 0 {
		return
	}
	b.WriteString("\nKey formulas:\n")
	shown := formulas
	if len(shown) > maxFormulasShown {
		shown = shown[:maxFormulasShown]
	}
	for _, f := range shown {
		fmt.Fprintf(b, "- %s: %s\n", f.Label, f.LaTeX)
	}
	if extra := len(formulas) - len(shown); extra > 0 {
		fmt.Fprintf(b, "(%d more formulas omitted)\n", extra)
	}
}

func buildConceptPrompt(concepts []string, audience string) string {
	var b strings.Builder

	b.WriteString("Explain the following technical concepts in plain language")
	if audience != "" {
		fmt.Fprintf(&b, " for %s", audience)
	}
	b.WriteString(".\n\nConcepts:\n")
	for _, c := range concepts {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	b.WriteString(`
Respond with ONLY a JSON object in this exact shape:
{
  "explanations": [{"term": "the concept", "definition": "plain-language definition", "analogy": "everyday analogy", "relatedTerms": ["related term"]}]
}
Do not include any text outside the JSON object.`)

	return b.String()
}

func buildBodyPrompt(paper *domain.Paper, understanding *domain.StructuralUnderstanding, plan *domain.RecomposedContent, concepts []domain.ConceptExplanation, style domain.NarrativeStyle, language domain.NarrativeLanguage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a %s narrative retelling of the paper %q in %s.\n\n", styleDescription(style), paper.Title, languageName(language))
	fmt.Fprintf(&b, "Main objective: %s\n", understanding.MainObjective)
	fmt.Fprintf(&b, "Methodology: %s\n", understanding.Methodology)
	if len(understanding.KeyFindings) > 0 {
		fmt.Fprintf(&b, "Key findings: %s\n", strings.Join(understanding.KeyFindings, "; "))
	}

	b.WriteString("\nFollow this section plan:\n")
	for _, s := range plan.Sections {
		fmt.Fprintf(&b, "- %s (%s): %s\n", s.Heading, s.SuggestedLength, s.Purpose)
	}

	if len(concepts) > 0 {
		b.WriteString("\nWeave in these concept explanations where they help the reader:\n")
		for _, c := range concepts {
			fmt.Fprintf(&b, "- %s: %s\n", c.Term, c.Definition)
		}
	}

	b.WriteString("\nWrite the narrative in Markdown. Use the section headings from the plan. Respond with the narrative text only.")

	return b.String()
}

func buildFigurePrompt(figures []domain.Figure, understanding *domain.StructuralUnderstanding, language domain.NarrativeLanguage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Explain each figure of a paper about: %s. Write in %s.\n\nFigures:\n", understanding.MainObjective, languageName(language))
	for _, f := range figures {
		fmt.Fprintf(&b, "- %s: %s\n", f.Label, f.Caption)
	}

	b.WriteString(`
Respond with ONLY a JSON object in this exact shape:
{
  "explanations": [{"label": "figure label", "explanation": "what the figure shows in plain language", "relevance": "why it matters to the paper's argument"}]
}
Do not include any text outside the JSON object.`)

	return b.String()
}

func buildTitleSummaryPrompt(paper *domain.Paper, body string, style domain.NarrativeStyle, language domain.NarrativeLanguage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Propose a %s title and a one-paragraph summary, in %s, for this narrative retelling of the paper %q.\n\n", styleDescription(style), languageName(language), paper.Title)
	b.WriteString("Narrative opening:\n")
	b.WriteString(truncateText(body, bodyExcerptChars))

	b.WriteString(`

Respond with ONLY a JSON object in this exact shape:
{"title": "the narrative title", "summary": "one-paragraph summary"}
Do not include any text outside the JSON object.`)

	return b.String()
}

func styleDescription(style domain.NarrativeStyle) string {
	switch style {
	case domain.StyleLongform:
		return "long-form, in-depth"
	case domain.StyleJournalistic:
		return "journalistic, news-feature"
	case domain.StyleCasual:
		return "casual, conversational"
	default:
		return string(style)
	}
}

func languageName(language domain.NarrativeLanguage) string {
	switch language {
	case domain.LanguageKorean:
		return "Korean"
	default:
		return "English"
	}
}
