package proposal

import (
	"fmt"
	"slices"
	"strings"

	"github.com/futig/proposal-backend/internal/entity"
)

const systemPrompt = `You are an expert proposal writer.
You turn the facts gathered in a client interview into a polished, persuasive project proposal.
Use only the facts provided; where a detail is missing, make a reasonable, clearly labelled assumption.
Write in Markdown. Start every section with a level-2 heading that matches the requested section title exactly.`

// plan is the CPU-only part of a generation: the prompt and the audit trail.
type plan struct {
	sessionID string
	template  Template
	messages  []entity.ChatMessage
	sources   []entity.DraftSource
}

// orderAnswers puts catalog answers first in catalog importance order, then
// every other answer in insertion order.
func orderAnswers(session *entity.Session, catalog []entity.Question) []*entity.Answer {
	answers := session.OrderedAnswers()
	rank := make(map[string]int, len(catalog))
	for i, q := range catalog {
		rank[q.ID] = i
	}

	out := slices.Clone(answers)
	slices.SortStableFunc(out, func(a, b *entity.Answer) int {
		ra, aok := rank[a.QuestionKey]
		rb, bok := rank[b.QuestionKey]
		switch {
		case aok && bok:
			return ra - rb
		case aok:
			return -1
		case bok:
			return 1
		default:
			return 0
		}
	})
	return out
}

func buildPlan(session *entity.Session, catalog []entity.Question, t Template, threshold, topK int) *plan {
	ordered := orderAnswers(session, catalog)
	verbatim, rolled := selectVerbatim(ordered, t.Emphasis, threshold, topK)

	sources := make([]entity.DraftSource, 0, len(ordered))
	addSources := func(answers []*entity.Answer, isVerbatim bool) {
		for _, a := range answers {
			sources = append(sources, entity.DraftSource{
				QuestionKey: a.QuestionKey,
				Question:    a.Question,
				Section:     t.SectionFor(concernOf(a)),
				Verbatim:    isVerbatim,
			})
		}
	}
	addSources(verbatim, true)
	addSources(rolled, false)

	return &plan{
		sessionID: session.ID,
		template:  t,
		messages: []entity.ChatMessage{
			{Role: entity.RoleSystem, Content: systemPrompt},
			{Role: entity.RoleUser, Content: renderPrompt(t, verbatim, rolled, sources)},
		},
		sources: sources,
	}
}

func renderPrompt(t Template, verbatim, rolled []*entity.Answer, sources []entity.DraftSource) string {
	sectionOf := make(map[string]string, len(sources))
	for _, s := range sources {
		sectionOf[s.QuestionKey] = s.Section
	}

	var b strings.Builder
	b.WriteString(t.Intro)
	b.WriteString("\n\nInterview answers (each tagged with the section it must inform):\n")
	for _, a := range verbatim {
		fmt.Fprintf(&b, "\n[%s]\nQ: %s\nA: %s\n", sectionOf[a.QuestionKey], a.Question, a.Value)
	}

	if len(rolled) > 0 {
		b.WriteString("\nAdditional context (summarized answers):\n")
		for _, a := range rolled {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", sectionOf[a.QuestionKey], a.Question, summarize(a.Value))
		}
	}

	b.WriteString("\nInclude these sections, in this order:\n")
	for i, s := range t.Sections {
		fmt.Fprintf(&b, "%d. %s", i+1, s.Title)
		if s.MinWords > 0 {
			fmt.Fprintf(&b, " (at least %d words)", s.MinWords)
		}
		if s.Guidance != "" {
			fmt.Fprintf(&b, ": %s", s.Guidance)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nThe proposal MUST be at least %d words in total.\n", t.MinWords)
	b.WriteString(t.Style)
	b.WriteString("\n")
	return b.String()
}
