package proposal

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/futig/proposal-backend/internal/entity"
)

const rollupAnswerLength = 160

// concernKeywords classify an answer by the words of its question. The first
// concern with a hit wins, so the order matters.
var concernKeywords = []struct {
	concern  entity.SectionConcern
	keywords []string
}{
	{entity.ConcernBudget, []string{"budget", "cost", "price", "pricing", "funding", "spend"}},
	{entity.ConcernTimeline, []string{"timeline", "deadline", "schedule", "milestone", "launch", "date"}},
	{entity.ConcernTeam, []string{"stakeholder", "team", "staff", "resource", "people", "sponsor"}},
	{entity.ConcernRisk, []string{"risk", "constraint", "challenge", "dependency", "assumption"}},
	{entity.ConcernOutcomes, []string{"success", "criteria", "outcome", "metric", "kpi", "measure", "impact"}},
	{entity.ConcernTerms, []string{"term", "contract", "legal", "payment", "warranty"}},
	{entity.ConcernCover, []string{"name", "title", "company", "client"}},
	{entity.ConcernBackground, []string{"goal", "objective", "background", "problem", "why", "purpose"}},
	{entity.ConcernScope, []string{"scope", "deliverable", "feature", "requirement", "integration", "work"}},
}

// concernOf picks the concern an answer serves. Typed answers are unambiguous;
// the rest are classified by their question key and text.
func concernOf(a *entity.Answer) entity.SectionConcern {
	switch a.QuestionType {
	case entity.QuestionTypeBudget:
		return entity.ConcernBudget
	case entity.QuestionTypeTimeline:
		return entity.ConcernTimeline
	}

	words := tokenize(a.QuestionKey + " " + a.Question)
	for _, ck := range concernKeywords {
		for _, kw := range ck.keywords {
			if hasPrefixedWord(words, kw) {
				return ck.concern
			}
		}
	}
	return entity.ConcernScope
}

// relevance counts how many emphasis terms an answer touches. A term counts once
// per answer so a long answer cannot win by repetition alone.
func relevance(a *entity.Answer, emphasis []string) int {
	words := tokenize(a.QuestionKey + " " + a.Question + " " + a.Value)
	score := 0
	for _, term := range emphasis {
		if hasPrefixedWord(words, term) {
			score++
		}
	}
	return score
}

// selectVerbatim splits ordered answers into those embedded verbatim and those
// rolled up. Nothing is filtered until the answer count exceeds threshold.
// Both halves keep the incoming order.
func selectVerbatim(answers []*entity.Answer, emphasis []string, threshold, topK int) (verbatim, rolled []*entity.Answer) {
	if len(answers) <= threshold || topK <= 0 || topK >= len(answers) {
		return answers, nil
	}

	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, len(answers))
	for i, a := range answers {
		ranked[i] = scored{idx: i, score: relevance(a, emphasis)}
	}
	// stable on ties: earlier (more important) answers win
	slices.SortStableFunc(ranked, func(x, y scored) int { return y.score - x.score })

	keep := make(map[int]bool, topK)
	for _, r := range ranked[:topK] {
		keep[r.idx] = true
	}
	for i, a := range answers {
		if keep[i] {
			verbatim = append(verbatim, a)
		} else {
			rolled = append(rolled, a)
		}
	}
	return verbatim, rolled
}

// summarize shortens an answer for the rolled-up block: first sentence or line,
// capped at rollupAnswerLength runes.
func summarize(value string) string {
	text := strings.TrimSpace(value)
	if i := strings.IndexAny(text, "\n"); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	if i := strings.Index(text, ". "); i >= 0 {
		text = text[:i+1]
	}
	if utf8.RuneCountInString(text) > rollupAnswerLength {
		text = string([]rune(text)[:rollupAnswerLength]) + "..."
	}
	return text
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// hasPrefixedWord matches whole words and their inflections ("milestone" hits "milestones").
func hasPrefixedWord(words []string, term string) bool {
	for _, w := range words {
		if strings.HasPrefix(w, term) {
			return true
		}
	}
	return false
}
