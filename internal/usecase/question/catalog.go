package question

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/futig/proposal-backend/internal/entity"
)

// DefaultQuestions is the built-in catalog, in catalog order.
var DefaultQuestions = []entity.Question{
	{ID: "project_name", Text: "What is the name of the project?", Type: entity.QuestionTypeGeneral, Importance: 10},
	{ID: "project_goals", Text: "What are the main goals and objectives of this project?", Type: entity.QuestionTypeGeneral, Importance: 9},
	{ID: "budget", Text: "What is the estimated budget for this project?", Type: entity.QuestionTypeBudget, Importance: 8},
	{ID: "timeline", Text: "What is the desired timeline or deadline for this project?", Type: entity.QuestionTypeTimeline, Importance: 8},
	{ID: "stakeholders", Text: "Who are the key stakeholders for this project?", Type: entity.QuestionTypeGeneral, Importance: 7},
	{ID: "success_criteria", Text: "What are the success criteria for this project?", Type: entity.QuestionTypeGeneral, Importance: 7},
	{ID: "scope", Text: "What is the scope of work for this project?", Type: entity.QuestionTypeGeneral, Importance: 9},
}

// Catalog is an immutable ordered set of canonical questions.
type Catalog struct {
	questions []entity.Question
}

// NewCatalog copies questions so later changes by the caller do not leak in.
func NewCatalog(questions []entity.Question) (*Catalog, error) {
	seen := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if q.ID == "" || strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("%w: catalog question needs id and text", entity.ErrMissingField)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate catalog question %s", entity.ErrInvalidParameter, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return &Catalog{questions: slices.Clone(questions)}, nil
}

// DefaultCatalog returns the built-in 7 question catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{questions: slices.Clone(DefaultQuestions)}
}

// Questions returns the catalog in catalog order.
func (c *Catalog) Questions() []entity.Question {
	return slices.Clone(c.questions)
}

// ByImportance returns the catalog sorted by descending importance, catalog order on ties.
func (c *Catalog) ByImportance() []entity.Question {
	out := slices.Clone(c.questions)
	slices.SortStableFunc(out, func(a, b entity.Question) int { return cmp.Compare(b.Importance, a.Importance) })
	return out
}

// Lookup finds the catalog question a key names exactly, by id or by text.
// The loose answered-by match is deliberately not used here: a dynamic question
// mentioning "budget" must not inherit the BUDGET rules.
func (c *Catalog) Lookup(key string) (entity.Question, bool) {
	k := strings.TrimSpace(key)
	for _, q := range c.questions {
		if strings.EqualFold(q.ID, k) || strings.EqualFold(q.Text, k) {
			return q, true
		}
	}
	return entity.Question{}, false
}

// Unanswered filters the catalog to questions not matched by any of keys,
// sorted by descending importance with catalog order kept on ties.
func (c *Catalog) Unanswered(keys []string) []entity.Question {
	out := make([]entity.Question, 0, len(c.questions))
	for _, q := range c.ByImportance() {
		answered := false
		for _, k := range keys {
			if q.AnsweredBy(k) {
				answered = true
				break
			}
		}
		if !answered {
			out = append(out, q)
		}
	}
	return out
}
