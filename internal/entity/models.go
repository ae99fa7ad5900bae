package entity

import (
	"fmt"
	"strings"
	"time"
)

type SessionStatus string

// Session status tracks where the proposal dialogue is in its lifecycle
const (
	SessionStatusActive     SessionStatus = "active"     // Collecting answers
	SessionStatusGenerating SessionStatus = "generating" // At least one draft exists, answers still accepted
	SessionStatusComplete   SessionStatus = "complete"   // Closed successfully
	SessionStatusAbandoned  SessionStatus = "abandoned"  // Closed by the user or an operator
)

// sessionTransitions lists every legal status change.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusActive:     {SessionStatusGenerating, SessionStatusAbandoned},
	SessionStatusGenerating: {SessionStatusComplete, SessionStatusAbandoned},
}

func (s SessionStatus) Validate() error {
	switch s {
	case SessionStatusActive, SessionStatusGenerating, SessionStatusComplete, SessionStatusAbandoned:
		return nil
	default:
		return fmt.Errorf("%w: unknown session status %q", ErrInvalidParameter, string(s))
	}
}

// CanTransition reports whether a session in status s may move to next.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AcceptsAnswers reports whether answers may be recorded in this status.
func (s SessionStatus) AcceptsAnswers() bool {
	return s == SessionStatusActive || s == SessionStatusGenerating
}

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one role-tagged turn of a conversation.
type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// User owns a session.
type User struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
}

type QuestionType string

// Known question types. The set is open: unknown types fall back to the GENERAL rules.
const (
	QuestionTypeGeneral  QuestionType = "GENERAL"
	QuestionTypeBudget   QuestionType = "BUDGET"
	QuestionTypeTimeline QuestionType = "TIMELINE"
)

// NormalizeQuestionType upper-cases a caller supplied type; empty stays empty.
func NormalizeQuestionType(raw string) QuestionType {
	return QuestionType(strings.ToUpper(strings.TrimSpace(raw)))
}

// Question is a canonical catalog entry.
type Question struct {
	ID         string       `json:"id"`
	Text       string       `json:"question"`
	Type       QuestionType `json:"type"`
	Importance int          `json:"importance"`
}

// AnsweredBy reports whether a recorded question key counts as answering q.
// The match is a loose case-insensitive substring test on both the id and the text:
// an unrelated dynamic question that happens to contain the catalog text also counts.
func (q Question) AnsweredBy(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, strings.ToLower(q.ID)) || strings.Contains(k, strings.ToLower(q.Text))
}

type ValidationOutcome struct {
	Passing bool   `json:"passing"`
	Reason  string `json:"reason,omitempty"`
}

// Answer is an accepted response to one question.
type Answer struct {
	QuestionKey  string            `json:"question_key"`
	Question     string            `json:"question"`
	Value        string            `json:"answer"`
	QuestionType QuestionType      `json:"question_type"`
	Outcome      ValidationOutcome `json:"validation"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Session is the mutable record of one Q&A dialogue.
// Answers are looked up by key; AnswerOrder keeps the insertion order for auditing.
type Session struct {
	ID          string             `json:"session_id"`
	Owner       User               `json:"owner"`
	Status      SessionStatus      `json:"status"`
	History     []ChatMessage      `json:"history"`
	Answers     map[string]*Answer `json:"-"`
	AnswerOrder []string           `json:"-"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewSession returns an empty ACTIVE session.
func NewSession(id string, owner User, metadata map[string]any, now time.Time) *Session {
	return &Session{
		ID:        id,
		Owner:     owner,
		Status:    SessionStatusActive,
		History:   []ChatMessage{},
		Answers:   map[string]*Answer{},
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PutAnswer inserts or overwrites the answer for its key and appends the
// question/answer turns to the history.
func (s *Session) PutAnswer(a *Answer) {
	if s.Answers == nil {
		s.Answers = map[string]*Answer{}
	}
	if _, exists := s.Answers[a.QuestionKey]; !exists {
		s.AnswerOrder = append(s.AnswerOrder, a.QuestionKey)
	}
	s.Answers[a.QuestionKey] = a
	s.History = append(s.History,
		ChatMessage{Role: RoleAssistant, Content: a.Question},
		ChatMessage{Role: RoleUser, Content: a.Value},
	)
	s.UpdatedAt = a.CreatedAt
}

// OrderedAnswers returns answers in insertion order.
func (s *Session) OrderedAnswers() []*Answer {
	out := make([]*Answer, 0, len(s.AnswerOrder))
	for _, key := range s.AnswerOrder {
		if a, ok := s.Answers[key]; ok {
			out = append(out, a)
		}
	}
	return out
}

// AnswerMap returns a copy of the key -> answer mapping.
func (s *Session) AnswerMap() map[string]*Answer {
	out := make(map[string]*Answer, len(s.Answers))
	for k, v := range s.Answers {
		out[k] = v
	}
	return out
}

// Clone returns a deep enough copy for readers outside the session lock.
func (s *Session) Clone() *Session {
	c := *s
	c.History = append([]ChatMessage(nil), s.History...)
	c.AnswerOrder = append([]string(nil), s.AnswerOrder...)
	c.Answers = s.AnswerMap()
	return &c
}

type QuestionSource string

const (
	QuestionSourceCatalog QuestionSource = "catalog"
	QuestionSourceDynamic QuestionSource = "dynamic"
	QuestionSourceDefault QuestionSource = "default"
)

// DefaultQuestion is asked when neither the catalog nor a provider yields a question.
const DefaultQuestion = "Is there any additional information you would like to provide for the proposal?"

// NextQuestion is what the selector hands back to a transport.
type NextQuestion struct {
	Key        string         `json:"key"`
	Text       string         `json:"question"`
	Type       QuestionType   `json:"type"`
	Importance int            `json:"importance,omitempty"`
	Source     QuestionSource `json:"source"`
}

// DefaultNextQuestion wraps DefaultQuestion.
func DefaultNextQuestion() *NextQuestion {
	return &NextQuestion{
		Key:    DefaultQuestion,
		Text:   DefaultQuestion,
		Type:   QuestionTypeGeneral,
		Source: QuestionSourceDefault,
	}
}
