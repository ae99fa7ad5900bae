package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
)

// Rows shared by the SQL drivers. JSON columns travel as raw bytes.

type sessionRow struct {
	ID         string
	OwnerID    string
	OwnerName  string
	OwnerEmail *string
	Status     string
	Metadata   []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type answerRow struct {
	QuestionKey  string
	Question     string
	Answer       string
	QuestionType string
	Validation   []byte
	Metadata     []byte
	CreatedAt    time.Time
}

type draftRow struct {
	ID        string
	SessionID string
	Version   int
	Format    string
	Content   string
	Provider  string
	Sources   []byte
	Digest    string
	CreatedAt time.Time
}

func toEntitySession(row *sessionRow) (*entity.Session, error) {
	session := entity.NewSession(row.ID, entity.User{
		ID:    row.OwnerID,
		Name:  row.OwnerName,
		Email: row.OwnerEmail,
	}, nil, row.CreatedAt)
	session.Status = entity.SessionStatus(row.Status)
	session.UpdatedAt = row.UpdatedAt

	if err := decodeJSON(row.Metadata, &session.Metadata); err != nil {
		return nil, fmt.Errorf("decode session metadata: %w", err)
	}
	return session, nil
}

func toEntityAnswer(row *answerRow) (*entity.Answer, error) {
	answer := &entity.Answer{
		QuestionKey:  row.QuestionKey,
		Question:     row.Question,
		Value:        row.Answer,
		QuestionType: entity.QuestionType(row.QuestionType),
		CreatedAt:    row.CreatedAt,
	}
	if err := decodeJSON(row.Validation, &answer.Outcome); err != nil {
		return nil, fmt.Errorf("decode answer validation: %w", err)
	}
	if err := decodeJSON(row.Metadata, &answer.Metadata); err != nil {
		return nil, fmt.Errorf("decode answer metadata: %w", err)
	}
	return answer, nil
}

func toEntityDraft(row *draftRow) (*entity.ProposalDraft, error) {
	draft := &entity.ProposalDraft{
		ID:        row.ID,
		SessionID: row.SessionID,
		Version:   row.Version,
		Format:    entity.ProposalFormat(row.Format),
		Content:   row.Content,
		Provider:  row.Provider,
		Digest:    row.Digest,
		CreatedAt: row.CreatedAt,
	}
	if err := decodeJSON(row.Sources, &draft.Sources); err != nil {
		return nil, fmt.Errorf("decode draft sources: %w", err)
	}
	return draft, nil
}

// restoreHistory rebuilds a session from its ordered answers and messages.
// PutAnswer would append history turns again, so answers are placed directly.
func restoreHistory(session *entity.Session, answers []*entity.Answer, history []entity.ChatMessage) {
	for _, a := range answers {
		session.Answers[a.QuestionKey] = a
		session.AnswerOrder = append(session.AnswerOrder, a.QuestionKey)
	}
	session.History = append(session.History, history...)
}

func encodeJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeJSON(data []byte, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
