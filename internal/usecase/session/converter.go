package session

import "github.com/futig/proposal-backend/internal/entity"

// toSessionDTO converts a session to its transport view, answers in insertion order
func toSessionDTO(session *entity.Session) *entity.SessionDTO {
	answers := make([]entity.AnswerDTO, 0, len(session.AnswerOrder))
	for _, a := range session.OrderedAnswers() {
		answers = append(answers, entity.AnswerDTO{
			QuestionKey:  a.QuestionKey,
			Question:     a.Question,
			Answer:       a.Value,
			QuestionType: a.QuestionType,
			CreatedAt:    a.CreatedAt,
		})
	}

	return &entity.SessionDTO{
		ID:            session.ID,
		Owner:         session.Owner,
		Status:        session.Status,
		Answers:       answers,
		HistoryLength: len(session.History),
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	}
}
