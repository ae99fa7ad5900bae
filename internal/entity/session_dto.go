package entity

import "time"

type CreateSessionRequest struct {
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name"`
	UserEmail *string        `json:"user_email,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type CreateSessionResponse struct {
	SessionID    string        `json:"session_id"`
	Status       SessionStatus `json:"status"`
	NextQuestion *NextQuestion `json:"next_question,omitempty"`
	Message      string        `json:"message"`
}

type SubmitAnswerRequest struct {
	Question     string         `json:"question"`
	Answer       string         `json:"answer"`
	QuestionType string         `json:"question_type,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type SubmitAnswerResponse struct {
	Success      bool          `json:"success"`
	NextQuestion *NextQuestion `json:"next_question,omitempty"`
	Message      string        `json:"message,omitempty"`
	Kind         ErrorKind     `json:"kind,omitempty"`
}

type AnswerDTO struct {
	QuestionKey  string       `json:"question_key"`
	Question     string       `json:"question"`
	Answer       string       `json:"answer"`
	QuestionType QuestionType `json:"question_type"`
	CreatedAt    time.Time    `json:"created_at"`
}

type SessionDTO struct {
	ID            string        `json:"session_id"`
	Owner         User          `json:"owner"`
	Status        SessionStatus `json:"status"`
	Answers       []AnswerDTO   `json:"answers"`
	HistoryLength int           `json:"history_length"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type GenerateProposalRequest struct {
	Format          string `json:"format"`
	IncludeMetadata bool   `json:"include_metadata"`
	CallbackURL     string `json:"callback_url,omitempty"`
}

type ProposalMetadata struct {
	Sources  []DraftSource `json:"sources"`
	Provider string        `json:"provider,omitempty"`
	Digest   string        `json:"digest"`
}

type GenerateProposalResponse struct {
	Proposal  string            `json:"proposal"`
	Format    ProposalFormat    `json:"format"`
	Version   int               `json:"version"`
	SessionID string            `json:"session_id"`
	Metadata  *ProposalMetadata `json:"metadata,omitempty"`
}

type ProposalVersionDTO struct {
	Version   int            `json:"version"`
	Format    ProposalFormat `json:"format"`
	Provider  string         `json:"provider,omitempty"`
	Digest    string         `json:"digest"`
	CreatedAt time.Time      `json:"created_at"`
}

type ErrorResponse struct {
	Error   string    `json:"error"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message,omitempty"`
	Details any       `json:"details,omitempty"`
}
