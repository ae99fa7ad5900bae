package validator

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/futig/proposal-backend/internal/entity"
)

// Validator checks transport requests before they reach the use cases.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateCreateSession validates CreateSessionRequest
func (v *Validator) ValidateCreateSession(req *entity.CreateSessionRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("%w: user_id", entity.ErrMissingField)
	}
	if strings.TrimSpace(req.UserName) == "" {
		return fmt.Errorf("%w: user_name", entity.ErrMissingField)
	}
	if req.UserEmail != nil && !strings.Contains(*req.UserEmail, "@") {
		return fmt.Errorf("%w: user_email %q", entity.ErrInvalidParameter, *req.UserEmail)
	}
	return nil
}

// ValidateSubmitAnswer validates answer submission. Content rules live in AnswerValidator.
func (v *Validator) ValidateSubmitAnswer(req *entity.SubmitAnswerRequest) error {
	if strings.TrimSpace(req.Question) == "" {
		return fmt.Errorf("%w: question", entity.ErrMissingField)
	}
	return nil
}

// ValidateGenerateProposal validates the format and the optional callback URL.
func (v *Validator) ValidateGenerateProposal(req *entity.GenerateProposalRequest) (entity.ProposalFormat, error) {
	format, err := entity.ParseProposalFormat(req.Format)
	if err != nil {
		return "", err
	}
	if req.CallbackURL != "" {
		if err := ValidateCallbackURL(req.CallbackURL); err != nil {
			return "", err
		}
	}
	return format, nil
}

// ValidateCallbackURL accepts absolute http(s) URLs only.
func ValidateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: callback_url %q", entity.ErrInvalidParameter, raw)
	}
	return nil
}
