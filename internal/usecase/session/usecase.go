package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/pkg/lock"
	"github.com/futig/proposal-backend/internal/pkg/logger"
	"github.com/futig/proposal-backend/internal/pkg/validator"
	"github.com/futig/proposal-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// SessionUsecase implements the session state machine and the submit-answer flow.
// Every mutation of one session runs inside that session's exclusive section.
type SessionUsecase struct {
	sessionRepo     repository.SessionRepository
	locks           *lock.Keyed
	requests        *validator.Validator
	answerValidator AnswerValidator
	selector        QuestionSelector
	now             func() time.Time
}

// NewUsecase creates a new session use case. locks must be the same instance
// the proposal synthesizer uses so answers and drafts serialize per session.
func NewUsecase(
	sessionRepo repository.SessionRepository,
	locks *lock.Keyed,
	requests *validator.Validator,
	answerValidator AnswerValidator,
	selector QuestionSelector,
) *SessionUsecase {
	return &SessionUsecase{
		sessionRepo:     sessionRepo,
		locks:           locks,
		requests:        requests,
		answerValidator: answerValidator,
		selector:        selector,
		now:             time.Now,
	}
}

// CreateSession starts an ACTIVE session and returns the first question.
func (uc *SessionUsecase) CreateSession(
	ctx context.Context,
	req *entity.CreateSessionRequest,
) (*entity.CreateSessionResponse, error) {
	if err := uc.requests.ValidateCreateSession(req); err != nil {
		return nil, err
	}

	session := entity.NewSession(uuid.New().String(), entity.User{
		ID:    req.UserID,
		Name:  req.UserName,
		Email: req.UserEmail,
	}, req.Metadata, uc.now().UTC())

	if err := uc.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	ctx = logger.WithSession(ctx, session.ID)
	ctxzap.Info(ctx, "session created", zap.String("owner_id", req.UserID))

	return &entity.CreateSessionResponse{
		SessionID:    session.ID,
		Status:       session.Status,
		NextQuestion: uc.nextFor(ctx, session),
		Message:      "Session created successfully",
	}, nil
}

// Session returns the raw session record.
func (uc *SessionUsecase) Session(ctx context.Context, id string) (*entity.Session, error) {
	session, err := uc.sessionRepo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// GetSession returns the transport view of a session.
func (uc *SessionUsecase) GetSession(ctx context.Context, id string) (*entity.SessionDTO, error) {
	session, err := uc.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSessionDTO(session), nil
}

// SubmitAnswer resolves the question key, validates the answer, records it
// and returns the next question. A rejected answer leaves the session untouched.
func (uc *SessionUsecase) SubmitAnswer(
	ctx context.Context,
	sessionID string,
	req *entity.SubmitAnswerRequest,
) (*entity.SubmitAnswerResponse, error) {
	if err := uc.requests.ValidateSubmitAnswer(req); err != nil {
		return nil, err
	}
	ctx = logger.WithSession(ctx, sessionID)

	key, question, qtype := uc.resolveQuestion(req)

	// fail fast before paying for a semantic check
	current, err := uc.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !current.Status.AcceptsAnswers() {
		return nil, &entity.ConflictError{SessionID: sessionID, Status: current.Status, Operation: "record answer"}
	}

	outcome, err := uc.answerValidator.Validate(ctx, key, question, qtype, req.Answer)
	if err != nil {
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			ctxzap.Info(ctx, "answer rejected",
				zap.String("question_key", key),
				zap.String("layer", string(verr.Layer)),
				zap.String("reason", verr.Reason),
			)
		}
		return nil, err
	}

	session, err := uc.RecordAnswer(ctx, sessionID, &entity.Answer{
		QuestionKey:  key,
		Question:     question,
		Value:        req.Answer,
		QuestionType: qtype,
		Outcome:      outcome,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	return &entity.SubmitAnswerResponse{
		Success:      true,
		NextQuestion: uc.nextFor(ctx, session),
		Message:      "Answer recorded",
	}, nil
}

// RecordAnswer stores an already validated answer. It fails with a ConflictError
// when the session no longer accepts answers and returns the updated session.
func (uc *SessionUsecase) RecordAnswer(ctx context.Context, sessionID string, answer *entity.Answer) (*entity.Session, error) {
	unlock := uc.locks.Lock(sessionID)
	defer unlock()

	session, err := uc.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.AcceptsAnswers() {
		return nil, &entity.ConflictError{SessionID: sessionID, Status: session.Status, Operation: "record answer"}
	}

	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = uc.now().UTC()
	}
	if err := uc.sessionRepo.SaveAnswer(ctx, sessionID, answer); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}
	session.PutAnswer(answer)

	ctxzap.Info(ctx, "answer recorded",
		zap.String("question_key", answer.QuestionKey),
		zap.String("question_type", string(answer.QuestionType)),
		zap.Int("answers", len(session.AnswerOrder)),
	)
	return session, nil
}

// NextQuestion never returns nil: when selection yields nothing the default
// question is used. Keys in skipped are not asked again.
func (uc *SessionUsecase) NextQuestion(ctx context.Context, sessionID string, skipped ...string) (*entity.NextQuestion, error) {
	session, err := uc.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return uc.nextFor(logger.WithSession(ctx, sessionID), session, skipped...), nil
}

// Unanswered lists the catalog questions the session has not covered.
func (uc *SessionUsecase) Unanswered(ctx context.Context, sessionID string) ([]entity.Question, error) {
	session, err := uc.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return uc.selector.Unanswered(session), nil
}

func (uc *SessionUsecase) Complete(ctx context.Context, sessionID string) (*entity.SessionDTO, error) {
	return uc.Transition(ctx, sessionID, entity.SessionStatusComplete)
}

func (uc *SessionUsecase) Abandon(ctx context.Context, sessionID string) (*entity.SessionDTO, error) {
	return uc.Transition(ctx, sessionID, entity.SessionStatusAbandoned)
}

// Transition moves the session to a new status if the move is legal.
func (uc *SessionUsecase) Transition(
	ctx context.Context,
	sessionID string,
	to entity.SessionStatus,
) (*entity.SessionDTO, error) {
	unlock := uc.locks.Lock(sessionID)
	defer unlock()

	session, err := uc.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.CanTransition(to) {
		return nil, &entity.InvalidStateError{SessionID: sessionID, From: session.Status, To: to}
	}

	if err := uc.sessionRepo.UpdateSessionStatus(ctx, sessionID, to); err != nil {
		return nil, fmt.Errorf("update session status: %w", err)
	}

	ctxzap.Info(logger.WithSession(ctx, sessionID), "session status changed",
		zap.String("from", string(session.Status)),
		zap.String("to", string(to)),
	)
	session.Status = to
	session.UpdatedAt = uc.now().UTC()
	return toSessionDTO(session), nil
}

// resolveQuestion maps the caller's question to a key, its text and its type.
// A catalog id or exact catalog text resolves to the catalog entry; anything
// else is a free-text question keyed by its own text.
func (uc *SessionUsecase) resolveQuestion(req *entity.SubmitAnswerRequest) (string, string, entity.QuestionType) {
	qtype := entity.NormalizeQuestionType(req.QuestionType)

	if q, ok := uc.selector.Lookup(req.Question); ok {
		if qtype == "" {
			qtype = q.Type
		}
		return q.ID, q.Text, qtype
	}

	if qtype == "" {
		qtype = entity.QuestionTypeGeneral
	}
	return req.Question, req.Question, qtype
}

func (uc *SessionUsecase) nextFor(ctx context.Context, session *entity.Session, skipped ...string) *entity.NextQuestion {
	if next := uc.selector.Next(ctx, session, skipped...); next != nil {
		return next
	}
	return entity.DefaultNextQuestion()
}
