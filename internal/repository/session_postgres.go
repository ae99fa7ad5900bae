package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = &PostgresStore{}

// PostgresStore implements SessionRepository and HistoryStore using PostgreSQL.
// The schema comes from the migrations in this package.
type PostgresStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: time.Now,
	}
}

func (r *PostgresStore) CreateSession(ctx context.Context, session *entity.Session) error {
	metadata, err := encodeJSON(session.Metadata)
	if err != nil {
		return fmt.Errorf("encode session metadata: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO sessions (id, owner_id, owner_name, owner_email, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, session.Owner.ID, session.Owner.Name, session.Owner.Email,
		string(session.Status), metadata, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *PostgresStore) GetSession(ctx context.Context, id string) (*entity.Session, error) {
	var row sessionRow
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, owner_name, owner_email, status, metadata, created_at, updated_at
		FROM sessions WHERE id = $1`, id,
	).Scan(&row.ID, &row.OwnerID, &row.OwnerName, &row.OwnerEmail, &row.Status, &row.Metadata,
		&row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	session, err := toEntitySession(&row)
	if err != nil {
		return nil, err
	}

	answers, err := r.listAnswers(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := r.listMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	restoreHistory(session, answers, history)

	return session, nil
}

func (r *PostgresStore) listAnswers(ctx context.Context, sessionID string) ([]*entity.Answer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT question_key, question, answer, question_type, validation, metadata, created_at
		FROM session_answers WHERE session_id = $1 ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []*entity.Answer
	for rows.Next() {
		var row answerRow
		if err := rows.Scan(&row.QuestionKey, &row.Question, &row.Answer, &row.QuestionType,
			&row.Validation, &row.Metadata, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answer, err := toEntityAnswer(&row)
		if err != nil {
			return nil, err
		}
		answers = append(answers, answer)
	}
	return answers, rows.Err()
}

func (r *PostgresStore) listMessages(ctx context.Context, sessionID string) ([]entity.ChatMessage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT role, content FROM session_messages WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var history []entity.ChatMessage
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		history = append(history, entity.ChatMessage{Role: entity.MessageRole(role), Content: content})
	}
	return history, rows.Err()
}

// SaveAnswer locks the session row so concurrent writers cannot interleave
// positions or history sequence numbers.
func (r *PostgresStore) SaveAnswer(ctx context.Context, sessionID string, answer *entity.Answer) error {
	validation, err := encodeJSON(answer.Outcome)
	if err != nil {
		return fmt.Errorf("encode validation: %w", err)
	}
	metadata, err := encodeJSON(answer.Metadata)
	if err != nil {
		return fmt.Errorf("encode answer metadata: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.ErrSessionNotFound
		}
		return fmt.Errorf("lock session: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO session_answers
			(session_id, question_key, position, question, answer, question_type, validation, metadata, created_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM session_answers WHERE session_id = $1),
			$3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, question_key) DO UPDATE SET
			question = EXCLUDED.question,
			answer = EXCLUDED.answer,
			question_type = EXCLUDED.question_type,
			validation = EXCLUDED.validation,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at`,
		sessionID, answer.QuestionKey, answer.Question, answer.Value, string(answer.QuestionType),
		validation, metadata, answer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}

	var seq int
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM session_messages WHERE session_id = $1`, sessionID).
		Scan(&seq)
	if err != nil {
		return fmt.Errorf("last history seq: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO session_messages (session_id, seq, role, content)
		VALUES ($1, $2, $3, $4), ($1, $5, $6, $7)`,
		sessionID, seq+1, string(entity.RoleAssistant), answer.Question,
		seq+2, string(entity.RoleUser), answer.Value,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE sessions SET updated_at = $2 WHERE id = $1`, sessionID, answer.CreatedAt)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit answer: %w", err)
	}
	return nil
}

func (r *PostgresStore) UpdateSessionStatus(ctx context.Context, id string, status entity.SessionStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE sessions SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), r.now())
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrSessionNotFound
	}
	return nil
}

// Close releases the pool.
func (r *PostgresStore) Close() error {
	r.db.Close()
	return nil
}
