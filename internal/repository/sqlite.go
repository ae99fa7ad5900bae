package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
	_ "modernc.org/sqlite"
)

var _ Store = &SQLiteStore{}

// SQLiteStore is the embedded single-file store.
type SQLiteStore struct {
	db *sql.DB
	// writeMu serializes writers; SQLite allows one at a time and this avoids SQLITE_BUSY.
	writeMu sync.Mutex
	now     func() time.Time
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		owner_name TEXT NOT NULL,
		owner_email TEXT,
		status TEXT NOT NULL,
		metadata TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_answers (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		question_key TEXT NOT NULL,
		position INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		question_type TEXT NOT NULL,
		validation TEXT,
		metadata TEXT,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, question_key)
	);

	CREATE TABLE IF NOT EXISTS session_messages (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		PRIMARY KEY (session_id, seq)
	);

	CREATE TABLE IF NOT EXISTS proposal_drafts (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		version INTEGER NOT NULL,
		format TEXT NOT NULL,
		content TEXT NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		sources TEXT,
		digest TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (session_id, version)
	);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session *entity.Session) error {
	metadata, err := encodeJSON(session.Metadata)
	if err != nil {
		return fmt.Errorf("encode session metadata: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, owner_id, owner_name, owner_email, status, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Owner.ID, session.Owner.Name, session.Owner.Email,
		string(session.Status), nullableText(metadata),
		session.CreatedAt.UnixNano(), session.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*entity.Session, error) {
	var (
		row                  sessionRow
		metadata             sql.NullString
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, owner_name, owner_email, status, metadata, created_at, updated_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&row.ID, &row.OwnerID, &row.OwnerName, &row.OwnerEmail, &row.Status, &metadata, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	row.Metadata = []byte(metadata.String)
	row.CreatedAt = fromUnixNano(createdAt)
	row.UpdatedAt = fromUnixNano(updatedAt)

	session, err := toEntitySession(&row)
	if err != nil {
		return nil, err
	}

	answers, err := s.listAnswers(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.listMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	restoreHistory(session, answers, history)

	return session, nil
}

func (s *SQLiteStore) listAnswers(ctx context.Context, sessionID string) ([]*entity.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_key, question, answer, question_type, validation, metadata, created_at
		FROM session_answers WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []*entity.Answer
	for rows.Next() {
		var (
			row                  answerRow
			validation, metadata sql.NullString
			createdAt            int64
		)
		if err := rows.Scan(&row.QuestionKey, &row.Question, &row.Answer, &row.QuestionType,
			&validation, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		row.Validation = []byte(validation.String)
		row.Metadata = []byte(metadata.String)
		row.CreatedAt = fromUnixNano(createdAt)

		answer, err := toEntityAnswer(&row)
		if err != nil {
			return nil, err
		}
		answers = append(answers, answer)
	}
	return answers, rows.Err()
}

func (s *SQLiteStore) listMessages(ctx context.Context, sessionID string) ([]entity.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM session_messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var history []entity.ChatMessage
	for rows.Next() {
		var msg entity.ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}

func (s *SQLiteStore) SaveAnswer(ctx context.Context, sessionID string, answer *entity.Answer) error {
	validation, err := encodeJSON(answer.Outcome)
	if err != nil {
		return fmt.Errorf("encode validation: %w", err)
	}
	metadata, err := encodeJSON(answer.Metadata)
	if err != nil {
		return fmt.Errorf("encode answer metadata: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`,
		answer.CreatedAt.UnixNano(), sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrSessionNotFound
	}

	// position is fixed on first insert, so an overwrite keeps its place
	_, err = tx.ExecContext(ctx, `
		INSERT INTO session_answers
			(session_id, question_key, position, question, answer, question_type, validation, metadata, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM session_answers WHERE session_id = ?),
			?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, question_key) DO UPDATE SET
			question = excluded.question,
			answer = excluded.answer,
			question_type = excluded.question_type,
			validation = excluded.validation,
			metadata = excluded.metadata,
			created_at = excluded.created_at`,
		sessionID, answer.QuestionKey, sessionID,
		answer.Question, answer.Value, string(answer.QuestionType),
		nullableText(validation), nullableText(metadata), answer.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO session_messages (session_id, seq, role, content)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ? FROM session_messages WHERE session_id = ?`,
		sessionID, string(entity.RoleAssistant), answer.Question, sessionID)
	if err != nil {
		return fmt.Errorf("append question turn: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO session_messages (session_id, seq, role, content)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ? FROM session_messages WHERE session_id = ?`,
		sessionID, string(entity.RoleUser), answer.Value, sessionID)
	if err != nil {
		return fmt.Errorf("append answer turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit answer: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, id string, status entity.SessionStatus) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrSessionNotFound
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, draft *entity.ProposalDraft) (*entity.ProposalDraft, error) {
	stored := prepareDraft(draft, s.now)
	sources, err := encodeJSON(stored.Sources)
	if err != nil {
		return nil, fmt.Errorf("encode draft sources: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, stored.SessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM proposal_drafts WHERE session_id = ?`, stored.SessionID,
	).Scan(&stored.Version); err != nil {
		return nil, fmt.Errorf("next draft version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO proposal_drafts (id, session_id, version, format, content, provider, sources, digest, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.SessionID, stored.Version, string(stored.Format), stored.Content,
		stored.Provider, nullableText(sources), stored.Digest, stored.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit draft: %w", err)
	}
	return stored, nil
}

const draftColumns = `id, session_id, version, format, content, provider, sources, digest, created_at`

func (s *SQLiteStore) GetLatest(ctx context.Context, sessionID string) (*entity.ProposalDraft, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+draftColumns+`
		FROM proposal_drafts WHERE session_id = ? ORDER BY version DESC LIMIT 1`, sessionID)
	draft, err := scanSQLiteDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrDraftNotFound
	}
	return draft, err
}

func (s *SQLiteStore) ListVersions(ctx context.Context, sessionID string) ([]*entity.ProposalDraft, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+draftColumns+`
		FROM proposal_drafts WHERE session_id = ? ORDER BY version`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	drafts := []*entity.ProposalDraft{}
	for rows.Next() {
		draft, err := scanSQLiteDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDraft(scanner rowScanner) (*entity.ProposalDraft, error) {
	var (
		row       draftRow
		sources   sql.NullString
		createdAt int64
	)
	err := scanner.Scan(&row.ID, &row.SessionID, &row.Version, &row.Format, &row.Content,
		&row.Provider, &sources, &row.Digest, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan draft: %w", err)
	}
	row.Sources = []byte(sources.String)
	row.CreatedAt = fromUnixNano(createdAt)
	return toEntityDraft(&row)
}

func nullableText(data []byte) any {
	if data == nil {
		return nil
	}
	return string(data)
}

func fromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
