package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/jackc/pgx/v5"
)

// Append takes a transaction-scoped advisory lock on the session id, so
// concurrent appends line up behind each other; the unique (session_id, version)
// constraint backs it up.
func (r *PostgresStore) Append(ctx context.Context, draft *entity.ProposalDraft) (*entity.ProposalDraft, error) {
	stored := prepareDraft(draft, r.now)
	sources, err := encodeJSON(stored.Sources)
	if err != nil {
		return nil, fmt.Errorf("encode draft sources: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, stored.SessionID); err != nil {
		return nil, fmt.Errorf("lock draft history: %w", err)
	}

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, stored.SessionID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return nil, entity.ErrSessionNotFound
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO proposal_drafts (id, session_id, version, format, content, provider, sources, digest, created_at)
		SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4, $5, $6::jsonb, $7, $8::timestamptz
		FROM proposal_drafts WHERE session_id = $2
		RETURNING version`,
		stored.ID, stored.SessionID, string(stored.Format), stored.Content, stored.Provider,
		sources, stored.Digest, stored.CreatedAt,
	).Scan(&stored.Version)
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit draft: %w", err)
	}
	return stored, nil
}

func (r *PostgresStore) GetLatest(ctx context.Context, sessionID string) (*entity.ProposalDraft, error) {
	rows, err := r.db.Query(ctx, `SELECT `+draftColumns+`
		FROM proposal_drafts WHERE session_id = $1 ORDER BY version DESC LIMIT 1`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get latest draft: %w", err)
	}
	drafts, err := collectPostgresDrafts(rows)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, entity.ErrDraftNotFound
	}
	return drafts[0], nil
}

func (r *PostgresStore) ListVersions(ctx context.Context, sessionID string) ([]*entity.ProposalDraft, error) {
	rows, err := r.db.Query(ctx, `SELECT `+draftColumns+`
		FROM proposal_drafts WHERE session_id = $1 ORDER BY version`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return collectPostgresDrafts(rows)
}

func collectPostgresDrafts(rows pgx.Rows) ([]*entity.ProposalDraft, error) {
	rowsData, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (draftRow, error) {
		var d draftRow
		err := row.Scan(&d.ID, &d.SessionID, &d.Version, &d.Format, &d.Content,
			&d.Provider, &d.Sources, &d.Digest, &d.CreatedAt)
		return d, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrDraftNotFound
		}
		return nil, fmt.Errorf("scan drafts: %w", err)
	}

	drafts := make([]*entity.ProposalDraft, 0, len(rowsData))
	for i := range rowsData {
		draft, err := toEntityDraft(&rowsData[i])
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}
