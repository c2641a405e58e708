package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/argusauth/argus/internal/crypto"
)

type tokenRepository struct {
	db     *sql.DB
	cipher *crypto.TokenCipher
}

func (r *tokenRepository) Insert(ctx context.Context, token *AuthToken) error {
	if token == nil {
		return fmt.Errorf("insert auth token: token is nil")
	}
	if len(token.Token) == 0 {
		return fmt.Errorf("insert auth token: empty token")
	}
	if r.cipher == nil {
		return fmt.Errorf("insert auth token: no cipher configured")
	}

	token.ID = ensureID(token.ID)
	if token.CreatedAt.IsZero() {
		token.CreatedAt = nowUTC()
	}

	sealed, err := r.cipher.Seal(token.Token, []byte(token.ID))
	if err != nil {
		return fmt.Errorf("insert auth token: seal: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO auth_tokens(id, session_token, auth_type, token_ciphertext, created_at)
		VALUES(?, ?, ?, ?, ?)
	`, token.ID, token.SessionToken, token.AuthType, sealed, fmtTime(token.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert auth token: %w", err)
	}
	return nil
}

func (r *tokenRepository) Get(ctx context.Context, id string) (*AuthToken, error) {
	var (
		token     AuthToken
		sealed    []byte
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_token, auth_type, token_ciphertext, created_at
		FROM auth_tokens
		WHERE id = ?
	`, id).Scan(&token.ID, &token.SessionToken, &token.AuthType, &sealed, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get auth token: %w", err)
	}

	if r.cipher == nil {
		return nil, fmt.Errorf("get auth token: no cipher configured")
	}
	token.Token, err = r.cipher.Unseal(sealed, []byte(token.ID))
	if err != nil {
		return nil, fmt.Errorf("get auth token: %w", err)
	}
	token.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) List(ctx context.Context, sessionToken string) ([]AuthToken, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_token, auth_type, created_at
		FROM auth_tokens
		WHERE session_token = ?
		ORDER BY created_at ASC
	`, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("list auth tokens: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tokens := []AuthToken{}
	for rows.Next() {
		var (
			token     AuthToken
			createdAt string
		)
		if err := rows.Scan(&token.ID, &token.SessionToken, &token.AuthType, &createdAt); err != nil {
			return nil, fmt.Errorf("list auth tokens: scan row: %w", err)
		}
		token.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list auth tokens: iterate: %w", err)
	}
	return tokens, nil
}
