package storage

import (
	"context"
	"fmt"
)

// TokenSink adapts the token repository to the orchestrator's outcome-sink
// contract: one call durably records a successful strong-authentication
// proof for the session it belongs to.
type TokenSink struct {
	repo         TokenRepository
	sessionToken string
	authType     string
}

// NewTokenSink scopes a sink to one session.
func NewTokenSink(repo TokenRepository, sessionToken, authType string) *TokenSink {
	return &TokenSink{repo: repo, sessionToken: sessionToken, authType: authType}
}

// CommitAuthToken seals and stores the proof.
func (s *TokenSink) CommitAuthToken(token []byte) error {
	if s.repo == nil {
		return fmt.Errorf("commit auth token: no repository")
	}
	entry := &AuthToken{
		SessionToken: s.sessionToken,
		AuthType:     s.authType,
		Token:        token,
	}
	if err := s.repo.Insert(context.Background(), entry); err != nil {
		return fmt.Errorf("commit auth token: %w", err)
	}
	return nil
}
