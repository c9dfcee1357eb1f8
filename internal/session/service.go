package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-apd/internal/session/repo"
)

// ErrNoSession is returned when a token names no live session.
var ErrNoSession = errors.New("no such session")

// Service issues, validates and revokes login sessions.
type Service struct {
	repo  *repo.SessionRepo
	clock clockwork.Clock
	ttl   time.Duration
}

func NewService(r *repo.SessionRepo, clock clockwork.Clock, ttl time.Duration) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{repo: r, clock: clock, ttl: ttl}
}

// EnsureTable creates the sessions table.
func (s *Service) EnsureTable(ctx context.Context) error {
	return s.repo.EnsureTable(ctx)
}

// Issue creates a session for userID with a fresh random token.
func (s *Service) Issue(ctx context.Context, userID int64) (*Session, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	sess := &Session{
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		UserID:    userID,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}
	if err := s.repo.Save(ctx, sess.Token, sess.UserID, sess.ExpiresAt); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate returns the session for token, or ErrNoSession when the token is
// unknown or expired. Expired sessions are deleted on sight.
func (s *Service) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	userID, expiresAt, err := s.repo.Get(ctx, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !expiresAt.After(s.clock.Now()) {
		if err := s.repo.Delete(ctx, token); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, ErrNoSession
	}
	return &Session{Token: token, UserID: userID, ExpiresAt: expiresAt}, nil
}

// Revoke removes a session token from store.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.repo.Delete(ctx, token)
}

// RevokeUser ends every session held by userID.
func (s *Service) RevokeUser(ctx context.Context, userID int64) error {
	return s.repo.DeleteForUser(ctx, userID)
}

// PurgeExpired deletes expired sessions.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now())
}
