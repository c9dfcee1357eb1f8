package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SessionRepo persists opaque session tokens.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// EnsureTable creates auth_sessions. expires_at is epoch milliseconds.
func (r *SessionRepo) EnsureTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS auth_sessions (
			token TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			expires_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_auth_sessions_user_id ON auth_sessions (user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure sessions table: %w", err)
		}
	}
	return nil
}

func (r *SessionRepo) Save(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO auth_sessions (token, user_id, expires_at) VALUES (?, ?, ?)`),
		token, userID, expiresAt.UnixMilli())
	return err
}

// Get returns the session's user and expiry or sql.ErrNoRows.
func (r *SessionRepo) Get(ctx context.Context, token string) (int64, time.Time, error) {
	var row struct {
		UserID    int64 `db:"user_id"`
		ExpiresAt int64 `db:"expires_at"`
	}
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT user_id, expires_at FROM auth_sessions WHERE token = ?`), token); err != nil {
		return 0, time.Time{}, err
	}
	return row.UserID, time.UnixMilli(row.ExpiresAt), nil
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM auth_sessions WHERE token = ?`), token)
	return err
}

// DeleteForUser revokes every session a user holds.
func (r *SessionRepo) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM auth_sessions WHERE user_id = ?`), userID)
	return err
}

// DeleteExpired purges sessions that expired before now and returns how many.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM auth_sessions WHERE expires_at < ?`), now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
