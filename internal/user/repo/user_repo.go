package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-apd/internal/user/entity"
)

// Columns a caller may write through Create/Update.
var writableColumns = map[string]bool{
	"email":     true,
	"name":      true,
	"phone":     true,
	"position":  true,
	"password":  true,
	"auth_role": true,
	"state_id":  true,
}

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// Lockout state is stored as epoch milliseconds so the schema works on
// both postgres and sqlite.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			email TEXT NOT NULL,
			name TEXT,
			phone TEXT,
			position TEXT,
			password TEXT NOT NULL,
			auth_role TEXT,
			state_id VARCHAR(2),
			failed_logons TEXT,
			locked_until BIGINT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure users table: %w", err)
		}
	}
	return nil
}

type userRow struct {
	ID           int64          `db:"id"`
	Email        string         `db:"email"`
	Name         *string        `db:"name"`
	Phone        *string        `db:"phone"`
	Position     *string        `db:"position"`
	Password     string         `db:"password"`
	AuthRole     *string        `db:"auth_role"`
	StateID      *string        `db:"state_id"`
	FailedLogons sql.NullString `db:"failed_logons"`
	LockedUntil  sql.NullInt64  `db:"locked_until"`
}

const selectUser = `SELECT id, email, name, phone, position, password, auth_role, state_id, failed_logons, locked_until FROM users`

func (row userRow) toEntity() (*entity.User, error) {
	u := &entity.User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		Phone:        row.Phone,
		Position:     row.Position,
		PasswordHash: row.Password,
		AuthRole:     row.AuthRole,
		StateID:      row.StateID,
	}
	if row.FailedLogons.Valid && row.FailedLogons.String != "" {
		var millis []int64
		if err := json.Unmarshal([]byte(row.FailedLogons.String), &millis); err != nil {
			return nil, fmt.Errorf("decode failed_logons for user %d: %w", row.ID, err)
		}
		u.FailedLogons = make([]time.Time, 0, len(millis))
		for _, ms := range millis {
			u.FailedLogons = append(u.FailedLogons, time.UnixMilli(ms))
		}
	}
	if row.LockedUntil.Valid {
		t := time.UnixMilli(row.LockedUntil.Int64)
		u.LockedUntil = &t
	}
	return u, nil
}

// Create inserts a user row with the given id and columns.
func (r *UserRepo) Create(ctx context.Context, id int64, fields map[string]any) error {
	cols, err := checkColumns(fields)
	if err != nil {
		return err
	}
	params := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		params[k] = v
	}
	params["id"] = id
	q := fmt.Sprintf(`INSERT INTO users (id, %s) VALUES (:id, :%s)`,
		strings.Join(cols, ", "), strings.Join(cols, ", :"))
	_, err = r.db.NamedExecContext(ctx, q, params)
	return err
}

// Update writes the given columns for one user and returns rows affected.
func (r *UserRepo) Update(ctx context.Context, id int64, fields map[string]any) (int64, error) {
	cols, err := checkColumns(fields)
	if err != nil {
		return 0, err
	}
	sets := make([]string, 0, len(cols))
	params := make(map[string]any, len(fields)+1)
	for _, c := range cols {
		sets = append(sets, c+" = :"+c)
		params[c] = fields[c]
	}
	params["id"] = id
	res, err := r.db.NamedExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = :id`, params)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func checkColumns(fields map[string]any) ([]string, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no columns to write")
	}
	cols := make([]string, 0, len(fields))
	for k := range fields {
		if !writableColumns[k] {
			return nil, fmt.Errorf("column %q is not writable", k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols, nil
}

// GetByEmail returns a user matched case-insensitively by email or sql.ErrNoRows.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectUser+` WHERE LOWER(email) = LOWER(?)`), email); err != nil {
		return nil, err
	}
	return row.toEntity()
}

// GetByID fetches a full user row.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectUser+` WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return row.toEntity()
}

// List returns every user ordered by email.
func (r *UserRepo) List(ctx context.Context) ([]*entity.User, error) {
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, selectUser+` ORDER BY LOWER(email)`); err != nil {
		return nil, err
	}
	out := make([]*entity.User, 0, len(rows))
	for _, row := range rows {
		u, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Delete removes a user. Deleting a missing id is not an error.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	return err
}

// UpdateLockout overwrites the failed logon history and lock expiry.
// An empty history and nil lockedUntil clear both columns.
func (r *UserRepo) UpdateLockout(ctx context.Context, id int64, failedLogons []time.Time, lockedUntil *time.Time) error {
	var history any
	if len(failedLogons) > 0 {
		millis := make([]int64, 0, len(failedLogons))
		for _, t := range failedLogons {
			millis = append(millis, t.UnixMilli())
		}
		raw, err := json.Marshal(millis)
		if err != nil {
			return err
		}
		history = string(raw)
	}
	var lock any
	if lockedUntil != nil {
		lock = lockedUntil.UnixMilli()
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET failed_logons = ?, locked_until = ? WHERE id = ?`), history, lock, id)
	return err
}
