package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-apd/internal/authrole"
	roleentity "github.com/ovaphlow/pitchfork/service-apd/internal/authrole/entity"
	"github.com/ovaphlow/pitchfork/service-apd/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-apd/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-apd/pkg/utilities"
)

// PasswordHasher hashes and checks passwords (see auth.BcryptHasher).
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, hash string) bool
}

// RoleLookup resolves roles and states for validation and enrichment.
type RoleLookup interface {
	ActiveRoleExists(ctx context.Context, name string) (bool, error)
	ActivityNamesForRole(ctx context.Context, role string) ([]string, error)
	StateExists(ctx context.Context, id string) (bool, error)
	GetState(ctx context.Context, id string) (*roleentity.State, error)
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrMissingCredentials = errors.New("email and password are required")
)

// UserService owns user validation, persistence and enrichment.
type UserService struct {
	repo   *userrepo.UserRepo
	roles  RoleLookup
	hasher PasswordHasher
	ids    *utilities.IDGenerator
	logger *zap.SugaredLogger
}

func NewUserService(r *userrepo.UserRepo, roles RoleLookup, hasher PasswordHasher, ids *utilities.IDGenerator, logger *zap.SugaredLogger) *UserService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserService{repo: r, roles: roles, hasher: hasher, ids: ids, logger: logger}
}

// EnsureTable creates the users table.
func (s *UserService) EnsureTable(ctx context.Context) error {
	return s.repo.EnsureTable(ctx)
}

// CreateUser validates and inserts a new user, returning its ID.
func (s *UserService) CreateUser(ctx context.Context, c entity.Changes) (int64, error) {
	c.ID = 0
	if !present(c.Email) || !present(c.Password) {
		return 0, ErrMissingCredentials
	}
	if err := s.Validate(ctx, c); err != nil {
		return 0, err
	}
	fields, err := s.normalize(c)
	if err != nil {
		return 0, err
	}
	id := s.ids.Next()
	if err := s.repo.Create(ctx, id, fields); err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	s.logger.Infow("user created", "user_id", id)
	return id, nil
}

// UpdateUser validates and applies c to user id. An empty change set is a
// no-op once validated.
func (s *UserService) UpdateUser(ctx context.Context, id int64, c entity.Changes) error {
	c.ID = id
	if err := s.Validate(ctx, c); err != nil {
		return err
	}
	if c.Empty() {
		return nil
	}
	fields, err := s.normalize(c)
	if err != nil {
		return err
	}
	n, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// normalize maps a change set onto column values: the password is hashed
// and the phone reduced to digits.
func (s *UserService) normalize(c entity.Changes) (map[string]any, error) {
	fields := map[string]any{}
	if c.Email != nil {
		fields["email"] = strings.TrimSpace(*c.Email)
	}
	if present(c.Password) {
		hash, err := s.hasher.Hash(*c.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		fields["password"] = hash
	}
	if c.Name != nil {
		fields["name"] = *c.Name
	}
	if c.Phone != nil {
		fields["phone"] = digitsOnly(*c.Phone)
	}
	if c.Position != nil {
		fields["position"] = *c.Position
	}
	if c.AuthRole != nil {
		fields["auth_role"] = nullable(*c.AuthRole)
	}
	if c.StateID != nil {
		fields["state_id"] = nullable(*c.StateID)
	}
	return fields, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// DeleteUserByID removes the user unconditionally.
func (s *UserService) DeleteUserByID(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// GetUserByEmail returns the enriched raw user, matching email case-insensitively.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, notFound(err)
	}
	return s.populate(ctx, u)
}

// GetUserByID returns the enriched raw user.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return s.populate(ctx, u)
}

// GetAllUsers returns every enriched raw user.
func (s *UserService) GetAllUsers(ctx context.Context) ([]*entity.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if _, err := s.populate(ctx, u); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// SanitizeAll projects users for clients.
func SanitizeAll(users []*entity.User) []*entity.SanitizedUser {
	out := make([]*entity.SanitizedUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Sanitize())
	}
	return out
}

// UpdateLockout persists failed logon bookkeeping without running validation.
func (s *UserService) UpdateLockout(ctx context.Context, id int64, failedLogons []time.Time, lockedUntil *time.Time) error {
	return s.repo.UpdateLockout(ctx, id, failedLogons, lockedUntil)
}

// populate resolves the role's activity names and the state record.
func (s *UserService) populate(ctx context.Context, u *entity.User) (*entity.User, error) {
	u.Activities = []string{}
	if u.AuthRole != nil && *u.AuthRole != "" {
		names, err := s.roles.ActivityNamesForRole(ctx, *u.AuthRole)
		if err != nil {
			return nil, fmt.Errorf("resolve activities for user %d: %w", u.ID, err)
		}
		u.Activities = names
	}
	u.State = roleentity.State{}
	if u.StateID != nil && *u.StateID != "" {
		st, err := s.roles.GetState(ctx, *u.StateID)
		switch {
		case err == nil:
			u.State = *st
		case errors.Is(err, authrole.ErrStateNotFound):
		default:
			return nil, fmt.Errorf("resolve state for user %d: %w", u.ID, err)
		}
	}
	return u, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func notFound(err error) error {
	if isNoRows(err) {
		return ErrUserNotFound
	}
	return err
}
