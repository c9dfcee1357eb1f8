package authrole

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ovaphlow/pitchfork/service-apd/internal/authrole/entity"
	"github.com/ovaphlow/pitchfork/service-apd/internal/authrole/repo"
)

// ErrStateNotFound is returned when a state ID does not exist.
var ErrStateNotFound = errors.New("state not found")

// Service answers role, activity and state lookups for the user and session layers.
type Service struct {
	repo *repo.Repo
}

// NewService constructs a Service with the provided repository.
func NewService(r *repo.Repo) *Service {
	return &Service{repo: r}
}

// EnsureTable creates and seeds the backing tables.
func (s *Service) EnsureTable(ctx context.Context) error {
	return s.repo.EnsureTable(ctx)
}

// ActivityNamesForRole returns the activity names granted by role; an empty
// role yields an empty, non-nil list.
func (s *Service) ActivityNamesForRole(ctx context.Context, role string) ([]string, error) {
	if role == "" {
		return []string{}, nil
	}
	return s.repo.ActivityNamesForRole(ctx, role)
}

// ActiveRoleExists reports whether name is an active role.
func (s *Service) ActiveRoleExists(ctx context.Context, name string) (bool, error) {
	return s.repo.ActiveRoleExists(ctx, name)
}

// GetState returns the state with the given ID or ErrStateNotFound.
func (s *Service) GetState(ctx context.Context, id string) (*entity.State, error) {
	st, err := s.repo.GetState(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	return st, nil
}

// StateExists reports whether id references a known state.
func (s *Service) StateExists(ctx context.Context, id string) (bool, error) {
	_, err := s.GetState(ctx, id)
	if errors.Is(err, ErrStateNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ListRoles returns active roles with their resolved activity names.
func (s *Service) ListRoles(ctx context.Context) ([]*entity.Role, error) {
	roles, err := s.repo.ListActiveRoles(ctx)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		names, err := s.repo.ActivityNamesForRole(ctx, role.Name)
		if err != nil {
			return nil, err
		}
		role.Activities = names
	}
	return roles, nil
}

// ListStates returns all states.
func (s *Service) ListStates(ctx context.Context) ([]*entity.State, error) {
	return s.repo.ListStates(ctx)
}

// SetRoleActive activates or deactivates a role.
func (s *Service) SetRoleActive(ctx context.Context, name string, active bool) error {
	return s.repo.SetRoleActive(ctx, name, active)
}
