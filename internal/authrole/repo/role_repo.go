package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-apd/internal/authrole/entity"
)

// Repo reads roles, activities and states. Queries are written with `?`
// placeholders and rebound for the connected driver.
type Repo struct {
	db *sqlx.DB
}

// NewRepo constructs a new Repo with an existing connection.
func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// EnsureTable creates the role/activity/state tables and seeds the defaults.
// Safe to run on every start.
func (r *Repo) EnsureTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS auth_roles (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT true
		)`,
		`CREATE TABLE IF NOT EXISTS auth_activities (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS auth_role_activity_mapping (
			role_id BIGINT NOT NULL REFERENCES auth_roles(id) ON DELETE CASCADE,
			activity_id BIGINT NOT NULL REFERENCES auth_activities(id) ON DELETE CASCADE,
			PRIMARY KEY (role_id, activity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS states (
			id VARCHAR(2) PRIMARY KEY,
			name TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure role tables: %w", err)
		}
	}
	return r.seed(ctx)
}

func (r *Repo) seed(ctx context.Context) error {
	for _, a := range defaultActivities {
		if _, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO auth_activities (id, name) VALUES (?, ?) ON CONFLICT DO NOTHING`), a.ID, a.Name); err != nil {
			return fmt.Errorf("seed activity %s: %w", a.Name, err)
		}
	}
	for _, role := range defaultRoles {
		if _, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO auth_roles (id, name, is_active) VALUES (?, ?, true) ON CONFLICT DO NOTHING`), role.ID, role.Name); err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
		for _, name := range role.Activities {
			const q = `INSERT INTO auth_role_activity_mapping (role_id, activity_id)
				SELECT ?, id FROM auth_activities WHERE name = ?
				ON CONFLICT DO NOTHING`
			if _, err := r.db.ExecContext(ctx, r.db.Rebind(q), role.ID, name); err != nil {
				return fmt.Errorf("seed role %s activity %s: %w", role.Name, name, err)
			}
		}
	}
	for _, st := range defaultStates {
		if _, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO states (id, name) VALUES (?, ?) ON CONFLICT DO NOTHING`), st.ID, st.Name); err != nil {
			return fmt.Errorf("seed state %s: %w", st.ID, err)
		}
	}
	return nil
}

// ActivityNamesForRole resolves the activities granted by an active role.
// Inactive or unknown roles grant nothing.
func (r *Repo) ActivityNamesForRole(ctx context.Context, role string) ([]string, error) {
	const q = `SELECT a.name
		FROM auth_activities a
		JOIN auth_role_activity_mapping m ON m.activity_id = a.id
		JOIN auth_roles r ON r.id = m.role_id
		WHERE r.name = ? AND r.is_active = true
		ORDER BY a.name`
	names := []string{}
	if err := r.db.SelectContext(ctx, &names, r.db.Rebind(q), role); err != nil {
		return nil, err
	}
	return names, nil
}

// ActiveRoleExists reports whether name is an active role.
func (r *Repo) ActiveRoleExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM auth_roles WHERE name = ? AND is_active = true`), name); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetState returns the state or sql.ErrNoRows.
func (r *Repo) GetState(ctx context.Context, id string) (*entity.State, error) {
	var st entity.State
	if err := r.db.GetContext(ctx, &st, r.db.Rebind(`SELECT id, name FROM states WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return &st, nil
}

// ListActiveRoles returns active roles without their activities.
func (r *Repo) ListActiveRoles(ctx context.Context) ([]*entity.Role, error) {
	var roles []*entity.Role
	if err := r.db.SelectContext(ctx, &roles, `SELECT id, name, is_active FROM auth_roles WHERE is_active = true ORDER BY name`); err != nil {
		return nil, err
	}
	return roles, nil
}

// ListStates returns every state ordered by name.
func (r *Repo) ListStates(ctx context.Context) ([]*entity.State, error) {
	var states []*entity.State
	if err := r.db.SelectContext(ctx, &states, `SELECT id, name FROM states ORDER BY name`); err != nil {
		return nil, err
	}
	return states, nil
}

// SetRoleActive toggles a role; deactivated roles fail user validation
// and resolve to no activities.
func (r *Repo) SetRoleActive(ctx context.Context, name string, active bool) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE auth_roles SET is_active = ? WHERE name = ?`), active, name)
	return err
}
