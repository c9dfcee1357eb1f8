package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-apd/internal/apd/entity"
)

// APDRepo stores APDs and their nested form sections. IDs are assigned by
// the caller.
type APDRepo struct {
	db *sqlx.DB
}

func NewAPDRepo(db *sqlx.DB) *APDRepo { return &APDRepo{db: db} }

// EnsureTable creates the APD tables. Child rows are removed explicitly by
// the replace and delete methods, so no cascade is relied on.
func (r *APDRepo) EnsureTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS apds (
			id BIGINT PRIMARY KEY,
			state_id VARCHAR(2) NOT NULL,
			status TEXT NOT NULL,
			years TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_apds_state_id ON apds (state_id)`,
		`CREATE TABLE IF NOT EXISTS apd_activities (
			id BIGINT PRIMARY KEY,
			apd_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_apd_activities_apd_id ON apd_activities (apd_id)`,
		`CREATE TABLE IF NOT EXISTS apd_activity_goals (
			id BIGINT PRIMARY KEY,
			activity_id BIGINT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_apd_activity_goals_activity_id ON apd_activity_goals (activity_id)`,
		`CREATE TABLE IF NOT EXISTS apd_activity_goal_objectives (
			id BIGINT PRIMARY KEY,
			goal_id BIGINT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_apd_activity_goal_objectives_goal_id ON apd_activity_goal_objectives (goal_id)`,
		`CREATE TABLE IF NOT EXISTS apd_activity_approaches (
			id BIGINT PRIMARY KEY,
			activity_id BIGINT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			alternatives TEXT NOT NULL DEFAULT '',
			explanation TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_apd_activity_approaches_activity_id ON apd_activity_approaches (activity_id)`,
		`CREATE TABLE IF NOT EXISTS apd_key_personnel (
			id BIGINT PRIMARY KEY,
			apd_id BIGINT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			position TEXT NOT NULL DEFAULT '',
			percent_time DOUBLE PRECISION NOT NULL DEFAULT 0,
			has_costs BOOLEAN NOT NULL DEFAULT false,
			costs TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_apd_key_personnel_apd_id ON apd_key_personnel (apd_id)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure apd tables: %w", err)
		}
	}
	return nil
}

type apdRow struct {
	ID      int64  `db:"id"`
	StateID string `db:"state_id"`
	Status  string `db:"status"`
	Years   string `db:"years"`
}

func (row apdRow) toEntity() (*entity.APD, error) {
	a := &entity.APD{ID: row.ID, StateID: row.StateID, Status: row.Status, Years: []string{}}
	if row.Years != "" {
		if err := json.Unmarshal([]byte(row.Years), &a.Years); err != nil {
			return nil, fmt.Errorf("decode years for apd %d: %w", row.ID, err)
		}
	}
	return a, nil
}

// CreateAPD inserts an APD header row.
func (r *APDRepo) CreateAPD(ctx context.Context, a *entity.APD) error {
	years, err := json.Marshal(a.Years)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO apds (id, state_id, status, years) VALUES (?, ?, ?, ?)`),
		a.ID, a.StateID, a.Status, string(years))
	return err
}

// GetAPD returns the header row or sql.ErrNoRows.
func (r *APDRepo) GetAPD(ctx context.Context, id int64) (*entity.APD, error) {
	var row apdRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT id, state_id, status, years FROM apds WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return row.toEntity()
}

// ListAPDs returns the header rows for one state, oldest first.
func (r *APDRepo) ListAPDs(ctx context.Context, stateID string) ([]*entity.APD, error) {
	var rows []apdRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT id, state_id, status, years FROM apds WHERE state_id = ? ORDER BY id`), stateID); err != nil {
		return nil, err
	}
	out := make([]*entity.APD, 0, len(rows))
	for _, row := range rows {
		a, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

type activityRow struct {
	ID          int64  `db:"id"`
	APDID       int64  `db:"apd_id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Summary     string `db:"summary"`
}

func (row activityRow) toEntity() *entity.Activity {
	return &entity.Activity{
		ID:          row.ID,
		APDID:       row.APDID,
		Name:        row.Name,
		Description: row.Description,
		Summary:     row.Summary,
		Goals:       []*entity.Goal{},
		Approaches:  []*entity.Approach{},
	}
}

func (r *APDRepo) CreateActivity(ctx context.Context, a *entity.Activity) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO apd_activities (id, apd_id, name, description, summary)
		VALUES (:id, :apd_id, :name, :description, :summary)`, activityRow{
		ID: a.ID, APDID: a.APDID, Name: a.Name, Description: a.Description, Summary: a.Summary,
	})
	return err
}

// GetActivity returns the activity row without children or sql.ErrNoRows.
func (r *APDRepo) GetActivity(ctx context.Context, id int64) (*entity.Activity, error) {
	var row activityRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT id, apd_id, name, description, summary FROM apd_activities WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// ActivitiesForAPD returns an APD's activities without children.
func (r *APDRepo) ActivitiesForAPD(ctx context.Context, apdID int64) ([]*entity.Activity, error) {
	var rows []activityRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT id, apd_id, name, description, summary FROM apd_activities WHERE apd_id = ? ORDER BY id`), apdID); err != nil {
		return nil, err
	}
	out := make([]*entity.Activity, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

type goalRow struct {
	ID          int64  `db:"id"`
	Description string `db:"description"`
}

type objectiveRow struct {
	ID          int64  `db:"id"`
	GoalID      int64  `db:"goal_id"`
	Description string `db:"description"`
}

// GoalsForActivity returns goals with their objectives, in insertion order.
func (r *APDRepo) GoalsForActivity(ctx context.Context, activityID int64) ([]*entity.Goal, error) {
	var goals []goalRow
	if err := r.db.SelectContext(ctx, &goals, r.db.Rebind(`SELECT id, description FROM apd_activity_goals WHERE activity_id = ? ORDER BY id`), activityID); err != nil {
		return nil, err
	}
	out := make([]*entity.Goal, 0, len(goals))
	if len(goals) == 0 {
		return out, nil
	}
	byID := make(map[int64]*entity.Goal, len(goals))
	ids := make([]int64, 0, len(goals))
	for _, g := range goals {
		goal := &entity.Goal{ID: g.ID, Description: g.Description, Objectives: []*entity.Objective{}}
		byID[g.ID] = goal
		ids = append(ids, g.ID)
		out = append(out, goal)
	}

	q, args, err := sqlx.In(`SELECT id, goal_id, description FROM apd_activity_goal_objectives WHERE goal_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	var objectives []objectiveRow
	if err := r.db.SelectContext(ctx, &objectives, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	for _, o := range objectives {
		if g, ok := byID[o.GoalID]; ok {
			g.Objectives = append(g.Objectives, &entity.Objective{ID: o.ID, Description: o.Description})
		}
	}
	return out, nil
}

type approachRow struct {
	ID           int64  `db:"id"`
	ActivityID   int64  `db:"activity_id"`
	Description  string `db:"description"`
	Alternatives string `db:"alternatives"`
	Explanation  string `db:"explanation"`
}

func (r *APDRepo) ApproachesForActivity(ctx context.Context, activityID int64) ([]*entity.Approach, error) {
	var rows []approachRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT id, activity_id, description, alternatives, explanation FROM apd_activity_approaches WHERE activity_id = ? ORDER BY id`), activityID); err != nil {
		return nil, err
	}
	out := make([]*entity.Approach, 0, len(rows))
	for _, row := range rows {
		out = append(out, &entity.Approach{ID: row.ID, Description: row.Description, Alternatives: row.Alternatives, Explanation: row.Explanation})
	}
	return out, nil
}

type keyPersonRow struct {
	ID          int64   `db:"id"`
	APDID       int64   `db:"apd_id"`
	Name        string  `db:"name"`
	Email       string  `db:"email"`
	Position    string  `db:"position"`
	PercentTime float64 `db:"percent_time"`
	HasCosts    bool    `db:"has_costs"`
	Costs       string  `db:"costs"`
}

func (r *APDRepo) KeyPersonnelForAPD(ctx context.Context, apdID int64) ([]*entity.KeyPerson, error) {
	var rows []keyPersonRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT id, apd_id, name, email, position, percent_time, has_costs, costs FROM apd_key_personnel WHERE apd_id = ? ORDER BY id`), apdID); err != nil {
		return nil, err
	}
	out := make([]*entity.KeyPerson, 0, len(rows))
	for _, row := range rows {
		p := &entity.KeyPerson{
			ID:          row.ID,
			Name:        row.Name,
			Email:       row.Email,
			Position:    row.Position,
			PercentTime: row.PercentTime,
			HasCosts:    row.HasCosts,
			Costs:       map[string]float64{},
		}
		if row.Costs != "" {
			if err := json.Unmarshal([]byte(row.Costs), &p.Costs); err != nil {
				return nil, fmt.Errorf("decode costs for key person %d: %w", row.ID, err)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// DeleteActivity removes an activity with its goals, objectives and
// approaches. It returns false when the activity did not exist.
func (r *APDRepo) DeleteActivity(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteGoals(ctx, tx, id); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM apd_activity_approaches WHERE activity_id = ?`), id); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM apd_activities WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

// ReplaceApproaches deletes every approach of the activity and inserts the
// given ones in a single transaction.
func (r *APDRepo) ReplaceApproaches(ctx context.Context, activityID int64, approaches []*entity.Approach) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM apd_activity_approaches WHERE activity_id = ?`), activityID); err != nil {
		return fmt.Errorf("delete approaches: %w", err)
	}
	for _, a := range approaches {
		row := approachRow{ID: a.ID, ActivityID: activityID, Description: a.Description, Alternatives: a.Alternatives, Explanation: a.Explanation}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO apd_activity_approaches (id, activity_id, description, alternatives, explanation)
			VALUES (:id, :activity_id, :description, :alternatives, :explanation)`, row); err != nil {
			return fmt.Errorf("insert approach: %w", err)
		}
	}
	return tx.Commit()
}

// ReplaceGoals swaps the activity's goals and objectives for the given ones.
func (r *APDRepo) ReplaceGoals(ctx context.Context, activityID int64, goals []*entity.Goal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteGoals(ctx, tx, activityID); err != nil {
		return err
	}
	for _, g := range goals {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO apd_activity_goals (id, activity_id, description) VALUES (?, ?, ?)`),
			g.ID, activityID, g.Description); err != nil {
			return fmt.Errorf("insert goal: %w", err)
		}
		for _, o := range g.Objectives {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO apd_activity_goal_objectives (id, goal_id, description) VALUES (?, ?, ?)`),
				o.ID, g.ID, o.Description); err != nil {
				return fmt.Errorf("insert objective: %w", err)
			}
		}
	}
	return tx.Commit()
}

func deleteGoals(ctx context.Context, tx *sqlx.Tx, activityID int64) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM apd_activity_goal_objectives
		WHERE goal_id IN (SELECT id FROM apd_activity_goals WHERE activity_id = ?)`), activityID); err != nil {
		return fmt.Errorf("delete objectives: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM apd_activity_goals WHERE activity_id = ?`), activityID); err != nil {
		return fmt.Errorf("delete goals: %w", err)
	}
	return nil
}

// ReplaceKeyPersonnel swaps the APD's key personnel for the given list.
func (r *APDRepo) ReplaceKeyPersonnel(ctx context.Context, apdID int64, people []*entity.KeyPerson) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM apd_key_personnel WHERE apd_id = ?`), apdID); err != nil {
		return fmt.Errorf("delete key personnel: %w", err)
	}
	for _, p := range people {
		costs, err := json.Marshal(p.Costs)
		if err != nil {
			return err
		}
		row := keyPersonRow{
			ID:          p.ID,
			APDID:       apdID,
			Name:        p.Name,
			Email:       p.Email,
			Position:    p.Position,
			PercentTime: p.PercentTime,
			HasCosts:    p.HasCosts,
			Costs:       string(costs),
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO apd_key_personnel (id, apd_id, name, email, position, percent_time, has_costs, costs)
			VALUES (:id, :apd_id, :name, :email, :position, :percent_time, :has_costs, :costs)`, row); err != nil {
			return fmt.Errorf("insert key person: %w", err)
		}
	}
	return tx.Commit()
}
