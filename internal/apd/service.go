package apd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-apd/internal/apd/entity"
	"github.com/ovaphlow/pitchfork/service-apd/internal/apd/repo"
	"github.com/ovaphlow/pitchfork/service-apd/pkg/utilities"
)

var (
	ErrAPDNotFound         = errors.New("apd not found")
	ErrActivityNotFound    = errors.New("activity not found")
	ErrInvalidActivity     = errors.New("activity name is required")
	ErrInvalidYears        = errors.New("invalid apd years")
	ErrInvalidKeyPersonnel = errors.New("invalid key personnel")
)

// Service manages APDs and their activities.
type Service struct {
	repo   *repo.APDRepo
	ids    *utilities.IDGenerator
	clock  clockwork.Clock
	logger *zap.SugaredLogger
}

func NewService(r *repo.APDRepo, ids *utilities.IDGenerator, clock clockwork.Clock, logger *zap.SugaredLogger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: r, ids: ids, clock: clock, logger: logger}
}

// EnsureTable creates the APD tables.
func (s *Service) EnsureTable(ctx context.Context) error {
	return s.repo.EnsureTable(ctx)
}

// ListAPDs returns the APD headers for a state.
func (s *Service) ListAPDs(ctx context.Context, stateID string) ([]*entity.APD, error) {
	return s.repo.ListAPDs(ctx, stateID)
}

// CreateAPD starts a draft APD for a state. Without years it covers the
// current and the next federal fiscal year.
func (s *Service) CreateAPD(ctx context.Context, stateID string, years []string) (*entity.APD, error) {
	if len(years) == 0 {
		y := s.clock.Now().Year()
		years = []string{strconv.Itoa(y), strconv.Itoa(y + 1)}
	}
	seen := make(map[string]bool, len(years))
	for _, y := range years {
		n, err := strconv.Atoi(y)
		if err != nil || n < 2000 || n > 2100 || seen[y] {
			return nil, ErrInvalidYears
		}
		seen[y] = true
	}
	a := &entity.APD{ID: s.ids.Next(), StateID: stateID, Status: entity.StatusDraft, Years: years}
	if err := s.repo.CreateAPD(ctx, a); err != nil {
		return nil, fmt.Errorf("insert apd: %w", err)
	}
	s.logger.Infow("apd created", "apd_id", a.ID, "state", stateID)
	return a, nil
}

// GetAPDHeader returns the APD without its activities or personnel.
func (s *Service) GetAPDHeader(ctx context.Context, id int64) (*entity.APD, error) {
	a, err := s.repo.GetAPD(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrAPDNotFound)
	}
	return a, nil
}

// GetAPD returns the APD with its activities and key personnel.
func (s *Service) GetAPD(ctx context.Context, id int64) (*entity.APD, error) {
	a, err := s.GetAPDHeader(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Activities, err = s.repo.ActivitiesForAPD(ctx, id); err != nil {
		return nil, err
	}
	if a.KeyPersonnel, err = s.repo.KeyPersonnelForAPD(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateActivity adds an activity to an APD.
func (s *Service) CreateActivity(ctx context.Context, apdID int64, name, description, summary string) (*entity.Activity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidActivity
	}
	a := &entity.Activity{ID: s.ids.Next(), APDID: apdID, Name: name, Description: description, Summary: summary}
	if err := s.repo.CreateActivity(ctx, a); err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	return s.GetActivity(ctx, a.ID)
}

// GetActivity returns the activity with goals (and their objectives) and approaches.
func (s *Service) GetActivity(ctx context.Context, id int64) (*entity.Activity, error) {
	a, err := s.repo.GetActivity(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrActivityNotFound)
	}
	if a.Goals, err = s.repo.GoalsForActivity(ctx, id); err != nil {
		return nil, err
	}
	if a.Approaches, err = s.repo.ApproachesForActivity(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteActivity removes an activity and everything under it.
func (s *Service) DeleteActivity(ctx context.Context, id int64) error {
	found, err := s.repo.DeleteActivity(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrActivityNotFound
	}
	return nil
}

// ReplaceApproaches swaps the activity's approaches for entries. Entries
// with every field empty are dropped. The refreshed activity is returned.
func (s *Service) ReplaceApproaches(ctx context.Context, activityID int64, entries []entity.Approach) (*entity.Activity, error) {
	keep := make([]*entity.Approach, 0, len(entries))
	for _, e := range entries {
		if e.Empty() {
			continue
		}
		keep = append(keep, &entity.Approach{
			ID:           s.ids.Next(),
			Description:  e.Description,
			Alternatives: e.Alternatives,
			Explanation:  e.Explanation,
		})
	}
	if err := s.repo.ReplaceApproaches(ctx, activityID, keep); err != nil {
		return nil, err
	}
	s.logger.Debugw("approaches replaced", "activity_id", activityID, "count", len(keep))
	return s.GetActivity(ctx, activityID)
}

// ReplaceGoals swaps the activity's goals for goals. Blank objectives are
// dropped, and so is a goal left with no description and no objectives.
func (s *Service) ReplaceGoals(ctx context.Context, activityID int64, goals []entity.Goal) (*entity.Activity, error) {
	keep := make([]*entity.Goal, 0, len(goals))
	for _, g := range goals {
		goal := &entity.Goal{ID: s.ids.Next(), Description: g.Description, Objectives: []*entity.Objective{}}
		for _, o := range g.Objectives {
			if o == nil || strings.TrimSpace(o.Description) == "" {
				continue
			}
			goal.Objectives = append(goal.Objectives, &entity.Objective{ID: s.ids.Next(), Description: o.Description})
		}
		if strings.TrimSpace(goal.Description) == "" && len(goal.Objectives) == 0 {
			continue
		}
		keep = append(keep, goal)
	}
	if err := s.repo.ReplaceGoals(ctx, activityID, keep); err != nil {
		return nil, err
	}
	return s.GetActivity(ctx, activityID)
}

// ReplaceKeyPersonnel swaps the APD's key personnel for people. Percent
// time must be within 0..100 and costs non-negative; costs are kept only
// for the APD's own years and only when the person has costs.
func (s *Service) ReplaceKeyPersonnel(ctx context.Context, apdID int64, people []entity.KeyPerson) (*entity.APD, error) {
	a, err := s.GetAPDHeader(ctx, apdID)
	if err != nil {
		return nil, err
	}
	keep := make([]*entity.KeyPerson, 0, len(people))
	for _, p := range people {
		if p.PercentTime < 0 || p.PercentTime > 100 {
			return nil, ErrInvalidKeyPersonnel
		}
		person := &entity.KeyPerson{
			ID:          s.ids.Next(),
			Name:        strings.TrimSpace(p.Name),
			Email:       strings.TrimSpace(p.Email),
			Position:    strings.TrimSpace(p.Position),
			PercentTime: p.PercentTime,
			HasCosts:    p.HasCosts,
			Costs:       map[string]float64{},
		}
		if person.HasCosts {
			for year, amount := range p.Costs {
				if amount < 0 {
					return nil, ErrInvalidKeyPersonnel
				}
				if a.HasYear(year) {
					person.Costs[year] = amount
				}
			}
		}
		keep = append(keep, person)
	}
	if err := s.repo.ReplaceKeyPersonnel(ctx, apdID, keep); err != nil {
		return nil, err
	}
	return s.GetAPD(ctx, apdID)
}

func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
