package apd

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-apd/internal/apd/entity"
	"github.com/ovaphlow/pitchfork/service-apd/internal/apd/repo"
	"github.com/ovaphlow/pitchfork/service-apd/pkg/database/databasetest"
	"github.com/ovaphlow/pitchfork/service-apd/pkg/utilities"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	ids, err := utilities.NewIDGenerator(1)
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	svc := NewService(repo.NewAPDRepo(databasetest.New(t)), ids, clock, nil)
	require.NoError(t, svc.EnsureTable(context.Background()))
	return svc
}

func seedActivity(t *testing.T, svc *Service, state string) (*entity.APD, *entity.Activity) {
	t.Helper()
	ctx := context.Background()
	a, err := svc.CreateAPD(ctx, state, nil)
	require.NoError(t, err)
	act, err := svc.CreateActivity(ctx, a.ID, "Program Administration", "", "")
	require.NoError(t, err)
	return a, act
}

func TestCreateAPDDefaultsYears(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	a, err := svc.CreateAPD(ctx, "ak", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026", "2027"}, a.Years)
	assert.Equal(t, entity.StatusDraft, a.Status)

	got, err := svc.GetAPD(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "ak", got.StateID)
	assert.Equal(t, a.Years, got.Years)

	_, err = svc.CreateAPD(ctx, "ak", []string{"2027", "2027"})
	assert.ErrorIs(t, err, ErrInvalidYears)
	_, err = svc.CreateAPD(ctx, "ak", []string{"next"})
	assert.ErrorIs(t, err, ErrInvalidYears)
}

func TestListAPDsByState(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateAPD(ctx, "ak", nil)
	require.NoError(t, err)
	_, err = svc.CreateAPD(ctx, "ak", []string{"2030"})
	require.NoError(t, err)
	_, err = svc.CreateAPD(ctx, "md", nil)
	require.NoError(t, err)

	list, err := svc.ListAPDs(ctx, "ak")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = svc.ListAPDs(ctx, "zz")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.GetAPD(ctx, 12345)
	assert.ErrorIs(t, err, ErrAPDNotFound)
	_, err = svc.GetActivity(ctx, 12345)
	assert.ErrorIs(t, err, ErrActivityNotFound)
	assert.ErrorIs(t, svc.DeleteActivity(ctx, 12345), ErrActivityNotFound)
}

func TestCreateActivityNeedsName(t *testing.T) {
	svc := newTestService(t)
	a, err := svc.CreateAPD(context.Background(), "ak", nil)
	require.NoError(t, err)

	_, err = svc.CreateActivity(context.Background(), a.ID, "   ", "", "")
	assert.ErrorIs(t, err, ErrInvalidActivity)
}

func TestReplaceApproachesDropsEmptyEntries(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, act := seedActivity(t, svc, "ak")

	got, err := svc.ReplaceApproaches(ctx, act.ID, []entity.Approach{
		{},
		{Description: "Buy a COTS eligibility system", Explanation: "cheaper"},
	})
	require.NoError(t, err)
	require.Len(t, got.Approaches, 1)
	assert.Equal(t, "Buy a COTS eligibility system", got.Approaches[0].Description)
	assert.Equal(t, "cheaper", got.Approaches[0].Explanation)
}

func TestReplaceApproachesReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, act := seedActivity(t, svc, "ak")

	_, err := svc.ReplaceApproaches(ctx, act.ID, []entity.Approach{{Description: "a"}, {Description: "b"}})
	require.NoError(t, err)

	got, err := svc.ReplaceApproaches(ctx, act.ID, []entity.Approach{{Alternatives: "c"}})
	require.NoError(t, err)
	require.Len(t, got.Approaches, 1)
	assert.Equal(t, "c", got.Approaches[0].Alternatives)

	got, err = svc.ReplaceApproaches(ctx, act.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, got.Approaches)
	assert.NotNil(t, got.Approaches)
}

func TestReplaceGoalsWithObjectives(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, act := seedActivity(t, svc, "ak")

	got, err := svc.ReplaceGoals(ctx, act.ID, []entity.Goal{
		{Description: "Reduce call wait times", Objectives: []*entity.Objective{{Description: "Under 5 minutes"}, {Description: ""}}},
		{Description: ""},
		{Description: "Modernise intake"},
	})
	require.NoError(t, err)
	require.Len(t, got.Goals, 2)
	assert.Equal(t, "Reduce call wait times", got.Goals[0].Description)
	require.Len(t, got.Goals[0].Objectives, 1)
	assert.Equal(t, "Under 5 minutes", got.Goals[0].Objectives[0].Description)
	assert.Empty(t, got.Goals[1].Objectives)

	got, err = svc.ReplaceGoals(ctx, act.ID, []entity.Goal{{Description: "Only goal"}})
	require.NoError(t, err)
	require.Len(t, got.Goals, 1)
	assert.Equal(t, "Only goal", got.Goals[0].Description)
}

func TestDeleteActivityRemovesChildren(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	a, act := seedActivity(t, svc, "ak")

	_, err := svc.ReplaceApproaches(ctx, act.ID, []entity.Approach{{Description: "a"}})
	require.NoError(t, err)
	_, err = svc.ReplaceGoals(ctx, act.ID, []entity.Goal{{Description: "g", Objectives: []*entity.Objective{{Description: "o"}}}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteActivity(ctx, act.ID))
	_, err = svc.GetActivity(ctx, act.ID)
	assert.ErrorIs(t, err, ErrActivityNotFound)

	full, err := svc.GetAPD(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, full.Activities)
}

func TestReplaceKeyPersonnel(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	a, err := svc.CreateAPD(ctx, "ak", []string{"2027", "2028"})
	require.NoError(t, err)

	got, err := svc.ReplaceKeyPersonnel(ctx, a.ID, []entity.KeyPerson{
		{Name: "Jo Smith", Email: "jo@state.gov", Position: "Director", PercentTime: 50, HasCosts: true,
			Costs: map[string]float64{"2027": 1000, "2028": 1500, "2031": 99}},
		{Name: "Sam Lee", HasCosts: false, Costs: map[string]float64{"2027": 400}},
	})
	require.NoError(t, err)
	require.Len(t, got.KeyPersonnel, 2)
	assert.Equal(t, map[string]float64{"2027": 1000, "2028": 1500}, got.KeyPersonnel[0].Costs)
	assert.True(t, got.KeyPersonnel[0].HasCosts)
	assert.Equal(t, 50.0, got.KeyPersonnel[0].PercentTime)
	assert.Empty(t, got.KeyPersonnel[1].Costs)

	_, err = svc.ReplaceKeyPersonnel(ctx, a.ID, []entity.KeyPerson{{Name: "x", PercentTime: 120}})
	assert.ErrorIs(t, err, ErrInvalidKeyPersonnel)
	_, err = svc.ReplaceKeyPersonnel(ctx, a.ID, []entity.KeyPerson{{Name: "x", HasCosts: true, Costs: map[string]float64{"2027": -1}}})
	assert.ErrorIs(t, err, ErrInvalidKeyPersonnel)

	// a rejected payload leaves the stored list alone
	full, err := svc.GetAPD(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, full.KeyPersonnel, 2)

	_, err = svc.ReplaceKeyPersonnel(ctx, 999, nil)
	assert.ErrorIs(t, err, ErrAPDNotFound)
}
