package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-apd/internal/authrole"
	rolerepo "github.com/ovaphlow/pitchfork/service-apd/internal/authrole/repo"
	"github.com/ovaphlow/pitchfork/service-apd/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-apd/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-apd/pkg/database/databasetest"
	"github.com/ovaphlow/pitchfork/service-apd/pkg/utilities"
)

const strongPassword = "Tr0ub4dor&3-hiking-maple-lantern"

// prefixHasher keeps tests fast; the bcrypt hasher is covered in auth.
type prefixHasher struct{}

func (prefixHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }
func (prefixHasher) Compare(p, h string) bool      { return h == "hashed:"+p }

func str(s string) *string { return &s }

func newTestService(t *testing.T) (*UserService, *authrole.Service) {
	t.Helper()
	ctx := context.Background()
	db := databasetest.New(t)
	roles := authrole.NewService(rolerepo.NewRepo(db))
	require.NoError(t, roles.EnsureTable(ctx))
	ids, err := utilities.NewIDGenerator(5)
	require.NoError(t, err)
	svc := NewUserService(userrepo.NewUserRepo(db), roles, prefixHasher{}, ids, nil)
	require.NoError(t, svc.EnsureTable(ctx))
	return svc, roles
}

func createUser(t *testing.T, svc *UserService, email string) int64 {
	t.Helper()
	id, err := svc.CreateUser(context.Background(), entity.Changes{Email: str(email), Password: str(strongPassword)})
	require.NoError(t, err)
	return id
}

func TestValidateEmptyCandidatePasses(t *testing.T) {
	svc, _ := newTestService(t)
	assert.NoError(t, svc.Validate(context.Background(), entity.Changes{}))
}

func TestValidateEmailExistsIgnoresCase(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := createUser(t, svc, "alice@example.com")

	err := svc.Validate(ctx, entity.Changes{Email: str("ALICE@example.com")})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.Equal(t, "email-exists", ValidationKind(err))

	// the owner keeping their own address is fine
	assert.NoError(t, svc.Validate(ctx, entity.Changes{ID: id, Email: str("Alice@Example.com")}))
}

func TestValidateBlankEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := createUser(t, svc, "erin@example.com")

	for _, blank := range []string{"", "   "} {
		err := svc.UpdateUser(ctx, id, entity.Changes{Email: str(blank)})
		assert.ErrorIs(t, err, ErrInvalidEmail)
		assert.Equal(t, "invalid-email", ValidationKind(err))
	}

	u, err := svc.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "erin@example.com", u.Email)

	_, err = svc.CreateUser(ctx, entity.Changes{Email: str("  "), Password: str(strongPassword)})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestValidatePassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	assert.ErrorIs(t, svc.Validate(ctx, entity.Changes{Password: str("password")}), ErrWeakPassword)
	assert.NoError(t, svc.Validate(ctx, entity.Changes{Password: str(strongPassword)}))
}

func TestValidatePhone(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	assert.NoError(t, svc.Validate(ctx, entity.Changes{Phone: str("(555) 123-4567")}))
	assert.ErrorIs(t, svc.Validate(ctx, entity.Changes{Phone: str("+1 555 123 45678")}), ErrInvalidPhone)
}

func TestValidateRoleAndState(t *testing.T) {
	ctx := context.Background()
	svc, roles := newTestService(t)

	assert.NoError(t, svc.Validate(ctx, entity.Changes{AuthRole: str("state-staff"), StateID: str("ak")}))
	assert.ErrorIs(t, svc.Validate(ctx, entity.Changes{AuthRole: str("emperor")}), ErrInvalidRole)
	assert.ErrorIs(t, svc.Validate(ctx, entity.Changes{StateID: str("zz")}), ErrInvalidState)

	require.NoError(t, roles.SetRoleActive(ctx, "state-staff", false))
	assert.ErrorIs(t, svc.Validate(ctx, entity.Changes{AuthRole: str("state-staff")}), ErrInvalidRole)
}

func TestValidateStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	createUser(t, svc, "taken@example.com")

	err := svc.Validate(ctx, entity.Changes{
		Email:    str("taken@example.com"),
		Password: str("123"),
		StateID:  str("zz"),
	})
	assert.ErrorIs(t, err, ErrEmailExists)

	err = svc.Validate(ctx, entity.Changes{Password: str("123"), StateID: str("zz")})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestCreateUserRequiresCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateUser(context.Background(), entity.Changes{Email: str("a@b.com")})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestCreateAndGetUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	id, err := svc.CreateUser(ctx, entity.Changes{
		Email:    str(" bob@example.com "),
		Password: str(strongPassword),
		Name:     str("Bob"),
		Phone:    str("555-123-4567"),
		AuthRole: str("state-coordinator"),
		StateID:  str("md"),
	})
	require.NoError(t, err)

	u, err := svc.GetUserByEmail(ctx, "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "bob@example.com", u.Email)
	assert.Equal(t, "hashed:"+strongPassword, u.PasswordHash)
	assert.Equal(t, "5551234567", *u.Phone)
	assert.Equal(t, "Maryland", u.State.Name)
	assert.ElementsMatch(t, []string{"edit-document", "view-document", "view-roles"}, u.Activities)

	s := u.Sanitize()
	assert.Equal(t, "bob@example.com", s.Username)
	assert.Equal(t, "state-coordinator", *s.Role)

	_, err = svc.GetUserByID(ctx, 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := createUser(t, svc, "carol@example.com")

	require.NoError(t, svc.UpdateUser(ctx, id, entity.Changes{Name: str("Carol"), AuthRole: str("admin")}))
	u, err := svc.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Carol", *u.Name)
	assert.Contains(t, u.Activities, "view-users")

	// clearing the role drops every activity
	require.NoError(t, svc.UpdateUser(ctx, id, entity.Changes{AuthRole: str("")}))
	u, err = svc.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, u.AuthRole)
	assert.Empty(t, u.Activities)

	assert.NoError(t, svc.UpdateUser(ctx, id, entity.Changes{}))
	assert.ErrorIs(t, svc.UpdateUser(ctx, id, entity.Changes{Phone: str("12345678901")}), ErrInvalidPhone)
	assert.ErrorIs(t, svc.UpdateUser(ctx, 999, entity.Changes{Name: str("x")}), ErrUserNotFound)
}

func TestGetAllAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	a := createUser(t, svc, "b@example.com")
	createUser(t, svc, "a@example.com")

	all, err := svc.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a@example.com", all[0].Email)

	require.NoError(t, svc.DeleteUserByID(ctx, a))
	all, err = svc.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, SanitizeAll(all), 1)
}

func TestUpdateLockoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := createUser(t, svc, "dave@example.com")

	t1 := time.UnixMilli(1_700_000_000_000)
	t2 := t1.Add(10 * time.Second)
	until := t2.Add(10 * time.Minute)
	require.NoError(t, svc.UpdateLockout(ctx, id, []time.Time{t1, t2}, &until))

	u, err := svc.GetUserByID(ctx, id)
	require.NoError(t, err)
	require.Len(t, u.FailedLogons, 2)
	assert.True(t, u.FailedLogons[0].Equal(t1))
	require.NotNil(t, u.LockedUntil)
	assert.True(t, u.LockedUntil.Equal(until))
	assert.True(t, u.IsLocked(t2))

	require.NoError(t, svc.UpdateLockout(ctx, id, nil, nil))
	u, err = svc.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, u.FailedLogons)
	assert.Nil(t, u.LockedUntil)
}
