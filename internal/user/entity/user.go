package entity

import (
	"time"

	roleentity "github.com/ovaphlow/pitchfork/service-apd/internal/authrole/entity"
)

// User represents an account row in the `users` table, enriched with the
// activities granted by its role and its resolved state. This is the raw
// form: it carries the password hash and lockout bookkeeping and must be
// passed through Sanitize before leaving the service.
type User struct {
	ID       int64
	Email    string
	Name     *string
	Phone    *string
	Position *string
	// PasswordHash is the bcrypt hash, never the plaintext.
	PasswordHash string
	AuthRole     *string
	StateID      *string
	// FailedLogons holds recent failed logon times, oldest first.
	FailedLogons []time.Time
	LockedUntil  *time.Time

	Activities []string
	State      roleentity.State
}

// SanitizedUser is the client-safe projection of a User.
type SanitizedUser struct {
	Activities []string         `json:"activities"`
	ID         int64            `json:"id"`
	Name       *string          `json:"name"`
	Phone      *string          `json:"phone"`
	Position   *string          `json:"position"`
	Role       *string          `json:"role"`
	State      roleentity.State `json:"state"`
	Username   string           `json:"username"`
}

// Sanitize projects the user to the fields clients may see.
func (u *User) Sanitize() *SanitizedUser {
	activities := u.Activities
	if activities == nil {
		activities = []string{}
	}
	return &SanitizedUser{
		Activities: activities,
		ID:         u.ID,
		Name:       u.Name,
		Phone:      u.Phone,
		Position:   u.Position,
		Role:       u.AuthRole,
		State:      u.State,
		Username:   u.Email,
	}
}

// IsLocked reports whether the account lock is still in force at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// Can reports whether the user's role grants activity.
func (s *SanitizedUser) Can(activity string) bool {
	for _, a := range s.Activities {
		if a == activity {
			return true
		}
	}
	return false
}

// Changes is a create/update candidate. Nil fields are not part of the
// change set; validation and persistence only touch the fields present.
type Changes struct {
	// ID is the user being updated; zero when creating.
	ID       int64
	Email    *string
	Password *string
	Name     *string
	Phone    *string
	Position *string
	AuthRole *string
	StateID  *string
}

// Empty reports whether the change set carries no fields.
func (c Changes) Empty() bool {
	return c.Email == nil && c.Password == nil && c.Name == nil && c.Phone == nil &&
		c.Position == nil && c.AuthRole == nil && c.StateID == nil
}
