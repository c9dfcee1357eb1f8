package user

import (
	"context"
	"errors"
	"strings"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/ovaphlow/pitchfork/service-apd/internal/user/entity"
)

// MinPasswordScore is the lowest acceptable zxcvbn score (0-4).
const MinPasswordScore = 3

// MaxPhoneDigits is the longest phone number accepted after stripping formatting.
const MaxPhoneDigits = 10

// ValidationError is a user-facing validation failure. Kind is the stable
// token clients translate, e.g. "email-exists".
type ValidationError struct {
	Kind string
}

func (e *ValidationError) Error() string { return e.Kind }

// Validation failures, one per checked field.
var (
	ErrInvalidEmail = &ValidationError{Kind: "invalid-email"}
	ErrEmailExists  = &ValidationError{Kind: "email-exists"}
	ErrWeakPassword = &ValidationError{Kind: "weak-password"}
	ErrInvalidPhone = &ValidationError{Kind: "invalid-phone"}
	ErrInvalidRole  = &ValidationError{Kind: "invalid-role"}
	ErrInvalidState = &ValidationError{Kind: "invalid-state"}
)

// ValidationKind returns the token of a validation failure, or "" when err
// is not one.
func ValidationKind(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// validator checks one field of a candidate. It returns a *ValidationError
// for a bad value and any other error for lookup failures.
type validator func(ctx context.Context, c *entity.Changes) error

func (s *UserService) validators() []validator {
	return []validator{
		s.validateEmail,
		s.validatePassword,
		validatePhone,
		s.validateRole,
		s.validateState,
	}
}

// Validate checks the fields present in c, in order, stopping at the first failure.
func (s *UserService) Validate(ctx context.Context, c entity.Changes) error {
	for _, check := range s.validators() {
		if err := check(ctx, &c); err != nil {
			return err
		}
	}
	return nil
}

func present(v *string) bool {
	return v != nil && *v != ""
}

func (s *UserService) validateEmail(ctx context.Context, c *entity.Changes) error {
	if c.Email == nil {
		return nil
	}
	// the email is the username, so it can change but never be cleared
	if strings.TrimSpace(*c.Email) == "" {
		return ErrInvalidEmail
	}
	existing, err := s.repo.GetByEmail(ctx, strings.TrimSpace(*c.Email))
	if err != nil {
		if isNoRows(err) {
			return nil
		}
		return err
	}
	if existing.ID != c.ID {
		s.logger.Debugw("user with email already exists", "email", *c.Email)
		return ErrEmailExists
	}
	return nil
}

func (s *UserService) validatePassword(ctx context.Context, c *entity.Changes) error {
	if !present(c.Password) {
		return nil
	}
	var hints []string
	if c.ID != 0 {
		current, err := s.repo.GetByID(ctx, c.ID)
		if err != nil && !isNoRows(err) {
			return err
		}
		if current != nil {
			if present(c.Email) {
				hints = append(hints, *c.Email)
			} else {
				hints = append(hints, current.Email)
			}
			if current.Name != nil {
				hints = append(hints, *current.Name)
			}
		}
	}
	score := zxcvbn.PasswordStrength(*c.Password, hints).Score
	if score < MinPasswordScore {
		s.logger.Debugw("password is too weak", "score", score)
		return ErrWeakPassword
	}
	return nil
}

func validatePhone(_ context.Context, c *entity.Changes) error {
	if !present(c.Phone) {
		return nil
	}
	if len(digitsOnly(*c.Phone)) > MaxPhoneDigits {
		return ErrInvalidPhone
	}
	return nil
}

func (s *UserService) validateRole(ctx context.Context, c *entity.Changes) error {
	if !present(c.AuthRole) {
		return nil
	}
	ok, err := s.roles.ActiveRoleExists(ctx, *c.AuthRole)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Debugw("auth role is invalid or inactive", "role", *c.AuthRole)
		return ErrInvalidRole
	}
	return nil
}

func (s *UserService) validateState(ctx context.Context, c *entity.Changes) error {
	if !present(c.StateID) {
		return nil
	}
	ok, err := s.roles.StateExists(ctx, *c.StateID)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Debugw("state id is invalid", "state", *c.StateID)
		return ErrInvalidState
	}
	return nil
}

// digitsOnly strips everything but 0-9.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
