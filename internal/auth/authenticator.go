package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-apd/internal/config"
	"github.com/ovaphlow/pitchfork/service-apd/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-apd/internal/user/entity"
)

// ErrRejected is the only failure callers see for a refused login. It does
// not say whether the nonce, the account or the password was at fault.
var ErrRejected = errors.New("authentication rejected")

// UserStore is the slice of user.UserService the authenticator needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*userentity.User, error)
	UpdateLockout(ctx context.Context, id int64, failedLogons []time.Time, lockedUntil *time.Time) error
}

// Authenticator checks nonce + password logins and keeps the failed logon
// bookkeeping that drives account locking.
type Authenticator struct {
	nonces *NonceSigner
	users  UserStore
	hasher user.PasswordHasher
	policy func() config.LockoutPolicy
	clock  clockwork.Clock
	stats  *Metrics
	logger *zap.SugaredLogger

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*Authenticator)

// WithPolicy overrides where the lockout policy is read from. The default
// reads the environment on every call.
func WithPolicy(fn func() config.LockoutPolicy) Option {
	return func(a *Authenticator) { a.policy = fn }
}

func WithClock(c clockwork.Clock) Option {
	return func(a *Authenticator) { a.clock = c }
}

func WithMetrics(m *Metrics) Option {
	return func(a *Authenticator) { a.stats = m }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Authenticator) { a.logger = l }
}

func NewAuthenticator(nonces *NonceSigner, users UserStore, hasher user.PasswordHasher, opts ...Option) *Authenticator {
	a := &Authenticator{
		nonces: nonces,
		users:  users,
		hasher: hasher,
		policy: config.LockoutPolicyFromEnv,
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IssueNonce returns a login challenge bound to username.
func (a *Authenticator) IssueNonce(username string) (string, error) {
	return a.nonces.Issue(username)
}

// Authenticate verifies the nonce, enforces the account lock and checks the
// password. Failed attempts against an existing account are recorded and may
// lock it. Any refusal is ErrRejected; other errors are internal.
func (a *Authenticator) Authenticate(ctx context.Context, nonce, password string) (*userentity.SanitizedUser, error) {
	username, err := a.nonces.Verify(nonce)
	if err != nil {
		a.logger.Debugw("nonce rejected", "err", err)
		a.stats.observe(OutcomeBadNonce)
		return nil, ErrRejected
	}

	u, err := a.users.GetUserByEmail(ctx, username)
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		u = nil
	case err != nil:
		a.stats.observe(OutcomeInternalFail)
		return nil, fmt.Errorf("load user: %w", err)
	}

	now := a.clock.Now()
	policy := a.policy()

	if u != nil && u.LockedUntil != nil {
		if u.IsLocked(now) {
			a.logger.Infow("login refused, account locked", "user_id", u.ID, "locked_until", u.LockedUntil)
			a.stats.observe(OutcomeLocked)
			return nil, ErrRejected
		}
		// lock has lapsed: start over with a clean history
		if err := a.users.UpdateLockout(ctx, u.ID, nil, nil); err != nil {
			a.stats.observe(OutcomeInternalFail)
			return nil, fmt.Errorf("clear expired lock: %w", err)
		}
		u.FailedLogons = nil
		u.LockedUntil = nil
	}

	if u == nil {
		a.burnCompare(password)
		a.stats.observe(OutcomeUnknownUser)
		return nil, ErrRejected
	}

	if a.hasher.Compare(password, u.PasswordHash) {
		a.stats.observe(OutcomeSuccess)
		return u.Sanitize(), nil
	}

	failures := recentFailures(u.FailedLogons, now.Add(-policy.Window))
	failures = append(failures, now)
	var lockedUntil *time.Time
	if policy.Enabled() && len(failures) >= policy.Threshold {
		until := now.Add(policy.Duration)
		lockedUntil = &until
	}
	if err := a.users.UpdateLockout(ctx, u.ID, failures, lockedUntil); err != nil {
		a.stats.observe(OutcomeInternalFail)
		return nil, fmt.Errorf("record failed logon: %w", err)
	}

	if lockedUntil != nil {
		a.logger.Warnw("account locked after failed logons", "user_id", u.ID, "failures", len(failures), "locked_until", *lockedUntil)
		a.stats.observe(OutcomeLockedNow)
	} else {
		a.logger.Debugw("failed logon", "user_id", u.ID, "failures", len(failures))
		a.stats.observe(OutcomeBadPassword)
	}
	return nil, ErrRejected
}

// recentFailures keeps the failures strictly after since.
func recentFailures(failures []time.Time, since time.Time) []time.Time {
	out := make([]time.Time, 0, len(failures)+1)
	for _, f := range failures {
		if f.After(since) {
			out = append(out, f)
		}
	}
	return out
}

// burnCompare runs a password comparison against a throwaway hash so an
// unknown username costs about as much as a wrong password.
func (a *Authenticator) burnCompare(password string) {
	a.dummyOnce.Do(func() {
		h, err := a.hasher.Hash("not-a-real-password")
		if err != nil {
			a.logger.Warnw("dummy hash failed", "err", err)
			return
		}
		a.dummyHash = h
	})
	if a.dummyHash != "" {
		a.hasher.Compare(password, a.dummyHash)
	}
}
