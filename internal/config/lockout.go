package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envLockWindow   = "AUTH_LOCK_FAILED_ATTEMPTS_WINDOW_TIME_MINUTES"
	envLockCount    = "AUTH_LOCK_FAILED_ATTEMPTS_COUNT"
	envLockDuration = "AUTH_LOCK_FAILED_ATTEMPTS_DURATION_MINUTES"
)

// LockoutPolicy controls when repeated failed logons lock an account.
type LockoutPolicy struct {
	// Window is the trailing interval in which failures are counted.
	Window time.Duration
	// Threshold is the failure count that triggers a lock; <= 0 disables locking.
	Threshold int
	// Duration is how long a triggered lock lasts.
	Duration time.Duration
}

// DefaultLockoutPolicy is used for any tunable missing from the environment.
var DefaultLockoutPolicy = LockoutPolicy{
	Window:    1 * time.Minute,
	Threshold: 5,
	Duration:  10 * time.Minute,
}

// LockoutPolicyFromEnv reads the lockout tunables. It is called on every
// authentication attempt so operators can retune without a restart.
func LockoutPolicyFromEnv() LockoutPolicy {
	p := DefaultLockoutPolicy
	if v, ok := envFloat(envLockWindow); ok && v > 0 {
		p.Window = minutes(v)
	}
	if v, ok := envFloat(envLockCount); ok {
		p.Threshold = int(v)
	}
	if v, ok := envFloat(envLockDuration); ok && v > 0 {
		p.Duration = minutes(v)
	}
	return p
}

// Enabled reports whether the policy can lock accounts at all.
func (p LockoutPolicy) Enabled() bool {
	return p.Threshold > 0
}

func envFloat(key string) (float64, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func minutes(v float64) time.Duration {
	return time.Duration(v * float64(time.Minute))
}
