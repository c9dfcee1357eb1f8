package session

import "time"

// Session is a persisted login session identified by an opaque token.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}
