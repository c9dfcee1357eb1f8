package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	userentity "github.com/ovaphlow/pitchfork/service-apd/internal/user/entity"
)

// ErrUnknownUser is returned by a UserLoader when the session's user no longer exists.
var ErrUnknownUser = errors.New("session user not found")

// UserLoader resolves the sanitized user behind a session.
type UserLoader func(ctx context.Context, id int64) (*userentity.SanitizedUser, error)

type ctxKey struct{}

// WithUser returns a context carrying the logged-in user.
func WithUser(ctx context.Context, u *userentity.SanitizedUser) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the logged-in user, or nil.
func UserFromContext(ctx context.Context) *userentity.SanitizedUser {
	u, _ := ctx.Value(ctxKey{}).(*userentity.SanitizedUser)
	return u
}

// TokenFromRequest reads the session token from the cookie or a bearer header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > len("bearer ") && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}

// LoggedIn rejects requests without a valid session with 401 and stores the
// session user in the request context. Store failures answer 500.
func LoggedIn(svc *Service, load UserLoader, cookieName string, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := svc.Validate(r.Context(), TokenFromRequest(r, cookieName))
			if errors.Is(err, ErrNoSession) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if err != nil {
				logger.Errorw("validate session failed", "err", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			u, err := load(r.Context(), sess.UserID)
			if err != nil {
				if errors.Is(err, ErrUnknownUser) {
					_ = svc.Revoke(r.Context(), sess.Token)
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				logger.Errorw("load session user failed", "user_id", sess.UserID, "err", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// Can allows the request only when the logged-in user's role grants activity.
// It must run after LoggedIn.
func Can(activity string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if !u.Can(activity) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, name string, sess *Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		Expires:  sess.ExpiresAt,
	})
}

// ClearCookie expires the session cookie in the browser.
func ClearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
