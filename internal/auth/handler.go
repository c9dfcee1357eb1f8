package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-apd/internal/respond"
	"github.com/ovaphlow/pitchfork/service-apd/internal/session"
)

// Sessions is the slice of session.Service the login endpoints need.
type Sessions interface {
	Issue(ctx context.Context, userID int64) (*session.Session, error)
	Revoke(ctx context.Context, token string) error
}

// CookieConfig describes the session cookie written on login.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler exposes the nonce exchange and login endpoints.
type Handler struct {
	auth     *Authenticator
	sessions Sessions
	cookie   CookieConfig
	logger   *zap.SugaredLogger
}

func NewHandler(a *Authenticator, sessions Sessions, cookie CookieConfig, logger *zap.SugaredLogger) *Handler {
	return &Handler{auth: a, sessions: sessions, cookie: cookie, logger: logger}
}

type nonceRequest struct {
	Username string `json:"username"`
}

type nonceResponse struct {
	Nonce string `json:"nonce"`
}

type loginRequest struct {
	Nonce    string `json:"nonce"`
	Password string `json:"password"`
}

// Nonce handles POST /auth/login/nonce.
func (h *Handler) Nonce(w http.ResponseWriter, r *http.Request) {
	var req nonceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		respond.Status(w, http.StatusBadRequest)
		return
	}
	nonce, err := h.auth.IssueNonce(strings.TrimSpace(req.Username))
	if err != nil {
		h.logger.Errorw("issue nonce failed", "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}
	respond.JSON(w, http.StatusOK, nonceResponse{Nonce: nonce})
}

// Login handles POST /auth/login. On success the session cookie is set and
// the sanitized user is returned.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nonce == "" {
		respond.Status(w, http.StatusBadRequest)
		return
	}
	u, err := h.auth.Authenticate(r.Context(), req.Nonce, req.Password)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			respond.Status(w, http.StatusUnauthorized)
			return
		}
		h.logger.Errorw("authenticate failed", "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}
	sess, err := h.sessions.Issue(r.Context(), u.ID)
	if err != nil {
		h.logger.Errorw("issue session failed", "user_id", u.ID, "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}
	session.SetCookie(w, h.cookie.Name, sess, h.cookie.Secure)
	h.logger.Infow("user logged in", "user_id", u.ID)
	respond.JSON(w, http.StatusOK, u)
}

// Logout handles GET /auth/logout. It always succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := session.TokenFromRequest(r, h.cookie.Name); token != "" {
		if err := h.sessions.Revoke(r.Context(), token); err != nil {
			h.logger.Warnw("revoke session failed", "err", err)
		}
	}
	session.ClearCookie(w, h.cookie.Name, h.cookie.Secure)
	respond.Status(w, http.StatusOK)
}

// Me handles GET /me for a logged-in caller.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u := session.UserFromContext(r.Context())
	if u == nil {
		respond.Status(w, http.StatusUnauthorized)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}
