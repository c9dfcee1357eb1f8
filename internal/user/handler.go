package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	roleentity "github.com/ovaphlow/pitchfork/service-apd/internal/authrole/entity"
	"github.com/ovaphlow/pitchfork/service-apd/internal/respond"
	"github.com/ovaphlow/pitchfork/service-apd/internal/session"
	"github.com/ovaphlow/pitchfork/service-apd/internal/user/entity"
)

// Accounts is the slice of UserService the HTTP layer needs.
type Accounts interface {
	CreateUser(ctx context.Context, c entity.Changes) (int64, error)
	UpdateUser(ctx context.Context, id int64, c entity.Changes) error
	DeleteUserByID(ctx context.Context, id int64) error
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
	GetAllUsers(ctx context.Context) ([]*entity.User, error)
}

// Handler exposes HTTP endpoints for user administration.
type Handler struct {
	svc    Accounts
	logger *zap.SugaredLogger
}

func NewHandler(svc Accounts, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// AccountRequest is the accepted account payload. Any other field in the
// request body is discarded.
type AccountRequest struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Password *string `json:"password"`
	Phone    *string `json:"phone"`
	Position *string `json:"position"`
	Role     *string `json:"role"`
	State    *string `json:"state"`
}

// Changes maps external field names onto the internal change set.
func (req AccountRequest) Changes() entity.Changes {
	return entity.Changes{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Phone:    req.Phone,
		Position: req.Position,
		AuthRole: req.Role,
		StateID:  req.State,
	}
}

// Create handles POST /users. Success is 200 with no body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid account payload", "err", err)
		respond.Error(w, http.StatusBadRequest, "add-account.invalid")
		return
	}
	if !present(req.Email) || !present(req.Password) {
		respond.Error(w, http.StatusBadRequest, "add-account.invalid")
		return
	}

	if _, err := h.svc.CreateUser(r.Context(), req.Changes()); err != nil {
		if kind := ValidationKind(err); kind != "" {
			respond.Error(w, http.StatusBadRequest, "add-account."+kind)
			return
		}
		h.logger.Errorw("create user failed", "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}
	respond.Status(w, http.StatusOK)
}

// List handles GET /users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.GetAllUsers(r.Context())
	if err != nil {
		h.logger.Errorw("list users failed", "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}
	respond.JSON(w, http.StatusOK, SanitizeAll(users))
}

// Get handles GET /users/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		respond.Status(w, http.StatusNotFound)
		return
	}
	u, err := h.svc.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			respond.Status(w, http.StatusNotFound)
			return
		}
		h.logger.Errorw("get user failed", "user_id", id, "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}
	respond.JSON(w, http.StatusOK, u.Sanitize())
}

// Update handles PUT /users/{id}. Users may edit their own account without
// the edit-users activity, but not their own role or state.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		respond.Status(w, http.StatusNotFound)
		return
	}
	caller := session.UserFromContext(r.Context())
	if caller == nil {
		respond.Status(w, http.StatusUnauthorized)
		return
	}
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "edit-account.invalid")
		return
	}

	if !caller.Can(roleentity.ActivityEditUsers) {
		if caller.ID != id || req.Role != nil || req.State != nil {
			respond.Status(w, http.StatusForbidden)
			return
		}
	}

	if err := h.svc.UpdateUser(r.Context(), id, req.Changes()); err != nil {
		if kind := ValidationKind(err); kind != "" {
			respond.Error(w, http.StatusBadRequest, "edit-account."+kind)
			return
		}
		if errors.Is(err, ErrUserNotFound) {
			respond.Status(w, http.StatusNotFound)
			return
		}
		h.logger.Errorw("update user failed", "user_id", id, "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}

	u, err := h.svc.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			respond.Status(w, http.StatusNotFound)
			return
		}
		h.logger.Errorw("reload user failed", "user_id", id, "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}
	respond.JSON(w, http.StatusOK, u.Sanitize())
}

// Delete handles DELETE /users/{id}. Users cannot delete themselves.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		respond.Status(w, http.StatusNotFound)
		return
	}
	if caller := session.UserFromContext(r.Context()); caller != nil && caller.ID == id {
		respond.Error(w, http.StatusForbidden, "delete-account.self")
		return
	}
	if err := h.svc.DeleteUserByID(r.Context(), id); err != nil {
		h.logger.Errorw("delete user failed", "user_id", id, "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}
	respond.Status(w, http.StatusOK)
}

func userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
