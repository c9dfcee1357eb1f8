package authrole

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-apd/internal/respond"
)

// Handler exposes read-only role and state listings.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// ListRoles returns active roles and their activities.
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.svc.ListRoles(r.Context())
	if err != nil {
		h.logger.Errorw("list roles failed", "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}
	respond.JSON(w, http.StatusOK, roles)
}

// ListStates returns every state.
func (h *Handler) ListStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.svc.ListStates(r.Context())
	if err != nil {
		h.logger.Errorw("list states failed", "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}
	respond.JSON(w, http.StatusOK, states)
}
