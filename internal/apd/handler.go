package apd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-apd/internal/apd/entity"
	"github.com/ovaphlow/pitchfork/service-apd/internal/respond"
	"github.com/ovaphlow/pitchfork/service-apd/internal/session"
)

const maxBodyBytes = 1 << 20

var errNotArray = errors.New("request body is not an array")

// Handler exposes APD and activity endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /apds: the caller's state's APDs.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	u := session.UserFromContext(r.Context())
	if u == nil || u.State.ID == "" {
		respond.JSON(w, http.StatusOK, []*entity.APD{})
		return
	}
	apds, err := h.svc.ListAPDs(r.Context(), u.State.ID)
	if err != nil {
		h.logger.Errorw("list apds failed", "state", u.State.ID, "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}
	respond.JSON(w, http.StatusOK, apds)
}

type createAPDRequest struct {
	Years []string `json:"years"`
}

// Create handles POST /apds for the caller's state.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	u := session.UserFromContext(r.Context())
	if u == nil || u.State.ID == "" {
		respond.Status(w, http.StatusForbidden)
		return
	}
	var req createAPDRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respond.Error(w, http.StatusBadRequest, "add-apd-invalid")
			return
		}
	}
	a, err := h.svc.CreateAPD(r.Context(), u.State.ID, req.Years)
	if err != nil {
		if errors.Is(err, ErrInvalidYears) {
			respond.Error(w, http.StatusBadRequest, "add-apd-invalid-years")
			return
		}
		h.logger.Errorw("create apd failed", "state", u.State.ID, "err", err)
		respond.Status(w, http.StatusInternalServerError)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}

// Get handles GET /apds/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := APDFromContext(r.Context()).ID
	a, err := h.svc.GetAPD(r.Context(), id)
	if err != nil {
		h.fail(w, err, "get apd failed", "apd_id", id)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}

type activityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Summary     string `json:"summary"`
}

// CreateActivity handles POST /apds/{id}/activities.
func (h *Handler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	parent := APDFromContext(r.Context())
	var req activityRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "add-activity-invalid")
		return
	}
	act, err := h.svc.CreateActivity(r.Context(), parent.ID, req.Name, req.Description, req.Summary)
	if err != nil {
		if errors.Is(err, ErrInvalidActivity) {
			respond.Error(w, http.StatusBadRequest, "add-activity-invalid")
			return
		}
		h.fail(w, err, "create activity failed", "apd_id", parent.ID)
		return
	}
	respond.JSON(w, http.StatusOK, act)
}

// PutKeyPersonnel handles PUT /apds/{id}/key-personnel.
func (h *Handler) PutKeyPersonnel(w http.ResponseWriter, r *http.Request) {
	parent := APDFromContext(r.Context())
	people, err := decodeArray[entity.KeyPerson](r)
	if err != nil {
		h.logger.Debugw("invalid key personnel payload", "apd_id", parent.ID, "err", err)
		respond.Error(w, http.StatusBadRequest, "edit-apd-invalid-key-personnel")
		return
	}
	a, err := h.svc.ReplaceKeyPersonnel(r.Context(), parent.ID, people)
	if err != nil {
		if errors.Is(err, ErrInvalidKeyPersonnel) {
			respond.Error(w, http.StatusBadRequest, "edit-apd-invalid-key-personnel")
			return
		}
		h.fail(w, err, "replace key personnel failed", "apd_id", parent.ID)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}

// GetActivity handles GET /activities/{id}.
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, ActivityFromContext(r.Context()))
}

// DeleteActivity handles DELETE /activities/{id}.
func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	id := ActivityFromContext(r.Context()).ID
	if err := h.svc.DeleteActivity(r.Context(), id); err != nil {
		h.fail(w, err, "delete activity failed", "activity_id", id)
		return
	}
	respond.Status(w, http.StatusOK)
}

// PutApproaches handles PUT /activities/{id}/approaches. The body must be
// an array; the activity's approaches are replaced wholesale and the
// refreshed activity is returned.
func (h *Handler) PutApproaches(w http.ResponseWriter, r *http.Request) {
	id := ActivityFromContext(r.Context()).ID
	entries, err := decodeArray[entity.Approach](r)
	if err != nil {
		h.logger.Debugw("invalid approaches payload", "activity_id", id, "err", err)
		respond.Error(w, http.StatusBadRequest, "edit-activity-invalid-approaches")
		return
	}
	act, err := h.svc.ReplaceApproaches(r.Context(), id, entries)
	if err != nil {
		h.fail(w, err, "replace approaches failed", "activity_id", id)
		return
	}
	respond.JSON(w, http.StatusOK, act)
}

// PutGoals handles PUT /activities/{id}/goals.
func (h *Handler) PutGoals(w http.ResponseWriter, r *http.Request) {
	id := ActivityFromContext(r.Context()).ID
	goals, err := decodeArray[entity.Goal](r)
	if err != nil {
		h.logger.Debugw("invalid goals payload", "activity_id", id, "err", err)
		respond.Error(w, http.StatusBadRequest, "edit-activity-invalid-goals")
		return
	}
	act, err := h.svc.ReplaceGoals(r.Context(), id, goals)
	if err != nil {
		h.fail(w, err, "replace goals failed", "activity_id", id)
		return
	}
	respond.JSON(w, http.StatusOK, act)
}

// fail maps not-found errors to 404 and logs anything else as a 500.
func (h *Handler) fail(w http.ResponseWriter, err error, msg string, kv ...any) {
	if errors.Is(err, ErrAPDNotFound) || errors.Is(err, ErrActivityNotFound) {
		respond.Status(w, http.StatusNotFound)
		return
	}
	h.logger.Errorw(msg, append(kv, "err", err)...)
	respond.Status(w, http.StatusInternalServerError)
}

// decodeArray decodes a JSON array body into a slice of T. Any other JSON
// value, including null, is rejected. Elements that are not objects are
// skipped, the same as entries with nothing filled in.
func decodeArray[T any](r *http.Request) ([]T, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errNotArray
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(elems))
	for _, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 || e[0] != '{' {
			continue
		}
		var v T
		if err := json.Unmarshal(e, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
