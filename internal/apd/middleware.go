package apd

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-apd/internal/apd/entity"
	"github.com/ovaphlow/pitchfork/service-apd/internal/respond"
	"github.com/ovaphlow/pitchfork/service-apd/internal/session"
)

type apdKey struct{}

type activityKey struct{}

// APDFromContext returns the APD loaded by LoadAPD or LoadActivity.
func APDFromContext(ctx context.Context) *entity.APD {
	a, _ := ctx.Value(apdKey{}).(*entity.APD)
	return a
}

// ActivityFromContext returns the activity loaded by LoadActivity.
func ActivityFromContext(ctx context.Context) *entity.Activity {
	a, _ := ctx.Value(activityKey{}).(*entity.Activity)
	return a
}

// LoadAPD loads the APD named by the {id} route parameter, or answers 404.
func LoadAPD(svc *Service, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := routeID(r)
			if !ok {
				respond.Status(w, http.StatusNotFound)
				return
			}
			a, err := svc.GetAPDHeader(r.Context(), id)
			if err != nil {
				if errors.Is(err, ErrAPDNotFound) {
					respond.Status(w, http.StatusNotFound)
					return
				}
				logger.Errorw("load apd failed", "apd_id", id, "err", err)
				respond.Status(w, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), apdKey{}, a)))
		})
	}
}

// LoadActivity loads the activity named by the {id} route parameter, with
// its nested goals and approaches, and its parent APD. Missing is 404.
func LoadActivity(svc *Service, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := routeID(r)
			if !ok {
				respond.Status(w, http.StatusNotFound)
				return
			}
			act, err := svc.GetActivity(r.Context(), id)
			if err != nil {
				if errors.Is(err, ErrActivityNotFound) {
					respond.Status(w, http.StatusNotFound)
					return
				}
				logger.Errorw("load activity failed", "activity_id", id, "err", err)
				respond.Status(w, http.StatusInternalServerError)
				return
			}
			parent, err := svc.GetAPDHeader(r.Context(), act.APDID)
			if err != nil {
				if errors.Is(err, ErrAPDNotFound) {
					respond.Status(w, http.StatusNotFound)
					return
				}
				logger.Errorw("load activity apd failed", "activity_id", id, "apd_id", act.APDID, "err", err)
				respond.Status(w, http.StatusInternalServerError)
				return
			}
			ctx := context.WithValue(r.Context(), activityKey{}, act)
			ctx = context.WithValue(ctx, apdKey{}, parent)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize requires the caller to hold activity and to belong to the state
// that owns the loaded APD. A foreign APD answers 404 so its existence is
// not revealed. It must run after session.LoggedIn and a loader.
func Authorize(activity string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := session.UserFromContext(r.Context())
			if u == nil {
				respond.Status(w, http.StatusUnauthorized)
				return
			}
			if !u.Can(activity) {
				respond.Status(w, http.StatusForbidden)
				return
			}
			a := APDFromContext(r.Context())
			if a == nil || u.State.ID == "" || a.StateID != u.State.ID {
				respond.Status(w, http.StatusNotFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func routeID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
