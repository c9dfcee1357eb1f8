package apd

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	roleentity "github.com/ovaphlow/pitchfork/service-apd/internal/authrole/entity"
	"github.com/ovaphlow/pitchfork/service-apd/internal/session"
)

// Mount registers the APD and activity routes on r. The caller is expected
// to have installed session.LoggedIn already.
func Mount(r chi.Router, h *Handler, svc *Service, logger *zap.SugaredLogger) {
	view := roleentity.ActivityViewDocument
	edit := roleentity.ActivityEditDocument

	r.Route("/apds", func(r chi.Router) {
		r.With(session.Can(view)).Get("/", h.List)
		r.With(session.Can(edit)).Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Use(LoadAPD(svc, logger))
			r.With(Authorize(view)).Get("/", h.Get)
			r.With(Authorize(edit)).Post("/activities", h.CreateActivity)
			r.With(Authorize(edit)).Put("/key-personnel", h.PutKeyPersonnel)
		})
	})

	r.Route("/activities/{id}", func(r chi.Router) {
		r.Use(LoadActivity(svc, logger))
		r.With(Authorize(view)).Get("/", h.GetActivity)
		r.With(Authorize(edit)).Delete("/", h.DeleteActivity)
		r.With(Authorize(edit)).Put("/approaches", h.PutApproaches)
		r.With(Authorize(edit)).Put("/goals", h.PutGoals)
	})
}
