package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-apd/internal/apd"
	"github.com/ovaphlow/pitchfork/service-apd/internal/auth"
	"github.com/ovaphlow/pitchfork/service-apd/internal/authrole"
	roleentity "github.com/ovaphlow/pitchfork/service-apd/internal/authrole/entity"
	"github.com/ovaphlow/pitchfork/service-apd/internal/config"
	"github.com/ovaphlow/pitchfork/service-apd/internal/session"
	"github.com/ovaphlow/pitchfork/service-apd/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-apd/internal/user/entity"
)

// Deps are the services the HTTP surface is built from.
type Deps struct {
	Config   config.Config
	Logger   *zap.SugaredLogger
	Registry *prometheus.Registry
	Clock    clockwork.Clock

	Users    *user.UserService
	Roles    *authrole.Service
	Sessions *session.Service
	Auth     *auth.Authenticator
	APDs     *apd.Service

	// Ping reports database health for /health.
	Ping func(ctx context.Context) error
}

// New mounts every route on a chi router.
func New(d Deps) http.Handler {
	logger := d.Logger
	cookie := d.Config.SessionCookie

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware())
	r.Use(newHTTPMetrics(d.Registry).middleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ping(ctx); err != nil {
				logger.Warnw("health check failed", "err", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry}))

	authHandler := auth.NewHandler(d.Auth, d.Sessions, auth.CookieConfig{
		Name:   cookie,
		Secure: d.Config.SessionCookieSecure,
	}, logger)
	limiter := newClientLimiter(d.Config.LoginRatePerMinute, d.Config.LoginBurst, d.Clock)
	r.Route("/auth", func(r chi.Router) {
		r.Use(limiter.middleware)
		r.Post("/login/nonce", authHandler.Nonce)
		r.Post("/login", authHandler.Login)
		r.Get("/logout", authHandler.Logout)
	})

	userHandler := user.NewHandler(d.Users, logger)
	roleHandler := authrole.NewHandler(d.Roles, logger)
	apdHandler := apd.NewHandler(d.APDs, logger)

	r.Group(func(r chi.Router) {
		r.Use(session.LoggedIn(d.Sessions, SessionUserLoader(d.Users), cookie, logger))

		r.Get("/me", authHandler.Me)
		r.With(session.Can(roleentity.ActivityViewRoles)).Get("/roles", roleHandler.ListRoles)
		r.Get("/states", roleHandler.ListStates)

		r.Route("/users", func(r chi.Router) {
			r.With(session.Can(roleentity.ActivityAddUsers)).Post("/", userHandler.Create)
			r.With(session.Can(roleentity.ActivityViewUsers)).Get("/", userHandler.List)
			r.With(session.Can(roleentity.ActivityViewUsers)).Get("/{id}", userHandler.Get)
			// self-edit is decided by the handler
			r.Put("/{id}", userHandler.Update)
			r.With(session.Can(roleentity.ActivityDeleteUsers)).Delete("/{id}", userHandler.Delete)
		})

		apd.Mount(r, apdHandler, d.APDs, logger)
	})

	return r
}

// SessionUserLoader resolves session users through the user service.
func SessionUserLoader(users *user.UserService) session.UserLoader {
	return func(ctx context.Context, id int64) (*userentity.SanitizedUser, error) {
		u, err := users.GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				return nil, session.ErrUnknownUser
			}
			return nil, err
		}
		return u.Sanitize(), nil
	}
}
