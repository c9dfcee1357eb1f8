package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-apd/internal/apd"
	apdrepo "github.com/ovaphlow/pitchfork/service-apd/internal/apd/repo"
	"github.com/ovaphlow/pitchfork/service-apd/internal/auth"
	"github.com/ovaphlow/pitchfork/service-apd/internal/authrole"
	rolerepo "github.com/ovaphlow/pitchfork/service-apd/internal/authrole/repo"
	"github.com/ovaphlow/pitchfork/service-apd/internal/config"
	"github.com/ovaphlow/pitchfork/service-apd/internal/session"
	sessionrepo "github.com/ovaphlow/pitchfork/service-apd/internal/session/repo"
	"github.com/ovaphlow/pitchfork/service-apd/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-apd/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-apd/pkg/database"
	"github.com/ovaphlow/pitchfork/service-apd/pkg/utilities"
)

// app holds the wired services shared by every command.
type app struct {
	cfg      config.Config
	logger   *zap.SugaredLogger
	db       *sqlx.DB
	clock    clockwork.Clock
	registry *prometheus.Registry

	hasher   auth.BcryptHasher
	roles    *authrole.Service
	users    *user.UserService
	sessions *session.Service
	apds     *apd.Service
}

func newApp(logger *zap.SugaredLogger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	dbCfg := database.ConfigFromEnv()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	logger.Infow("database connected", "driver", dbCfg.Driver)

	ids, err := utilities.IDGeneratorFromEnv()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("id generator: %w", err)
	}

	clock := clockwork.NewRealClock()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	roles := authrole.NewService(rolerepo.NewRepo(db))
	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		clock:    clock,
		registry: reg,
		hasher:   hasher,
		roles:    roles,
		users:    user.NewUserService(userrepo.NewUserRepo(db), roles, hasher, ids, logger),
		sessions: session.NewService(sessionrepo.NewSessionRepo(db), clock, cfg.SessionTTL),
		apds:     apd.NewService(apdrepo.NewAPDRepo(db), ids, clock, logger),
	}, nil
}

// migrate creates every table and seeds roles, activities and states.
func (a *app) migrate(ctx context.Context) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"roles", a.roles.EnsureTable},
		{"users", a.users.EnsureTable},
		{"sessions", a.sessions.EnsureTable},
		{"apds", a.apds.EnsureTable},
	}
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("migrate %s: %w", s.name, err)
		}
		a.logger.Debugw("tables ensured", "group", s.name)
	}
	return nil
}

// authenticator builds the login checker around a fresh per-process secret.
func (a *app) authenticator() (*auth.Authenticator, error) {
	secret, err := auth.NewRandomSecret()
	if err != nil {
		return nil, err
	}
	nonces, err := auth.NewNonceSigner(secret, a.cfg.NonceTTL, a.clock)
	if err != nil {
		return nil, err
	}
	return auth.NewAuthenticator(nonces, a.users, a.hasher,
		auth.WithClock(a.clock),
		auth.WithMetrics(auth.NewMetrics(a.registry)),
		auth.WithLogger(a.logger.Named("auth")),
	), nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warnw("db close failed", "err", err)
	}
}
