package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-apd/internal/router"
	"github.com/ovaphlow/pitchfork/service-apd/internal/user"
	"github.com/ovaphlow/pitchfork/service-apd/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-apd/pkg/utilities"
)

var sugar *zap.SugaredLogger

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	sugar = lg.Sugar()

	err = rootCmd.Execute()
	_ = lg.Sync()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "apd-api",
	Short:        "APD authoring service",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Ensure tables and serve the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and seed roles, activities and states",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(sugar)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.migrate(cmd.Context()); err != nil {
			return err
		}
		sugar.Info("migration complete")
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var newUser struct {
	email, password, name, role, state string
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account, e.g. the first admin",
	Long: `Create a user account directly against the database.

Examples:
  apd-api user create --email admin@example.com --password '...' --role admin`,
	RunE: runUserCreate,
}

func init() {
	userCreateCmd.Flags().StringVar(&newUser.email, "email", "", "account email (required)")
	userCreateCmd.Flags().StringVar(&newUser.password, "password", "", "account password (required)")
	userCreateCmd.Flags().StringVar(&newUser.name, "name", "", "display name")
	userCreateCmd.Flags().StringVar(&newUser.role, "role", "", "auth role, e.g. admin or state-staff")
	userCreateCmd.Flags().StringVar(&newUser.state, "state", "", "two-letter state id")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, userCmd)
}

func runUserCreate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(sugar)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.migrate(cmd.Context()); err != nil {
		return err
	}

	c := entity.Changes{Email: &newUser.email, Password: &newUser.password}
	if newUser.name != "" {
		c.Name = &newUser.name
	}
	if newUser.role != "" {
		c.AuthRole = &newUser.role
	}
	if newUser.state != "" {
		c.StateID = &newUser.state
	}
	id, err := a.users.CreateUser(cmd.Context(), c)
	if err != nil {
		if kind := user.ValidationKind(err); kind != "" {
			return fmt.Errorf("invalid user: %s", kind)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %d\n", id)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	sugar.Info("starting service-apd")

	a, err := newApp(sugar)
	if err != nil {
		return err
	}
	defer a.close()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.migrate(ctx); err != nil {
		return err
	}
	authenticator, err := a.authenticator()
	if err != nil {
		return err
	}

	handler := router.New(router.Deps{
		Config:   a.cfg,
		Logger:   sugar,
		Registry: a.registry,
		Clock:    a.clock,
		Users:    a.users,
		Roles:    a.roles,
		Sessions: a.sessions,
		Auth:     authenticator,
		APDs:     a.apds,
		Ping:     a.db.PingContext,
	})
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go purgeSessions(ctx, a)

	errc := make(chan error, 1)
	go func() {
		sugar.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
	return nil
}

// purgeSessions drops expired sessions every ten minutes until ctx ends.
func purgeSessions(ctx context.Context, a *app) {
	ticker := a.clock.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			n, err := a.sessions.PurgeExpired(ctx)
			if err != nil {
				sugar.Warnw("purge sessions failed", "err", err)
				continue
			}
			if n > 0 {
				sugar.Debugw("expired sessions purged", "count", n)
			}
		}
	}
}
