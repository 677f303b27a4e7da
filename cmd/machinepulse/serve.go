package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/pgxstore"
	"github.com/alexedwards/scs/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/machinepulse/machinepulse/internal/backend"
	"github.com/machinepulse/machinepulse/internal/config"
	"github.com/machinepulse/machinepulse/internal/credential"
	httpapp "github.com/machinepulse/machinepulse/internal/http"
	"github.com/machinepulse/machinepulse/internal/metrics"
	"github.com/machinepulse/machinepulse/internal/session"
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run the dashboard gateway HTTP server.",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationStructuredLog: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := scs.New()
	sessions.Lifetime = cfg.SessionLifetime
	sessions.Cookie.Name = "mp_session"
	sessions.Cookie.Secure = cfg.AuthCookieSecure
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.SameSite = http.SameSiteLaxMode

	// Without a database the credential only survives page reloads, not
	// gateway restarts.
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		sessions.Store = pgxstore.New(pool)
	}

	store := credential.NewSessionStore(sessions)
	api, err := backend.NewClient(cfg.BackendBaseURL, store, backend.ClientOptions{
		HTTPClient: &http.Client{Timeout: cfg.BackendTimeout},
	})
	if err != nil {
		return err
	}

	reg := session.NewRegistry(sessions, store, api, slog.Default())
	go reg.RunSweeper(ctx, cfg.ManagerSweep, cfg.ManagerMaxIdle)

	srv, err := httpapp.NewEchoServer(cfg, sessions, reg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	_, metricsErr := metrics.StartServer(ctx, cfg.MetricsAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", cfg.HTTPAddr, "backend", cfg.BackendBaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		var metricsFailed error
		select {
		case <-gctx.Done():
		case err := <-orNever(metricsErr):
			metricsFailed = err
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return metricsFailed
	})

	return g.Wait()
}

// orNever turns a possibly-nil error channel into one that is safe to
// select on.
func orNever(ch <-chan error) <-chan error {
	if ch != nil {
		return ch
	}
	return make(chan error)
}
