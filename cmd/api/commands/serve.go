package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dental-inspections/internal/adapters/auth/iam"
	"dental-inspections/internal/adapters/capabilities/rolecaps"
	"dental-inspections/internal/platform/config"
	"dental-inspections/internal/platform/logger"
	"dental-inspections/internal/ports/auth"
	"dental-inspections/internal/router"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	verifier, err := newVerifier(cfg, log)
	if err != nil {
		return err
	}
	capsClient, err := rolecaps.NewClient(rolecaps.Config{
		BaseURL: cfg.Capabilities.BaseURL,
		APIKey:  cfg.Capabilities.APIKey,
	})
	if err != nil {
		return err
	}

	app, err := router.New(router.Options{
		AuthVerifier: verifier,
		Capabilities: rolecaps.NewResolver(rolecaps.Options{
			Client:   capsClient,
			AllowAll: cfg.Capabilities.AllowAll,
			CacheTTL: cfg.Capabilities.CacheTTL,
		}),
		Config: cfg,
		Logger: log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", map[string]any{"addr": cfg.Server.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		// después de cerrar conexiones: lo que quedó en el autosave se escribe ahora
		if cerr := app.Close(shutdownCtx); err == nil {
			err = cerr
		}
		return err
	})

	return g.Wait()
}

// newVerifier: sin IAM configurado queda el modo dev (headers X-Debug-*).
func newVerifier(cfg *config.Config, log logger.Logger) (auth.AuthVerifier, error) {
	c, err := iam.NewClient(iam.Config{
		BaseURL:      cfg.Auth.IAMBaseURL,
		APIKey:       cfg.Auth.APIKey,
		APIKeyHeader: cfg.Auth.APIKeyHeader,
		Timeout:      cfg.Auth.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if !c.IsConfigured() {
		log.Warn("IAM not configured, accepting X-Debug-User-ID headers", nil)
		return nil, nil
	}
	return iam.NewVerifier(c), nil
}
