package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/envention/union/internal/bff/http"
	"github.com/envention/union/internal/bff/metrics"
	"github.com/envention/union/internal/bff/service"
	"github.com/envention/union/internal/session"
	"github.com/envention/union/pkg/keycloak"
	"github.com/envention/union/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application wires the BFF together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	idp     *keycloak.Client
	auth    *service.AuthService
	metrics *metrics.Metrics

	server *http.Server
	router *httpapi.Router
}

// New validates cfg and builds every dependency. It talks to nobody yet.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "union-bff",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	if err := app.initServices(); err != nil {
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		return nil, err
	}

	return app, nil
}

// Handler is the root HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Keys are loaded lazily too; this just makes the first login faster.
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.HTTPClientTimeout)
	if err := app.idp.PrefetchKeys(ctx); err != nil {
		app.logger.Warn("could not prefetch realm keys", "error", err)
	}
	cancel()

	app.logger.Info("union bff starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"realm", app.cfg.KeycloakRealm,
		"proxy", app.cfg.APIUpstreamURL != "",
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down union bff...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
		return err
	}

	app.logger.Info("union bff stopped")
	return nil
}

func (app *Application) initServices() error {
	app.idp = keycloak.NewClient(keycloak.Config{
		BaseURL:      app.cfg.KeycloakURL,
		Realm:        app.cfg.KeycloakRealm,
		ClientID:     app.cfg.KeycloakClientID,
		ClientSecret: app.cfg.KeycloakClientSecret,
		Audiences:    app.cfg.KeycloakAudiences,
		Timeout:      app.cfg.HTTPClientTimeout,
	})

	codec, err := session.NewCodec([]byte(app.cfg.SessionSecret), app.cfg.SessionIssuer, app.cfg.SessionAudience)
	if err != nil {
		return fmt.Errorf("session codec: %w", err)
	}

	app.auth = &service.AuthService{
		IdP:   app.idp,
		Codec: codec,
		Cookies: session.NewCookieTransport(session.CookieConfig{
			Name:   app.cfg.SessionCookieName,
			MaxAge: app.cfg.SessionMaxAge,
			Secure: app.cfg.Production(),
		}),
		RefreshWindow: app.cfg.SessionRefreshWindow,
		Observer:      app.metrics,
	}

	return nil
}

func (app *Application) initHTTP() error {
	router := httpapi.NewRouter(app.auth, app.idp, app.metrics, BuildVersion, app.logger)

	if app.cfg.APIUpstreamURL != "" {
		upstream, err := url.Parse(app.cfg.APIUpstreamURL)
		if err != nil {
			return fmt.Errorf("API_UPSTREAM_URL: %w", err)
		}
		router.Upstream = upstream
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return nil
}
