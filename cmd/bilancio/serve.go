package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"bilancio/internal/api"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	apphttp "bilancio/internal/http"
	"bilancio/internal/log"
	"bilancio/internal/request"
	"bilancio/internal/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the UI server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	logger := cli.SetupLogger(config.Load().LogLevel)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rc, err := request.New(cfg.BackendURL,
		request.WithTimeout(cfg.RequestTimeout),
		request.WithLogger(logger.WithComponent(log.ComponentRequest)),
		request.WithMetrics(request.NewMetrics(registry)),
	)
	if err != nil {
		return err
	}
	apiClient := api.New(rc)

	sessions := session.NewStore(cfg.SessionMax, cfg.SessionTTL)
	sessionLogger := logger.WithComponent(log.ComponentSession)
	sessions.StartCleanup(5*time.Minute, func(removed int) {
		sessionLogger.Debug("Expired sessions removed", "count", removed)
	})

	srv := apphttp.NewServer(apphttp.Options{
		Addr: ":" + cfg.Port,
		Backend: func(cookies []*http.Cookie) apphttp.Backend {
			return apiClient.WithCookies(cookies)
		},
		Sessions:       sessions,
		Logger:         logger.WithComponent(log.ComponentHTTP),
		RateLimitRPM:   cfg.RateLimitRPM,
		CookieSecure:   cfg.CookieSecure,
		TrustedProxies: cfg.TrustedProxies,
		Gatherer:       registry,
	})

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		sessions.Stop()
	})

	logger.Info("Starting bilancio server",
		"port", cfg.Port,
		"backend_url", cfg.BackendURL)
	if err := cli.RunServer(ctx, done, srv.ListenAndServe); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		sessions.Stop()
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
