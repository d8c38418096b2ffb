package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	httpserver "github.com/imperium-ai/imperium/internal/interface/http"
	"github.com/imperium-ai/imperium/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /healthz and /metrics until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	deps := httpserver.Dependencies{
		Logger:        current.log,
		HealthChecker: current.health,
	}
	if current.metrics != nil {
		deps.Metrics = current.metrics.Handler()
	}

	srv := httpserver.NewServer(httpserver.Config{
		Addr:          cfg.HTTP.Addr,
		ReadTimeout:   cfg.HTTP.ReadTimeout,
		WriteTimeout:  cfg.HTTP.WriteTimeout,
		IdleTimeout:   httpserver.DefaultConfig().IdleTimeout,
		EnableMetrics: cfg.Observability.MetricsEnabled,
	}, deps)

	errCh := srv.StartAsync()
	current.log.Info("imperium serving",
		logger.String("addr", cfg.HTTP.Addr),
		logger.String("storage", cfg.Storage.Backend),
		logger.Bool("redis", cfg.Redis.Enabled),
	)

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
