package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/realtorbot/internal/metrics"
	chiTransport "github.com/kailas-cloud/realtorbot/internal/transport/chi"
	"github.com/kailas-cloud/realtorbot/internal/version"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadBootstrap(flags)
			if err != nil {
				return err
			}
			if port > 0 {
				rt.cfg.HTTP.Port = port
			}
			return runServe(cmd.Context(), rt)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Override http.port")
	return cmd
}

func runServe(ctx context.Context, rt *bootstrap) error {
	logger := rt.logger
	logger.Info("Starting realtorbot API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", rt.env),
		zap.Int("http_port", rt.cfg.HTTP.Port),
	)

	metrics.RegisterHTTPMetrics()

	a, err := buildApp(ctx, rt)
	if err != nil {
		return err
	}
	defer a.Close()

	// Pass nil interface (not typed nil pointer) if metering is off.
	var usage chiTransport.UsageReporter
	if a.meter != nil {
		usage = a.meter
	}
	server := chiTransport.NewServer(a.chat, a.tenants, usage, a.health, logger)

	addr := fmt.Sprintf(":%d", rt.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(server, rt.cfg.Auth.APIKeys, logger),
		ReadTimeout:       time.Duration(rt.cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(rt.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(rt.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-quit:
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(rt.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
