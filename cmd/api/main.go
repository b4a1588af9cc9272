// Command api serves the run orchestrator's admission HTTP surface: submit
// and inspect runs, stream their events, and expose Prometheus metrics.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/admission"
	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/internal/httpapi"
	"github.com/atlas-desktop/trading-backend/internal/queue"
	"github.com/atlas-desktop/trading-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting admission server",
		zap.String("bind_addr", cfg.BindAddr),
		zap.Strings("cors_origins", cfg.CORSOrigins),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	q, err := queue.Open(cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to open queue", zap.Error(err))
	}
	defer q.Close()

	admitter := admission.New(st, q)
	hub := httpapi.NewHub(st, logger)
	go hub.Run(ctx)

	server := httpapi.NewServer(logger, admitter, st, hub, cfg.CORSOrigins)

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx, cfg.BindAddr) }()

	select {
	case <-ctx.Done():
		if err := <-errCh; err != nil {
			logger.Error("admission server shutdown error", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("admission server exited with error", zap.Error(err))
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Info("admission server stopped")
}
