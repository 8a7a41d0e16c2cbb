package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"survey-insights/internal/bootstrap"
	"survey-insights/internal/config"
	"survey-insights/internal/shared/metrics"
	"survey-insights/internal/shared/telemetry"
)

const defaultShutdownTimeoutSec = 30

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	if err := app.Orchestrator.Start(ctx); err != nil {
		log.Fatalf("start orchestrator: %v", err)
	}
	if err := app.Janitor.Start(cfg.SweepSchedule); err != nil {
		log.Fatalf("start janitor: %v", err)
	}

	metricsSrv := startMetricsServer()

	telemetry.Info("worker.started", map[string]any{
		"env":          cfg.Env,
		"workers":      cfg.WorkerCount,
		"providers":    app.Providers.Names(),
		"vector_store": cfg.VectorStore,
	})

	<-ctx.Done()
	stop()

	shutdownTimeout := time.Duration(envInt("SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second
	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	app.Janitor.Stop()
	if err := app.Orchestrator.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown timeout reached; in-flight jobs were cancelled")
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

// startMetricsServer serves /metrics and /healthz when METRICS_ADDR is set.
func startMetricsServer() *http.Server {
	addr := strings.TrimSpace(os.Getenv("METRICS_ADDR"))
	if addr == "" {
		return nil
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newMetricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}

func newMetricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
