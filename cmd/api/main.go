package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lopatinay/dokka/internal/api"
	"github.com/lopatinay/dokka/internal/config"
	"github.com/lopatinay/dokka/internal/logger"
	"github.com/lopatinay/dokka/internal/metrics"
	"github.com/lopatinay/dokka/internal/queue"
	"github.com/lopatinay/dokka/internal/repository"
	"github.com/lopatinay/dokka/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// main is the entry point of the API server: it serves the upload endpoint,
// the result endpoint and the synchronous compute endpoint.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logg := logger.Setup(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Initialize the database connection.
	dtb, err := repository.NewDatabase(
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
	)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dtb.Close()

	// Create a new repository instance using the database connection.
	repo := repository.NewRepository(dtb, logg)

	// Connect the queue producer; uploads are handed to the worker pool
	// through it.
	enqueuer := queue.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logg)
	defer enqueuer.Close()

	// The API process never geocodes, so the provider stays nil here; only
	// the worker enriches results with addresses.
	svc := service.NewDistanceService(logg, repo, enqueuer, nil, appMetrics)

	router := api.NewRouter(logg, svc, dtb, reg)

	readTimeout := 5
	writeTimeout := 30
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	go func() {
		logg.InfoContext(ctx, "Starting API server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.ErrorContext(ctx, "API server failed", "error", err)
			stop()
		}
	}()

	// Log that the application has started.
	logg.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logg.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	shutdownTimeout := 10
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.ErrorContext(shutdownCtx, "Failed to shut down API server gracefully", "error", err)
	}

	// Log graceful shutdown completion.
	logg.InfoContext(ctx, "Application stopped gracefully.")
}
