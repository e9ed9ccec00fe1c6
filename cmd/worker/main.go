package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/benvon/smart-health/internal/config"
	"github.com/benvon/smart-health/internal/handlers"
	"github.com/benvon/smart-health/internal/logger"
	"github.com/benvon/smart-health/internal/metrics"
	"github.com/benvon/smart-health/internal/queue"
	"github.com/benvon/smart-health/internal/workers"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Options{Service: "smart-health-worker", Debug: debugMode})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger) // Ignore sync errors on stderr
	}()

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("RABBITMQ_URL is required for the analytics worker")
	}

	consumer, err := queue.NewRabbitMQConsumer(cfg.RabbitMQURL, cfg.AnalyticsQueue)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			zapLogger.Warn("Failed to close RabbitMQ connection", zap.Error(err))
		}
	}()

	zapLogger.Info("Connected to RabbitMQ",
		zap.String("queue", cfg.AnalyticsQueue),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	aggregator := workers.NewAggregator(metrics.NewConsumer(prometheus.DefaultRegisterer), zapLogger.Named("aggregator"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, errs, err := consumer.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("Failed to start consuming events", zap.Error(err))
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		aggregator.Run(ctx, deliveries)
	}()

	go func() {
		for err := range errs {
			zapLogger.Error("Queue error", zap.Error(err))
		}
	}()

	r := mux.NewRouter()
	r.HandleFunc("/healthz", handlers.NewHealthChecker(nil, map[string]handlers.CheckFunc{
		"rabbitmq": consumer.HealthCheck,
	}).HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/summary", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(aggregator.Summary()) // Headers already sent
	}).Methods("GET")

	srv := &http.Server{
		Addr:              ":" + cfg.WorkerPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Error("Worker HTTP server failed", zap.Error(err))
		}
	}()

	zapLogger.Info("Worker started, consuming interaction events", zap.String("port", cfg.WorkerPort))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zapLogger.Info("Shutdown signal received, stopping worker...")
	case <-stopped:
		zapLogger.Warn("Event stream ended, stopping worker...")
	}

	cancel()
	<-stopped

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Warn("Worker HTTP server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Worker stopped", zap.Any("summary", aggregator.Summary()))
}
