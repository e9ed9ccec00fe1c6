package main

import (
	"context"
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
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/benvon/smart-health/internal/bootstrap"
	"github.com/benvon/smart-health/internal/config"
	"github.com/benvon/smart-health/internal/handlers"
	"github.com/benvon/smart-health/internal/logger"
	"github.com/benvon/smart-health/internal/metrics"
	"github.com/benvon/smart-health/internal/middleware"
	"github.com/benvon/smart-health/internal/queue"
	"github.com/benvon/smart-health/internal/session"
	"github.com/benvon/smart-health/internal/storage"
	"github.com/benvon/smart-health/internal/telemetry"
)

const (
	rabbitMQMaxRetries   = 5
	rabbitMQInitialDelay = 2 * time.Second
	shutdownTimeout      = 30 * time.Second
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Options{Service: telemetry.ServiceName, Debug: debugMode})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger) // Ignore sync errors on stderr
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("persist_debounce", cfg.PersistDebounce),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	var tracerProvider *sdktrace.TracerProvider
	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(context.Background(), telemetry.Options{
			ServiceName: telemetry.ServiceName,
			Endpoint:    cfg.OTELEndpoint,
			Insecure:    cfg.OTELInsecure,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracerProvider = tp
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(ctx, tracerProvider); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	// One Redis client serves both the redis store and the shared rate limiter
	var redisClient *redis.Client
	if cfg.StoreBackend == storage.BackendRedis || cfg.RateLimitRedis {
		redisClient, err = storage.NewRedisClient(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		zapLogger.Info("connected_to_redis")
	}

	store, err := bootstrap.OpenStore(context.Background(), cfg, redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_open_store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	// Closing a redis store also closes the shared client
	defer func() {
		if err := store.Close(); err != nil {
			zapLogger.Warn("failed_to_close_store", zap.Error(err))
		}
		if redisClient != nil && cfg.StoreBackend != storage.BackendRedis {
			_ = redisClient.Close()
		}
	}()

	publisher := connectPublisher(cfg.RabbitMQURL, zapLogger)
	if publisher != nil {
		defer func() {
			if err := publisher.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	}

	opts := []session.Option{
		session.WithLogger(zapLogger.Named("session")),
		session.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		session.WithDebounce(cfg.PersistDebounce),
		session.WithKey(cfg.StoreKey),
	}
	if publisher != nil {
		opts = append(opts, session.WithPublisher(publisher))
	}
	manager := session.NewManager(store, opts...)

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = manager.Init(initCtx)
	initCancel()
	if err != nil {
		zapLogger.Fatal("failed_to_initialize_session", zap.Error(err))
	}

	rateLimitMW, err := middleware.RateLimit(cfg.RateLimit, rateLimitClient(cfg, redisClient))
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	checks := map[string]handlers.CheckFunc{}
	if pinger, ok := store.(bootstrap.Pinger); ok {
		checks["store"] = pinger.Ping
	}
	if publisher != nil {
		checks["rabbitmq"] = publisher.HealthCheck
	}
	healthChecker := handlers.NewHealthChecker(manager, checks)
	interactionHandler := handlers.NewInteractionHandler(manager, zapLogger.Named("http"))

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, first registered is outermost
	if tracerProvider != nil {
		r.Use(otelmux.Middleware(telemetry.ServiceName))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL, zapLogger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	// Public routes, not rate limited
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	handlers.NewOpenAPIHandler(cfg.OpenAPIPath, cfg.BaseURL).RegisterRoutes(r)

	interactionsRouter := r.PathPrefix("/api/v1/interactions").Subrouter()
	interactionsRouter.Use(rateLimitMW)
	interactionHandler.RegisterRoutes(interactionsRouter)

	// Preflight requests are answered by the CORS middleware before reaching this
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	// Listener is drained, so this is the final write
	if err := manager.Teardown(ctx); err != nil {
		zapLogger.Error("failed_to_persist_session_on_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectPublisher dials RabbitMQ with exponential backoff. Events are
// optional, so a missing URL or exhausted retries leave the publisher nil.
func connectPublisher(url string, zapLogger *zap.Logger) queue.Publisher {
	if url == "" {
		zapLogger.Info("rabbitmq_not_configured_events_disabled")
		return nil
	}

	for attempt := 0; attempt < rabbitMQMaxRetries; attempt++ {
		publisher, err := queue.NewRabbitMQPublisher(url)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return publisher
		}

		delay := min(rabbitMQInitialDelay*time.Duration(1<<uint(attempt)), 30*time.Second)
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", rabbitMQMaxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}

	zapLogger.Warn("rabbitmq_unavailable_events_disabled", zap.Int("max_retries", rabbitMQMaxRetries))
	return nil
}

func rateLimitClient(cfg *config.Config, client *redis.Client) *redis.Client {
	if cfg.RateLimitRedis {
		return client
	}
	return nil
}
