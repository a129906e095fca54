package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mzivlin/timecraft/libs/auth"
	"github.com/mzivlin/timecraft/libs/config"
	"github.com/mzivlin/timecraft/libs/db"
	"github.com/mzivlin/timecraft/libs/httpx"
	"github.com/mzivlin/timecraft/libs/kafkax"
	otelx "github.com/mzivlin/timecraft/libs/otel"
	"github.com/mzivlin/timecraft/libs/runtime"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/handlers"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/outbox"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduler-api")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	// X-Debug-User bypasses token auth; never enable outside local dev.
	allowDebugHeader := config.Bool("AUTH_ALLOW_DEBUG_HEADER", false)
	if allowDebugHeader {
		logger.Warn("debug identity header enabled")
	}

	userRepo := storage.NewUserRepository(pool)
	eventRepo := storage.NewEventRepository(pool)
	taskRepo := storage.NewTaskRepository(pool)
	availRepo := storage.NewAvailabilityRepository(pool)
	outboxRepo := outbox.NewRepository()

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	authHandler := handlers.NewAuthHandler(userRepo, logger, jwtSecret)
	eventHandler := handlers.NewEventHandler(eventRepo, outboxRepo, logger)
	taskHandler := handlers.NewTaskHandler(taskRepo, outboxRepo, logger)
	availHandler := handlers.NewAvailabilityHandler(availRepo, logger)
	suggestHandler := handlers.NewSuggestHandler(availRepo, eventRepo, logger)
	identity := handlers.NewIdentity(jwtSecret, allowDebugHeader)
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		identity = identity.WithJWKS(auth.NewJWKSClient(jwksURL, config.Seconds("JWKS_TTL_SECONDS", 5*time.Minute)))
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if kafkaBrokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	mux.HandleFunc("/api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("/api/v1/auth/login", authHandler.Login)
	mux.Handle("/api/v1/events", identity.Require(http.HandlerFunc(eventHandler.Collection)))
	mux.Handle("/api/v1/events/{id}", identity.Require(http.HandlerFunc(eventHandler.Item)))
	mux.Handle("/api/v1/tasks", identity.Require(http.HandlerFunc(taskHandler.Collection)))
	mux.Handle("/api/v1/tasks/{id}", identity.Require(http.HandlerFunc(taskHandler.Item)))
	mux.Handle("/api/v1/availability", identity.Require(http.HandlerFunc(availHandler.Handle)))
	mux.Handle("/api/v1/suggest", identity.Require(http.HandlerFunc(suggestHandler.Suggest)))
	mux.Handle("/api/v1/check", identity.Require(http.HandlerFunc(suggestHandler.Check)))

	rateLimit := rateLimitMiddleware(logger)
	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		rateLimit,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// rateLimitMiddleware prefers the shared Redis window when REDIS_ADDR is
// configured (multi-replica deployments) and falls back to the in-memory
// limiter otherwise.
func rateLimitMiddleware(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_PER_WINDOW", 120)
	window := config.Seconds("RATE_LIMIT_WINDOW_SECONDS", time.Minute)

	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		return httpx.NewRedisRateLimiter(rdb, limit, window, "scheduler-api").Middleware(logger, true)
	}
	return httpx.NewRateLimiter(limit, window).Middleware()
}
