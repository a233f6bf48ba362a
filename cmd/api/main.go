// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dataforaction/questionbank/internal/api"
	"github.com/dataforaction/questionbank/internal/auth"
	"github.com/dataforaction/questionbank/internal/billing"
	"github.com/dataforaction/questionbank/internal/config"
	"github.com/dataforaction/questionbank/internal/db"
	"github.com/dataforaction/questionbank/internal/dedup"
	"github.com/dataforaction/questionbank/internal/embedding"
	"github.com/dataforaction/questionbank/internal/health"
	"github.com/dataforaction/questionbank/internal/middleware"
	"github.com/dataforaction/questionbank/internal/question"
	"github.com/dataforaction/questionbank/internal/ranking"
	"github.com/dataforaction/questionbank/internal/realtime"
	"github.com/dataforaction/questionbank/internal/tracing"
)

const serviceName = "questionbank-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Question Bank API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summaryAttrs := make([]any, 0, 32)
	for key, val := range cfg.LogSummary() {
		summaryAttrs = append(summaryAttrs, slog.String(key, val))
	}
	logger.Info("configuration loaded", summaryAttrs...)

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRatio,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Storage: Postgres when configured, in-memory otherwise
	var (
		questionRepo question.Repository
		rankStore    ranking.Store
		subsRepo     billing.Repository
		webhookRepo  billing.WebhookRepository
		index        dedup.Index
		indexWriter  api.IndexWriter
		dbChecker    api.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := db.Connect(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := db.CheckPgvector(context.Background(), conn); err != nil {
			logger.Error("database is missing pgvector", "error", err)
			os.Exit(1)
		}

		questionRepo = question.NewPostgresRepository(conn, logger)
		rankStore = ranking.NewPostgresStore(conn, logger)
		subsRepo = billing.NewPostgresRepository(conn, logger)
		webhookRepo = billing.NewPostgresWebhookRepository(conn)
		index = dedup.NewPostgresIndex(conn, dedup.FnMatchQuestions, logger)
		dbChecker = health.NewDBChecker(conn)
		logger.Info("using postgres storage")
	} else {
		memIndex := dedup.NewInMemoryIndex()
		questionRepo = question.NewInMemoryRepository()
		rankStore = ranking.NewInMemoryStore()
		subsRepo = billing.NewInMemoryRepository()
		webhookRepo = billing.NewInMemoryWebhookRepository()
		index = memIndex
		indexWriter = memIndex
		logger.Warn("DATABASE_URL not set, using in-memory storage")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	var (
		httpMetrics *middleware.Metrics
		rankMetrics *ranking.Metrics
	)
	if cfg.MetricsEnabled {
		httpMetrics = middleware.NewMetrics()
		if err := httpMetrics.Register(registry); err != nil {
			logger.Error("failed to register http metrics", "error", err)
			os.Exit(1)
		}
		rankMetrics = ranking.NewMetrics()
		if err := rankMetrics.Register(registry); err != nil {
			logger.Error("failed to register ranking metrics", "error", err)
			os.Exit(1)
		}
	}

	// Rate limiting: Redis when configured, fixed windows in process otherwise
	var (
		rateLimitStore middleware.RateLimitStore
		redisChecker   api.HealthChecker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		rateLimitStore = middleware.NewRedisRateLimitStore(client, logger, httpMetrics)
		redisChecker = health.NewRedisChecker(client)
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Cleanup()
			}
		}()
		rateLimitStore = memStore
		logger.Warn("REDIS_URL not set, rate limiting in process")
	}

	// Auth
	var jwtService *auth.JWTService
	if cfg.JWTPreviousSecret != "" {
		jwtService = auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	} else {
		jwtService = auth.NewJWTService(cfg.JWTSecret)
	}

	// Domain services
	provider := embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
	matcher := dedup.NewMatcher(index, questionRepo)
	broadcaster := realtime.NewBroadcaster(logger)
	source := question.NewSource(questionRepo, rankStore)
	gate := billing.NewGate(subsRepo, logger)

	sessionCfg := ranking.Config{
		KFactor:    cfg.EloKFactor,
		SampleSize: cfg.SessionSampleSize,
		PoolLimit:  cfg.SessionPoolLimit,
	}
	if err := sessionCfg.Validate(); err != nil {
		logger.Error("invalid session config", "error", err)
		os.Exit(1)
	}

	// Handlers
	questionHandlers := api.NewQuestionHandlers(questionRepo, provider, matcher, indexWriter, rankStore)
	rankingHandlers := api.NewRankingHandlers(source, rankStore, sessionCfg, gate, rankMetrics)
	kanbanHandlers := api.NewKanbanHandlers(rankStore, broadcaster, rankMetrics)
	boardWSHandlers := api.NewBoardWebSocketHandlers(rankStore, broadcaster)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      dbChecker,
		RedisChecker:   redisChecker,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	authenticate := middleware.Authenticate(jwtService)
	submitLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultSubmitLimit(), middleware.UserKeyFunc())
	similarityLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultSimilarityLimit(), middleware.UserKeyFunc())

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandlers.Health)
	mux.HandleFunc("GET /health/ready", healthHandlers.Ready)
	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	mux.Handle("POST /questions",
		authenticate(submitLimiter(http.HandlerFunc(questionHandlers.SubmitQuestion))))
	mux.Handle("GET /questions/{id}/similar",
		authenticate(similarityLimiter(http.HandlerFunc(questionHandlers.SimilarQuestions))))

	mux.Handle("POST /rankings/session",
		authenticate(http.HandlerFunc(rankingHandlers.StartSession)))
	mux.Handle("POST /rankings/session/submit",
		authenticate(http.HandlerFunc(rankingHandlers.SubmitSession)))
	mux.Handle("PUT /rankings/manual",
		authenticate(http.HandlerFunc(rankingHandlers.UpsertManualRanks)))

	mux.Handle("GET /kanban", authenticate(http.HandlerFunc(kanbanHandlers.Board)))
	mux.Handle("POST /kanban/move", authenticate(http.HandlerFunc(kanbanHandlers.MoveCard)))
	mux.Handle("GET /ws/boards/{scope}", authenticate(http.HandlerFunc(boardWSHandlers.SubscribeToBoard)))

	// Billing endpoints only come up with a full Stripe configuration
	if cfg.StripeEnabled() {
		stripeClient := billing.NewStripeClient(cfg.StripeAPIKey)
		billingHandlers := api.NewBillingHandlers(stripeClient, api.CheckoutConfig{
			PriceID:    cfg.StripePriceID,
			SuccessURL: cfg.StripeSuccessURL,
			CancelURL:  cfg.StripeCancelURL,
		})
		webhookHandlers := api.NewWebhookHandlers(cfg.StripeWebhookSecret, subsRepo, webhookRepo)

		mux.Handle("POST /billing/checkout", authenticate(http.HandlerFunc(billingHandlers.CreateCheckout)))
		mux.HandleFunc("POST /internal/stripe", webhookHandlers.HandleStripeWebhook)
	} else {
		logger.Warn("stripe not configured, billing endpoints disabled")
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"questionbank-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> Tracing -> Logging -> Metrics -> CORS -> global rate limit
	var handler http.Handler = mux
	handler = middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc())(handler)
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins})(handler)
	if cfg.MetricsEnabled {
		handler = middleware.HTTPMetrics(httpMetrics)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down tracer provider", "error", err)
	}

	logger.Info("server stopped")
}
