package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avaolo/agknow/internal/config"
	"github.com/avaolo/agknow/internal/db"
	dbRedis "github.com/avaolo/agknow/internal/db/redis"
	"github.com/avaolo/agknow/internal/domain"
	domhier "github.com/avaolo/agknow/internal/domain/hierarchy"
	logpkg "github.com/avaolo/agknow/internal/logger"
	"github.com/avaolo/agknow/internal/metrics"
	budgetrepo "github.com/avaolo/agknow/internal/repository/budget"
	"github.com/avaolo/agknow/internal/repository/embcache"
	knowledgerepo "github.com/avaolo/agknow/internal/repository/knowledge"
	chiTransport "github.com/avaolo/agknow/internal/transport/chi"
	mcpTransport "github.com/avaolo/agknow/internal/transport/mcp"
	openaiEmb "github.com/avaolo/agknow/internal/transport/openai"
	documentuc "github.com/avaolo/agknow/internal/usecase/document"
	embeddinguc "github.com/avaolo/agknow/internal/usecase/embedding"
	healthuc "github.com/avaolo/agknow/internal/usecase/health"
	hierarchyuc "github.com/avaolo/agknow/internal/usecase/hierarchy"
	pesticideuc "github.com/avaolo/agknow/internal/usecase/pesticide"
	protectionuc "github.com/avaolo/agknow/internal/usecase/protection"
	searchuc "github.com/avaolo/agknow/internal/usecase/search"
	usageuc "github.com/avaolo/agknow/internal/usecase/usage"
	"github.com/avaolo/agknow/internal/version"
)

var serveMCP bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the knowledge search API server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also serve MCP tools on stdio")
}

func runServe() error {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting agknow API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Connected to database")

	// Register embedding metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()

	budget := buildBudget(ctx, cfg, store, logger)

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	embedder := buildEmbedder(cfg.Embedding, store, budgetChecker, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Repository + index bootstrap
	knowRepo := knowledgerepo.New(store)
	if err := knowRepo.EnsureIndex(ctx, knowledgerepo.IndexParams{
		Dimensions:  cfg.Embedding.Dimensions,
		HNSWM:       cfg.Knowledge.HNSWM,
		EFConstruct: cfg.Knowledge.HNSWEFConstruct,
	}); err != nil {
		return fmt.Errorf("failed to ensure search index: %w", err)
	}

	// Use case services
	searchSvc := searchuc.New(knowRepo, embedder)
	docSvc := documentuc.New(knowRepo, embedder, documentuc.Config{
		DefaultLanguage: cfg.Knowledge.DefaultLanguage,
		Dimensions:      cfg.Embedding.Dimensions,
		MaxBatchSize:    cfg.Knowledge.MaxBatchSize,
		Concurrency:     cfg.Ingest.Concurrency,
	})
	pesticideSvc := pesticideuc.New(searchSvc)
	protectionSvc := protectionuc.New(searchSvc)

	hierSvc, err := buildHierarchy(searchSvc, logger)
	if err != nil {
		return err
	}

	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader, cfg.Embedding.Budget.CostPerMillionTokens)

	healthSvc := healthuc.New(store, store, knowledgerepo.IndexName, newEmbeddingHealthChecker(embedder))

	server := chiTransport.NewServer(
		searchSvc, pesticideSvc, protectionSvc, hierSvc, docSvc, usageSvc, healthSvc,
		chiTransport.PageConfig{
			DefaultSize: cfg.Knowledge.DefaultPageSize,
			MaxSize:     cfg.Knowledge.MaxPageSize,
		},
		logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	mcpCtx, mcpCancel := context.WithCancel(ctx)
	defer mcpCancel()
	if serveMCP {
		mcpSrv := mcpTransport.NewServer(mcpTransport.Deps{
			Search:     searchSvc,
			Pesticide:  pesticideSvc,
			Protection: protectionSvc,
			Documents:  docSvc,
			Hierarchy:  hierSvc,
		})
		stdioSrv := mcpserver.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(mcpCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", zap.Error(err))
			}
		}()
		logger.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	mcpCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// openStore connects to Redis and waits for readiness.
func openStore(ctx context.Context, cfg config.Config) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create database store: %w", err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return store, nil
}

// buildBudget creates the shared BudgetTracker, or nil when no limit is set.
func buildBudget(ctx context.Context, cfg config.Config, store db.Store, logger *zap.Logger) *embeddinguc.BudgetTracker {
	budgetCfg := cfg.Embedding.Budget
	if budgetCfg.DailyTokenLimit <= 0 && budgetCfg.MonthlyTokenLimit <= 0 {
		return nil
	}

	action := embeddinguc.BudgetActionWarn
	if budgetCfg.Action == "reject" {
		action = embeddinguc.BudgetActionReject
	}
	budget := embeddinguc.NewBudgetTracker(
		cfg.Embedding.Provider, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
	)
	// Connect persistence store, loading current counters from DB.
	budget.WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
	return budget
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented
func buildEmbedder(
	embCfg config.EmbeddingConfig,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     embCfg.APIKey,
		BaseURL:    embCfg.BaseURL,
		Model:      embCfg.Model,
		Dimensions: embCfg.Dimensions,
		Provider:   embCfg.Provider,
		Logger:     logger,
	})

	// Cached
	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, embCfg.Model, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (budget + metrics)
	return embeddinguc.NewInstrumentedEmbedder(
		embedder, embCfg.Provider, embCfg.Model, budget, logger,
	)
}

// buildHierarchy registers the tiered sources with their privacy capabilities.
// The knowledge base serves country and global tiers only; farmer data must
// come from farmer-capable sources.
func buildHierarchy(searchSvc *searchuc.Service, logger *zap.Logger) (*hierarchyuc.Service, error) {
	hierSvc := hierarchyuc.New(logger)

	farmerSource, err := domhier.NewSource(hierarchyuc.FarmerDatabaseSource,
		domhier.Capabilities{Farmer: true, Country: true})
	if err != nil {
		return nil, fmt.Errorf("failed to register farmer source: %w", err)
	}
	hierSvc.Register(farmerSource, hierarchyuc.NewFarmerProvider(logger))

	kbSource, err := domhier.NewSource(hierarchyuc.KnowledgeBaseSource,
		domhier.Capabilities{Country: true, Global: true})
	if err != nil {
		return nil, fmt.Errorf("failed to register knowledge source: %w", err)
	}
	hierSvc.Register(kbSource, hierarchyuc.NewKnowledgeProvider(searchSvc))

	extSource, err := domhier.NewSource(hierarchyuc.ExternalSearchSource,
		domhier.Capabilities{Global: true})
	if err != nil {
		return nil, fmt.Errorf("failed to register external source: %w", err)
	}
	hierSvc.Register(extSource, hierarchyuc.NewExternalProvider(logger))

	return hierSvc, nil
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
