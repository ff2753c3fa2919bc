package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/audit"
	"github.com/daramad/daramad-engine/pkg/config"
	"github.com/daramad/daramad-engine/pkg/database"
	"github.com/daramad/daramad-engine/pkg/handlers"
	"github.com/daramad/daramad-engine/pkg/lexicon"
	"github.com/daramad/daramad-engine/pkg/llm"
	"github.com/daramad/daramad-engine/pkg/mcp"
	"github.com/daramad/daramad-engine/pkg/mcp/tools"
	"github.com/daramad/daramad-engine/pkg/middleware"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/money"
	"github.com/daramad/daramad-engine/pkg/repositories"
	"github.com/daramad/daramad-engine/pkg/retry"
	"github.com/daramad/daramad-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	shutdownTimeout = 15 * time.Second
	cachePrefix     = "daramad:"
)

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", cfg.Database.User+"@"+cfg.Database.Host+"/"+cfg.Database.Database),
		zap.Bool("redis", cfg.Redis.Enabled()),
		zap.Bool("openai", cfg.LLM.OpenAIConfigured()),
		zap.Bool("anthropic", cfg.LLM.AnthropicConfigured()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("dsn", cfg.Database.RedactedConnectionString()),
			zap.Error(err))
	}
	defer db.Close()

	stdDB := stdlib.OpenDBFromPool(db.Pool)
	if err := database.RunMigrations(stdDB, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	lex, err := loadLexicon(cfg.LexiconPath)
	if err != nil {
		logger.Fatal("Failed to load lexicon", zap.String("path", cfg.LexiconPath), zap.Error(err))
	}

	// Repositories
	jobTitles := repositories.NewJobTitleRepository()
	observationRepo := repositories.NewObservationRepository()
	var cacheStore repositories.CacheStore
	if redisClient != nil {
		cacheStore = repositories.NewRedisCacheStore(redisClient, cachePrefix)
	} else {
		logger.Info("Redis not configured, using in-memory response cache",
			zap.Int("max_entries", cfg.Cache.MemoryMaxEntries))
		cacheStore = repositories.NewMemoryCacheStore(cfg.Cache.MemoryMaxEntries)
	}

	// Services
	moneyOpts := money.Options{
		Profile:            money.ProfileIncome,
		LargeBareThreshold: cfg.Money.LargeBareThreshold,
		SanityCeiling:      cfg.Money.SanityCeiling,
	}
	auditor := audit.NewSecurityAuditor(logger)
	parser := money.NewParser(lex)
	classifier := services.NewIntentClassifier(lex)
	memo := services.NewLookupMemo(cfg.Resolver.MemoSize, cfg.Resolver.MemoTTL)
	resolver := services.NewResolver(jobTitles, lex.Tokenizer(), memo, services.ResolverOptions{
		AcceptThreshold: cfg.Resolver.AcceptThreshold,
		MaxCandidates:   cfg.Resolver.MaxCandidates,
		DominanceRatio:  cfg.Resolver.DominanceRatio,
	}, logger)
	observationService := services.NewObservationService(jobTitles, observationRepo, parser, moneyOpts, logger)
	responseCache := services.NewResponseCache(cacheStore, lex, &cfg.Cache, cfg.PaidModelConfigured(), logger)
	chatService := services.NewChatService(
		resolver,
		classifier,
		observationService,
		responseCache,
		newPhrasers(cfg, logger),
		auditor,
		logger,
	)

	// HTTP
	scopeProvider := database.NewScopeProvider(db, database.DefaultStatementTimeout)
	scope := database.WithScopeContext(scopeProvider, logger)

	checks := healthChecks(db, redisClient)
	httpChecks := make([]handlers.HealthCheck, len(checks))
	for i, c := range checks {
		httpChecks[i] = handlers.HealthCheck{Name: c.Name, Check: c.Check}
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger, httpChecks...).RegisterRoutes(mux)
	handlers.NewConfigHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewResolveHandler(resolver, classifier, logger).RegisterRoutes(mux, scope)
	handlers.NewMoneyHandler(parser, moneyOpts, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(chatService, responseCache, cfg.Cache.AllowInvalidate, logger).RegisterRoutes(mux, scope)
	handlers.NewObservationHandler(observationService, logger).RegisterRoutes(mux, scope)
	mux.Handle("GET /metrics", promhttp.Handler())

	// MCP
	auditLogger := mcp.NewAuditLogger(auditor, logger)
	mcpServer := mcp.NewServer("daramad-engine", cfg.Version, logger, server.WithHooks(auditLogger.Hooks()))
	tools.RegisterAll(mcpServer.MCP(), &tools.ToolDeps{
		Scope:        scopeProvider,
		Resolver:     resolver,
		Classifier:   classifier,
		Parser:       parser,
		MoneyOptions: moneyOpts,
		Observations: observationService,
		Logger:       logger,
	}, cfg.Version, checks...)
	handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)

	handler := middleware.RequestID()(middleware.RequestLogger(logger)(mux))

	srv := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if cfg.TLSCertPath != "" {
			logger.Info("Starting daramad-engine with TLS", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			logger.Info("Starting daramad-engine", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// connectPostgres retries while the database may still be starting.
func connectPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	dbCfg := &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
		MinConnections: cfg.Database.MaxIdleConns,
	}
	return retry.DoWithResult(ctx, retry.StartupConfig(), func() (*database.DB, error) {
		db, err := database.NewConnection(ctx, dbCfg)
		if err != nil {
			logger.Warn("Database not ready",
				zap.String("dsn", cfg.Database.RedactedConnectionString()),
				zap.Error(err))
		}
		return db, err
	})
}

func connectRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	if !cfg.Redis.Enabled() {
		return nil, nil
	}
	return retry.DoWithResult(ctx, retry.StartupConfig(), func() (*redis.Client, error) {
		client, err := database.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn("Redis not ready", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
		return client, err
	})
}

func loadLexicon(path string) (*lexicon.Lexicon, error) {
	if path == "" {
		return lexicon.Default(), nil
	}
	return lexicon.Load(path)
}

// newPhrasers maps each tier to its phrasing model. The fast and standard
// tiers share the OpenAI-compatible endpoint; premium uses Anthropic.
func newPhrasers(cfg *config.Config, logger *zap.Logger) map[models.ModelTier]llm.Phraser {
	phrasers := make(map[models.ModelTier]llm.Phraser)

	if cfg.LLM.OpenAIConfigured() {
		p, err := llm.NewOpenAIPhraser(&llm.Config{
			Endpoint:  cfg.LLM.OpenAIBaseURL,
			Model:     cfg.LLM.OpenAIModel,
			APIKey:    cfg.LLM.OpenAIAPIKey,
			MaxTokens: cfg.LLM.MaxTokens,
		}, logger)
		if err != nil {
			logger.Error("OpenAI phraser disabled", zap.Error(err))
		} else {
			phrasers[models.TierFast] = p
			phrasers[models.TierStandard] = p
		}
	}

	if cfg.LLM.AnthropicConfigured() {
		p, err := llm.NewAnthropicPhraser(&llm.Config{
			Model:     cfg.LLM.AnthropicModel,
			APIKey:    cfg.LLM.AnthropicAPIKey,
			MaxTokens: cfg.LLM.MaxTokens,
		}, logger)
		if err != nil {
			logger.Error("Anthropic phraser disabled", zap.Error(err))
		} else {
			phrasers[models.TierPremium] = p
		}
	}

	return phrasers
}

func healthChecks(db *database.DB, redisClient *redis.Client) []tools.HealthCheck {
	checks := []tools.HealthCheck{
		{Name: "postgres", Check: db.Ping},
	}
	if redisClient != nil {
		checks = append(checks, tools.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return checks
}
