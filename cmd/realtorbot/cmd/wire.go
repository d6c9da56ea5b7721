package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/realtorbot/internal/config"
	dbValkey "github.com/kailas-cloud/realtorbot/internal/db/valkey"
	"github.com/kailas-cloud/realtorbot/internal/domain"
	logpkg "github.com/kailas-cloud/realtorbot/internal/logger"
	"github.com/kailas-cloud/realtorbot/internal/metrics"
	"github.com/kailas-cloud/realtorbot/internal/repository/embcache"
	listingrepo "github.com/kailas-cloud/realtorbot/internal/repository/listing"
	searchrepo "github.com/kailas-cloud/realtorbot/internal/repository/search"
	tenantrepo "github.com/kailas-cloud/realtorbot/internal/repository/tenant"
	usagerepo "github.com/kailas-cloud/realtorbot/internal/repository/usage"
	"github.com/kailas-cloud/realtorbot/internal/tokenizer"
	openaiTransport "github.com/kailas-cloud/realtorbot/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/realtorbot/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/realtorbot/internal/usecase/health"
	"github.com/kailas-cloud/realtorbot/internal/usecase/rag"
	usageuc "github.com/kailas-cloud/realtorbot/internal/usecase/usage"
)

// bootstrap is the configuration and logger every command starts from.
type bootstrap struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
}

func loadBootstrap(flags *globalFlags) (*bootstrap, error) {
	env := flags.resolvedEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Logging.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return &bootstrap{env: env, cfg: cfg, logger: logger}, nil
}

// openStore connects to Valkey and waits until it answers.
func (rt *bootstrap) openStore(ctx context.Context) (*dbValkey.Store, error) {
	store, err := dbValkey.NewStore(dbValkey.Config{
		Addrs:    rt.cfg.Database.Addrs,
		Username: rt.cfg.Database.Username,
		Password: rt.cfg.Database.Password,
		DB:       rt.cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create valkey store: %w", err)
	}
	timeout := time.Duration(rt.cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("valkey not ready: %w", err)
	}
	return store, nil
}

// app is the fully wired pipeline shared by serve and ask.
type app struct {
	*bootstrap
	store    *dbValkey.Store
	listings *listingrepo.Repo
	tenants  *tenantrepo.Repo
	meter    *usageuc.Meter // nil when metering is disabled
	chat     *rag.Service
	health   *healthuc.Service
}

// buildApp is the composition root.
func buildApp(ctx context.Context, rt *bootstrap) (*app, error) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	store, err := rt.openStore(ctx)
	if err != nil {
		return nil, err
	}
	rt.logger.Info("Connected to valkey", zap.Strings("addrs", rt.cfg.Database.Addrs))

	listings, err := listingrepo.Open(rt.cfg.Listings.Driver, rt.cfg.Listings.DSN)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open listings: %w", err)
	}
	if rt.cfg.Listings.Driver == listingrepo.DriverSQLite {
		if err := listings.EnsureSchema(ctx); err != nil {
			_ = listings.Close()
			store.Close()
			return nil, err //nolint:wrapcheck // already prefixed
		}
	}

	tok, err := tokenizer.New(rt.cfg.Chat.Encoding)
	if err != nil {
		_ = listings.Close()
		store.Close()
		return nil, fmt.Errorf("tokenizer: %w", err)
	}

	a := &app{
		bootstrap: rt,
		store:     store,
		listings:  listings,
		tenants:   tenantrepo.New(store, rt.cfg.Tenants.CacheSize, rt.cfg.Tenants.CacheTTL()),
	}

	embedder := buildEmbedder(rt.cfg.Embedding, store, rt.logger)
	model := openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
		APIKey:   rt.cfg.Chat.APIKey,
		BaseURL:  rt.cfg.Chat.BaseURL,
		Model:    rt.cfg.Chat.Model,
		Provider: rt.cfg.Chat.Provider,
		Timeout:  rt.cfg.Chat.Timeout(),
		Logger:   rt.logger,
	})

	deps := rag.Deps{
		Tenants:   a.tenants,
		Embedder:  embedder,
		Searcher:  searchrepo.New(store),
		Listings:  listings,
		Model:     model,
		Tokenizer: tok,
	}
	// Pass a nil interface, not a typed nil pointer, when metering is off.
	if !rt.cfg.Usage.Disabled {
		counters := usagerepo.New(store,
			time.Duration(rt.cfg.Usage.DailyRetentionHours)*time.Hour,
			time.Duration(rt.cfg.Usage.MonthlyRetentionDays)*24*time.Hour,
		)
		a.meter = usageuc.New(counters, rt.logger)
		deps.Meter = a.meter
	}

	a.chat = rag.New(deps, ragConfig(rt.cfg), rt.logger)
	a.health = healthuc.New(store, listings, newEmbeddingHealthChecker(embedder))

	rt.logger.Info("Pipeline ready",
		zap.String("embedding_model", rt.cfg.Embedding.Model),
		zap.String("chat_model", rt.cfg.Chat.Model),
		zap.String("listings_driver", rt.cfg.Listings.Driver),
		zap.Bool("metering", a.meter != nil),
	)
	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	if err := a.listings.Close(); err != nil {
		a.logger.Warn("close listings", zap.Error(err))
	}
	a.store.Close()
	_ = a.logger.Sync()
}

func ragConfig(cfg config.Config) rag.Config {
	weights := rag.DefaultWeights()
	weights.MaxResults = cfg.RAG.MaxResults

	return rag.Config{
		Weights: weights,
		Budget:  rag.Budget{Total: cfg.RAG.TokenBudget, Reserved: cfg.RAG.ReservedTokens},
		Limits: rag.Limits{
			Listing:     cfg.RAG.ListingTopK,
			Development: cfg.RAG.DevelopmentTopK,
			Broad:       cfg.RAG.BroadTopK,
		},
		Retry: rag.RetryPolicy{
			MaxRetries: uint64(max(cfg.Chat.MaxRetries, 0)), //nolint:gosec // clamped above
			Delay:      cfg.Chat.RetryDelay(),
		},
		MaxResponseTokens: cfg.Chat.MaxTokens,
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func buildEmbedder(cfg config.EmbeddingConfig, store *dbValkey.Store, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewQueryEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Timeout:    cfg.Timeout(),
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, cfg.Model, cfg.CacheTTL(), metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger)

	// Outermost, so the cache key includes the instruction.
	if cfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
	}
	return embedder
}

// embeddingHealthChecker adapts domain.Embedder to health.EmbeddingChecker.
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
