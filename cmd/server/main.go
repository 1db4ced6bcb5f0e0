package main

import (
	"fmt"
	"os"

	"github.com/smarties/backend/config"
	httpDelivery "github.com/smarties/backend/internal/delivery/http"
	"github.com/smarties/backend/internal/domain"
	"github.com/smarties/backend/internal/infrastructure/cache"
	"github.com/smarties/backend/internal/infrastructure/reasoning"
	"github.com/smarties/backend/internal/infrastructure/vector"
	"github.com/smarties/backend/internal/pkg/logger"
	"github.com/smarties/backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting smarties backend",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port)

	// Product store and vector index share one Weaviate instance.
	store, err := vector.NewStore(cfg.Vector.Host, cfg.Vector.Scheme, cfg.Vector.APIKey, log)
	if err != nil {
		log.Fatal("vector store init failed", "error", err)
	}

	reasonerClient, err := reasoning.NewClient(reasoning.Config{
		APIKey:     cfg.Reasoner.APIKey,
		Model:      cfg.Reasoner.Model,
		BaseURL:    cfg.Reasoner.BaseURL,
		RatePerMin: cfg.Reasoner.RatePerMin,
	}, log)
	if err != nil {
		log.Fatal("reasoning client init failed", "error", err)
	}

	// Cache tiers. Session is always on; local and backend come up only when
	// configured, and their absence just narrows the tier chain.
	sessionTier := cache.NewMemoryCache()

	var localTier domain.CacheStore
	if cfg.Cache.LocalPath != "" {
		badgerCache, err := cache.NewBadgerCache(cfg.Cache.LocalPath)
		if err != nil {
			log.Fatal("local cache init failed", "path", cfg.Cache.LocalPath, "error", err)
		}
		defer badgerCache.Close()
		localTier = badgerCache
	}

	var backendTier domain.CacheStore
	if cfg.Cache.BackendAddr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Cache.BackendAddr, cfg.Cache.BackendPassword, cfg.Cache.BackendDB)
		if err != nil {
			log.Warn("backend cache unavailable, continuing without it", "addr", cfg.Cache.BackendAddr, "error", err)
		} else {
			defer redisCache.Close()
			backendTier = redisCache
		}
	}

	judgmentCache := cache.NewManager(sessionTier, localTier, backendTier, log, cache.ManagerConfig{
		SessionTTL: cfg.Cache.SessionTTL,
		LocalTTL:   cfg.Cache.LocalTTL,
		BackendTTL: cfg.Cache.BackendTTL,
	})

	analysisService := usecase.NewAnalysisService(
		store,
		usecase.NewRestrictionMatcher(),
		usecase.NewRetrievalOrchestrator(store, store, log, usecase.RetrievalConfig{
			MaxSimilarIngredients: cfg.Engine.MaxSimilarIngredients,
			MaxSimilarProducts:    cfg.Engine.MaxSimilarProducts,
			MinSimilarity:         cfg.Engine.MinSimilarity,
			Timeout:               cfg.Engine.RetrievalTimeout,
		}),
		usecase.NewContextAssembler(cfg.Engine.ContextCharBudget),
		usecase.NewComplianceReasoner(reasonerClient, log, cfg.Reasoner.Timeout),
		usecase.NewSafetyArbitrator(),
		usecase.NewConfidenceScorer(cfg.Engine.ConfidenceFloor),
		judgmentCache,
		log,
		usecase.AnalysisConfig{OverallTimeout: cfg.Engine.OverallTimeout},
	)

	handler := httpDelivery.NewHandler(analysisService, judgmentCache, log)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info("server listening", "addr", addr)

	if err := router.Run(addr); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}
