package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cover-studio/internal/config"
	"cover-studio/internal/domain/ports/adapter"
	aiAdapters "cover-studio/internal/infra/adapters/ai"
	objStorage "cover-studio/internal/infra/adapters/storage"
	pg "cover-studio/internal/infra/db/postgres"
	"cover-studio/internal/infra/logging"
	"cover-studio/internal/infra/metrics"
	red "cover-studio/internal/infra/redis"
	"cover-studio/internal/infra/sched"
	"cover-studio/internal/infra/web"
	"cover-studio/internal/infra/worker"
	"cover-studio/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop providers allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.MaxConns))
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	txManager := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	jobRepo := pg.NewGenerationJobRepo(pool)
	assetRepo := pg.NewAssetRepo(pool)
	usageRepo := pg.NewUsageRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	grantRepo := pg.NewAdminGrantRepo(pool)
	tierRepo := pg.NewTierLimitRepoCacheDecorator(pg.NewTierLimitRepo(pool), redisClient, cfg.Quota.TierCacheTTL)

	// ---- Image generator (Gemini -> OpenAI -> noop in dev) ----
	var gen adapter.ImageGenerator
	switch {
	case cfg.Generation.GeminiKey != "":
		gen, err = aiAdapters.NewGeminiAdapter(ctx, cfg.Generation.GeminiKey, cfg.Generation.GeminiURL, cfg.Generation.Model)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		logger.Info().Str("model", cfg.Generation.Model).Msg("image generator: Gemini")
	case cfg.Generation.OpenAIKey != "":
		gen, err = aiAdapters.NewOpenAIAdapter(cfg.Generation.OpenAIKey, cfg.Generation.Model)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		logger.Info().Str("model", cfg.Generation.Model).Msg("image generator: OpenAI")
	case cfg.Runtime.Dev:
		gen = aiAdapters.NewNoopGenerator()
		logger.Warn().Msg("image generator: noop (dev mode, no provider key)")
	default:
		logger.Fatal().Msg("no image provider configured: set generation.gemini_key or generation.openai_key")
	}
	gen = aiAdapters.NewLimitedGenerator(gen, cfg.Generation.ConcurrentLimit)

	// ---- Object storage ----
	var store adapter.ObjectStorage
	if cfg.Storage.Bucket != "" {
		store, err = objStorage.NewS3Storage(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("object storage")
		}
	} else if cfg.Runtime.Dev {
		store = objStorage.NewNoopStorage()
		logger.Warn().Msg("object storage: in-memory (dev mode)")
	} else {
		logger.Fatal().Msg("storage.bucket is required outside dev mode")
	}

	// ---- Worker pool ----
	wpool := worker.NewPool(cfg.Worker.Count, logger)
	wpool.Start(ctx)
	defer wpool.Stop()

	// ---- Use cases ----
	quotaUC := usecase.NewQuotaUseCase(userRepo, grantRepo, tierRepo, usageRepo, cfg.Quota.GrantAllowance, logger)
	genUC := usecase.NewGenerationUseCase(
		jobRepo, assetRepo, usageRepo, userRepo, quotaUC, gen, store,
		txManager, wpool, locker,
		usecase.GenerationTuning{
			MaxAttempts:       cfg.Generation.MaxAttempts,
			BackoffBase:       cfg.Generation.BackoffBase,
			DefaultAnchor:     cfg.Generation.DefaultAnchor,
			RegenerateLockTTL: cfg.Worker.RegenerateLockTTL,
		},
		logger,
	)
	assetUC := usecase.NewAssetUseCase(assetRepo, gen, store, txManager, cfg.Generation.MaxAttempts, cfg.Generation.BackoffBase, logger)

	// ---- Stale job reaper ----
	reaper := sched.NewReaperWorker(cfg.Worker.ReaperInterval, cfg.Worker.StaleAfter, jobRepo, logger)
	go reaper.Run(ctx)

	// ---- HTTP server ----
	srv := web.NewServer(genUC, assetUC, quotaUC, rateLimiter, cfg.Server.APIKey, logger)
	go func() {
		if err := srv.Start(cfg.Server.Port); err != nil {
			logger.Info().Err(err).Msg("HTTP server stopped")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown")
	}
	cancel()
}
