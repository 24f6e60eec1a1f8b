package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"clawqa/internal/api"
	"clawqa/internal/api/handlers"
	"clawqa/internal/api/middleware"
	"clawqa/internal/engine/bugs"
	"clawqa/internal/engine/escalation"
	"clawqa/internal/engine/webhooks"
	"clawqa/internal/pkg/logger"
	"clawqa/internal/platform/auth"
	"clawqa/internal/platform/config"
	"clawqa/internal/platform/database"
	"clawqa/internal/platform/repositories"
	"clawqa/internal/ratelimit"
	"clawqa/internal/workers"
	"clawqa/migrations"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if closer := logger.Init(cfg.Logging); closer != nil {
		defer closer.Close()
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db, migrations.FS); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	cycleRepo := repositories.NewCycleRepository(db)
	bugRepo := repositories.NewBugRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)
	ruleRepo := repositories.NewEscalationRuleRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(db)

	// Engine
	runner := workers.NewRunner()
	executor := webhooks.NewExecutor(cfg.Webhooks, deliveryRepo)
	dispatcher := webhooks.NewDispatcher(webhookRepo, executor, runner, cfg.Webhooks.RetryDelays)
	evaluator := escalation.NewEvaluator(cycleRepo, ruleRepo, bugRepo, runner, cfg.Webhooks.Timeout)
	bugSvc := bugs.NewService(bugRepo, cycleRepo, projectRepo, evaluator, dispatcher, runner)

	g, gctx := errgroup.WithContext(ctx)

	// Rate limiting
	var limitStore ratelimit.Store
	switch cfg.RateLimit.Backend {
	case "redis":
		redisStore, err := ratelimit.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		limitStore = redisStore
	default:
		memoryStore := ratelimit.NewMemoryStore()
		g.Go(func() error { return memoryStore.Run(gctx, cfg.RateLimit.SweepInterval) })
		limitStore = memoryStore
	}
	limiter := ratelimit.NewLimiter(limitStore, cfg.RateLimit)

	// Router
	tokenSvc := auth.NewTokenService(cfg.JWT)
	router := api.NewRouter(&api.Dependencies{
		WebhookHandler:        handlers.NewWebhookHandler(webhookRepo, deliveryRepo, executor, cfg.Webhooks.DeliveriesPageSize),
		EscalationRuleHandler: handlers.NewEscalationRuleHandler(ruleRepo, projectRepo),
		BugHandler:            handlers.NewBugHandler(bugSvc, bugRepo),
		CycleHandler:          handlers.NewCycleHandler(bugSvc),
		APIKeyHandler:         handlers.NewAPIKeyHandler(apiKeyRepo),
		HealthHandler:         handlers.NewHealthHandler(db),
		MetricsHandler:        handlers.NewMetricsHandler(),
		AuthMiddleware:        middleware.NewAuthMiddleware(tokenSvc, apiKeyRepo, userRepo, runner),
		RateLimitMiddleware:   middleware.NewRateLimitMiddleware(limiter, cfg.RateLimit),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		if err := runner.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("background jobs still running at shutdown")
		}
		return nil
	})

	return g.Wait()
}
