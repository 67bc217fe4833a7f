package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-bot/internal/api/http"
	"github.com/spec-kit/helpdesk-bot/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-bot/internal/auth"
	"github.com/spec-kit/helpdesk-bot/internal/clock"
	"github.com/spec-kit/helpdesk-bot/internal/config"
	"github.com/spec-kit/helpdesk-bot/internal/events"
	"github.com/spec-kit/helpdesk-bot/internal/gateway"
	"github.com/spec-kit/helpdesk-bot/internal/observability"
	"github.com/spec-kit/helpdesk-bot/internal/persistence"
	"github.com/spec-kit/helpdesk-bot/internal/repository"
	"github.com/spec-kit/helpdesk-bot/internal/service"
	"github.com/spec-kit/helpdesk-bot/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	auditRepo := repository.NewTicketAuditRepository(pool)
	workspaceRepo := repository.NewWorkspaceRepository(pool, redis.Client, categoryRepo, cfg.Tickets.ConfigCacheTTL(), logger)

	gatewayClient := gateway.NewClient(cfg.Gateway, logger)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		CategoryRepo: categoryRepo,
		AuditRepo:    auditRepo,
		Provisioner:  gatewayClient,
		Notifier:     gatewayClient,
		Dispatcher:   dispatcher,
		Clock:        clock.New(),
		Logger:       logger,
		DeleteDelay:  cfg.Tickets.DeleteDelay(),
	})
	creationService := service.NewCreationService(service.CreationDependencies{
		TicketRepo:     ticketRepo,
		WorkspaceRepo:  workspaceRepo,
		AuditRepo:      auditRepo,
		Provisioner:    gatewayClient,
		Notifier:       gatewayClient,
		Dispatcher:     dispatcher,
		Logger:         logger,
		BotPrincipalID: cfg.Gateway.BotPrincipalID,
		ChannelPrefix:  cfg.Tickets.ChannelPrefix,
	})
	claimService := service.NewClaimService(service.ClaimDependencies{
		TicketRepo:   ticketRepo,
		CategoryRepo: categoryRepo,
		AuditRepo:    auditRepo,
		Notifier:     gatewayClient,
		Dispatcher:   dispatcher,
		Clock:        clock.New(),
		Logger:       logger,
	})
	confirmGate := service.NewConfirmationGate(ticketService, gatewayClient, clock.New(), cfg.Tickets.ConfirmWindow(), logger)

	notificationService := service.NewNotificationService(dispatcher, logger)
	worker.StartNotificationWorker(notificationService)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, confirmGate)
	interactionsHandler := handlers.NewInteractionsHandler(creationService, ticketService, claimService, confirmGate, metrics)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Interactions:   interactionsHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
