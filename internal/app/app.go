// Package app assembles the services, repositories and HTTP surface from config.
package app

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fieldops/msp-workflow/internal/api/http"
	"github.com/fieldops/msp-workflow/internal/api/http/handlers"
	"github.com/fieldops/msp-workflow/internal/auth"
	"github.com/fieldops/msp-workflow/internal/config"
	"github.com/fieldops/msp-workflow/internal/events"
	"github.com/fieldops/msp-workflow/internal/observability"
	"github.com/fieldops/msp-workflow/internal/persistence"
	"github.com/fieldops/msp-workflow/internal/repository"
	"github.com/fieldops/msp-workflow/internal/repository/memory"
	"github.com/fieldops/msp-workflow/internal/service"
	"github.com/fieldops/msp-workflow/internal/worker"
)

// App holds every long-lived component of the service.
type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Postgres      *persistence.Postgres
	Redis         *persistence.Redis
	Repos         repository.Repositories
	Dispatcher    events.Dispatcher
	Tokens        *auth.TokenManager
	Scheduling    *service.SchedulingService
	Assignment    *service.AssignmentService
	Workflows     *service.WorkflowService
	Tickets       *service.TicketService
	Notifications *service.NotificationService
	Worker        *worker.Worker
}

// New connects to the configured backends and assembles the services. Without
// POSTGRES_DSN tickets are kept in memory.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, err
		}
	}
	redis := persistence.NewRedis(cfg.Redis, logger)

	a, err := Assemble(cfg, logger, pg, redis)
	if err != nil {
		redis.Close()
		pg.Close()
		return nil, err
	}
	return a, nil
}

// Assemble wires services over already opened backends.
func Assemble(cfg *config.Config, logger *zap.Logger, pg *persistence.Postgres, redis *persistence.Redis) (*App, error) {
	location, err := cfg.Scheduling.Location()
	if err != nil {
		return nil, fmt.Errorf("scheduling timezone: %w", err)
	}

	var repos repository.Repositories
	if pool := pg.PoolHandle(); pool != nil {
		repos = repository.NewRepositories(pool)
	} else {
		logger.Warn("using in-memory storage; data is lost on restart")
		repos = memory.NewStore().Repositories()
	}

	var locker persistence.Locker
	switch cfg.Scheduling.LockBackend {
	case config.LockBackendRedis:
		if !redis.Available() {
			return nil, fmt.Errorf("SCHEDULING_LOCK_BACKEND=redis requires REDIS_ENABLED")
		}
		locker = persistence.NewRedisLocker(redis.Client, cfg.Scheduling.LockTTL())
	default:
		locker = persistence.NewKeyedMutex()
	}

	var publisher events.Publisher
	if redis.Available() && cfg.Events.Channel != "" {
		publisher = events.NewRedisPublisher(redis.Client, cfg.Events.Channel)
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	notifications := service.NewNotificationService(dispatcher, publisher, logger, cfg.Notification)

	scheduling := service.NewSchedulingService(service.SchedulingDependencies{
		EngineerRepo:     repos.Engineers,
		VisitBookingRepo: repos.VisitBookings,
		Transactor:       repos.Transactor,
		Locker:           locker,
		Location:         location,
		Granularity:      cfg.Scheduling.SlotGranularity(),
		Metrics:          metrics,
		Logger:           logger,
	})
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:        repos.Tickets,
		EngineerRepo:      repos.Engineers,
		TeamRepo:          repos.Teams,
		AssignmentLogRepo: repos.AssignmentLog,
	})
	workflows := service.NewWorkflowService(service.WorkflowDependencies{
		WorkflowRepo: repos.Workflows,
		TicketRepo:   repos.Tickets,
		Transactor:   repos.Transactor,
		Logger:       logger,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:        repos.Tickets,
		TimelineRepo:      repos.Timeline,
		WorkflowRepo:      repos.Workflows,
		EngineerRepo:      repos.Engineers,
		TeamRepo:          repos.Teams,
		SLAPolicyRepo:     repos.SLAPolicies,
		Transactor:        repos.Transactor,
		Locker:            locker,
		Scheduling:        scheduling,
		AssignmentService: assignment,
		Dispatcher:        dispatcher,
		Metrics:           metrics,
		Logger:            logger,
	})

	background := worker.New(worker.Dependencies{
		Notifications: notifications,
		Tickets:       tickets,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	background.StartNotifications()

	return &App{
		Config:        cfg,
		Logger:        logger,
		Metrics:       metrics,
		Postgres:      pg,
		Redis:         redis,
		Repos:         repos,
		Dispatcher:    dispatcher,
		Tokens:        auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		Scheduling:    scheduling,
		Assignment:    assignment,
		Workflows:     workflows,
		Tickets:       tickets,
		Notifications: notifications,
		Worker:        background,
	}, nil
}

// HTTP builds the fiber application.
func (a *App) HTTP() *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:               a.Config.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(server, a.Logger, a.Metrics, a.Config.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(a.Config.App.Name, a.Config.App.Version, a.Postgres, a.Redis, a.Metrics),
		Tickets:        handlers.NewTicketsHandler(a.Tickets),
		Engineers:      handlers.NewEngineersHandler(a.Scheduling),
		Teams:          handlers.NewTeamsHandler(a.Assignment),
		Workflows:      handlers.NewWorkflowsHandler(a.Workflows),
		AuthMiddleware: auth.NewAuthMiddleware(a.Tokens),
	})
	return server
}

// RunBackground runs periodic jobs until ctx is done.
func (a *App) RunBackground(ctx context.Context) {
	a.Worker.RunSLASweep(ctx, a.Config.Worker.SLASweepInterval())
}

// Close releases backend connections.
func (a *App) Close() {
	a.Redis.Close()
	a.Postgres.Close()
}
