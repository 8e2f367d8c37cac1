package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/cheezious/it-support/internal/api/http"
	"github.com/cheezious/it-support/internal/api/http/handlers"
	"github.com/cheezious/it-support/internal/auth"
	"github.com/cheezious/it-support/internal/cache"
	"github.com/cheezious/it-support/internal/config"
	"github.com/cheezious/it-support/internal/events"
	"github.com/cheezious/it-support/internal/observability"
	"github.com/cheezious/it-support/internal/persistence"
	"github.com/cheezious/it-support/internal/repository"
	"github.com/cheezious/it-support/internal/service"
	"github.com/cheezious/it-support/internal/worker"
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
	userRepo := repository.NewUserRepository(pool)
	regionRepo := repository.NewRegionRepository(pool)
	branchRepo := repository.NewBranchRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)
	announcementRepo := repository.NewAnnouncementRepository(pool)
	stubRepo := repository.NewNotificationStubRepository(pool)

	policy := auth.NewPolicy(cfg.Auth.RootEmails)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	unreadCache := cache.NewUnreadCounts(redis.Client, cfg.Announce.UnreadCacheTTL())

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:          userRepo,
		PasswordResetRepo: resetRepo,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		MessageRepo:    messageRepo,
		AttachmentRepo: attachmentRepo,
		RegionRepo:     regionRepo,
		BranchRepo:     branchRepo,
		HistoryRepo:    historyRepo,
		Policy:         policy,
		Dispatcher:     dispatcher,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  ticketRepo,
		UserRepo:    userRepo,
		RegionRepo:  regionRepo,
		BranchRepo:  branchRepo,
		HistoryRepo: historyRepo,
		Policy:      policy,
		Dispatcher:  dispatcher,
	})
	announcementService := service.NewAnnouncementService(service.AnnouncementDependencies{
		AnnouncementRepo: announcementRepo,
		StubRepo:         stubRepo,
		UserRepo:         userRepo,
		Policy:           policy,
		Dispatcher:       dispatcher,
		UnreadCache:      unreadCache,
		Logger:           logger,
		SendTimeout:      cfg.Announce.SendTimeout(),
	})
	directoryService := service.NewDirectoryService(*cfg, service.DirectoryDependencies{
		UserRepo:   userRepo,
		RegionRepo: regionRepo,
		BranchRepo: branchRepo,
		Policy:     policy,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		StaffTickets:   handlers.NewStaffTicketsHandler(ticketService, assignmentService),
		Announcements:  handlers.NewAnnouncementsHandler(announcementService),
		Directory:      handlers.NewDirectoryHandler(directoryService),
		AuthMiddleware: authMiddleware,
		Policy:         policy,
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
