package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vertice-erp/vertice-erp/internal/access"
	"github.com/vertice-erp/vertice-erp/internal/app"
	"github.com/vertice-erp/vertice-erp/internal/auth"
	"github.com/vertice-erp/vertice-erp/internal/companies"
	"github.com/vertice-erp/vertice-erp/internal/modules"
	"github.com/vertice-erp/vertice-erp/internal/observability"
	"github.com/vertice-erp/vertice-erp/internal/platform/cache"
	"github.com/vertice-erp/vertice-erp/internal/platform/db"
	"github.com/vertice-erp/vertice-erp/internal/profiles"
	"github.com/vertice-erp/vertice-erp/internal/shared"
	"github.com/vertice-erp/vertice-erp/internal/users"
	"github.com/vertice-erp/vertice-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "vertice_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	accessRepo := access.NewRepository(dbpool)
	snapshotStore := access.NewSnapshotStore(accessRepo, redisClient, logger, metrics, cfg.AccessSnapshotTTL, cfg.AccessFetchTimeout)
	evaluator := access.NewEvaluator(snapshotStore, logger, metrics)
	accessMiddleware := access.Middleware{Evaluator: evaluator, Logger: logger}
	accessHandler := access.NewHandler(logger, evaluator)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	profilesRepo := profiles.NewRepository(dbpool)
	profilesService := profiles.NewService(profilesRepo, auditLogger, snapshotStore, logger)
	profilesHandler := profiles.NewHandler(logger, profilesService)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger, snapshotStore, jobsClient, logger)
	usersHandler := users.NewHandler(logger, usersService)

	modulesRepo := modules.NewRepository(dbpool)
	modulesService := modules.NewService(modulesRepo, auditLogger, snapshotStore, logger)
	modulesHandler := modules.NewHandler(logger, modulesService)

	companiesRepo := companies.NewRepository(dbpool)
	companiesService := companies.NewService(companiesRepo, auditLogger, logger)
	companiesHandler := companies.NewHandler(logger, companiesService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		AccessHandler:    accessHandler,
		ProfilesHandler:  profilesHandler,
		UsersHandler:     usersHandler,
		ModulesHandler:   modulesHandler,
		CompaniesHandler: companiesHandler,
		JobHandler:       jobHandler,
		AccessMiddleware: accessMiddleware,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
