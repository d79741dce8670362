package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/app"
	"github.com/bginfotechs/bginfotechs/internal/audit"
	audithttp "github.com/bginfotechs/bginfotechs/internal/audit/http"
	"github.com/bginfotechs/bginfotechs/internal/auth"
	"github.com/bginfotechs/bginfotechs/internal/content"
	"github.com/bginfotechs/bginfotechs/internal/observability"
	"github.com/bginfotechs/bginfotechs/internal/platform/cache"
	"github.com/bginfotechs/bginfotechs/internal/platform/db"
	"github.com/bginfotechs/bginfotechs/internal/rbac"
	"github.com/bginfotechs/bginfotechs/internal/roles"
	"github.com/bginfotechs/bginfotechs/internal/shared"
	"github.com/bginfotechs/bginfotechs/internal/users"
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

	_, registry, err := access.DefaultCatalog()
	if err != nil {
		logger.Error("load permission catalog", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{
		MaxConns:        cfg.PGMaxConns,
		MinConns:        cfg.PGMinConns,
		MaxConnLifetime: cfg.PGConnLifetime,
		ApplicationName: "bgportal",
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	principals := rbac.NewPrincipalCache(cfg.PrincipalCacheSize, cfg.PrincipalCacheTTL)
	rbacService := rbac.NewService(rbac.NewRepository(dbpool), registry, principals, auditLogger, logger)
	if n, err := rbacService.SyncPermissions(ctx); err != nil {
		logger.Warn("sync permissions", slog.Any("error", err))
	} else {
		logger.Info("permissions synced", slog.Int("count", n))
	}

	guard := rbac.Guard{
		Loader:     rbacService,
		Registry:   registry,
		Logger:     logger,
		Metrics:    metrics,
		LoginPath:  cfg.LoginPath,
		DeniedPath: cfg.DeniedPath,
	}

	authService := auth.NewService(auth.NewRepository(dbpool))
	contentService := content.NewService(content.NewRepository(dbpool), registry, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        auth.NewHandler(logger, authService, sessionManager, csrfManager, guard),
		RolesHandler:       roles.NewHandler(logger, rbacService, guard),
		UsersHandler:       users.NewHandler(logger, users.NewService(users.NewRepository(dbpool)), rbacService, guard),
		ContentHandler:     content.NewHandler(logger, contentService, guard),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService, guard),
		AuditHandler:       audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), guard),
		Metrics:            metrics,
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
