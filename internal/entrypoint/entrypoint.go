package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mrlokans/bookhive/internal/audit"
	"github.com/mrlokans/bookhive/internal/auth"
	"github.com/mrlokans/bookhive/internal/catalog"
	"github.com/mrlokans/bookhive/internal/config"
	"github.com/mrlokans/bookhive/internal/database"
	dbaudit "github.com/mrlokans/bookhive/internal/database/audit"
	http_controllers "github.com/mrlokans/bookhive/internal/http"
	"github.com/mrlokans/bookhive/internal/lending"
	"github.com/mrlokans/bookhive/internal/logger"
	"github.com/mrlokans/bookhive/internal/scheduler"
	"github.com/mrlokans/bookhive/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts it down
// within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Dur("timeout", timeout).Msg("Shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Background work stops before the listener.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}

// Run wires every component from cfg and serves until interrupted.
func Run(cfg *config.Config, version string) error {
	appLogger := logger.Init(cfg.Log)
	log.Info().Str("version", version).Msg("Starting BookHive")

	if cfg.Admin.ElevationEnabled() {
		log.Info().Int("admins", len(cfg.Admin.Emails)).Msg("Admin elevation enabled")
	} else {
		log.Warn().Msg("ADMIN_EMAILS or ADMIN_PASSWORD not set, admin elevation disabled")
	}

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	auditService := audit.NewService(dbaudit.NewRepository(db.DB))
	defer auditService.Wait()

	jwtSecret, err := signingSecret(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenIssuer(jwtSecret, cfg.Auth.TokenExpiry)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	var csrfSecret []byte
	if cfg.Auth.CSRFEnabled {
		csrfSecret, err = auth.GenerateSecretBytes()
		if err != nil {
			return fmt.Errorf("failed to generate CSRF secret: %w", err)
		}
	}

	authService := auth.NewService(db.DB, cfg.Auth, cfg.Admin)
	if hasUsers, err := authService.HasUsers(); err == nil && !hasUsers {
		log.Info().Msg("No users yet. Sign up at /auth/signup or run 'bookhive create-user'.")
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var queue scheduler.TaskEnqueuer
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing task client")
			}
		}()

		taskClient.Register(tasks.NewCleanupAuditEventsQueue(auditService))

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
		queue = taskClient
	}

	cleanup := scheduler.NewAuditCleanupScheduler(cfg.Audit.CleanupSchedule, cfg.Audit.RetentionDays, queue, auditService)
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()
	if err := cleanup.Start(schedulerCtx); err != nil {
		log.Error().Err(err).Str("schedule", cfg.Audit.CleanupSchedule).Msg("Audit cleanup scheduler not started")
	}

	router, stopRouter := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:      db,
		Catalog:       catalog.NewService(db.DB),
		Lending:       lending.NewService(db.DB),
		Audit:         auditService,
		AuthService:   authService,
		Tokens:        tokens,
		AuthConfig:    cfg.Auth,
		CSRFSecret:    csrfSecret,
		TemplatesPath: cfg.UI.TemplatesPath,
		StaticPath:    cfg.UI.StaticPath,
		MaxPDFSize:    cfg.Uploads.MaxPDFSizeBytes(),
		RateLimit:     cfg.RateLimit,
		CORS:          cfg.CORS,
		Logger:        appLogger,
		Version:       version,
	})
	defer stopRouter()

	onShutdown := func(ctx context.Context) {
		cleanup.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	return Serve(router, cfg, onShutdown)
}

// signingSecret returns the configured JWT secret, or a random one when unset.
// A random secret invalidates every session on restart.
func signingSecret(configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	secret, err := auth.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	log.Warn().Msg("AUTH_JWT_SECRET not set, generated a random one; sessions will not survive a restart")
	return []byte(secret), nil
}
