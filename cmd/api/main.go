package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fmeaflow/internal/config"
	"fmeaflow/internal/database"
	"fmeaflow/internal/database/migration"
	handlers "fmeaflow/internal/http/handler"
	"fmeaflow/internal/http/middleware"
	"fmeaflow/internal/otel"
	"fmeaflow/internal/repository/postgres"
	"fmeaflow/internal/service"
	"fmeaflow/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	shutdownTracing, err := otel.Init(ctx, time.Local)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, time.Local, cfg.Database.Host); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Object storage holds the archived renditions of approved revisions.
	archive, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	// Repositories
	docRepo := postgres.NewDocumentPostgres(db)
	userRepo := postgres.NewUserPostgres(db)
	tokenRepo := postgres.NewTokenPostgres(db)
	auditRepo := postgres.NewAuditPostgres(db)
	settingsRepo := postgres.NewSettingsPostgres(db)
	flowRepo := postgres.NewWorkflowPostgres(db)

	// Services
	tokenSvc := service.NewTokenService(tokenRepo)
	recorder := service.NewRecorder(auditRepo)
	notifier := service.NewNotifier(settingsRepo)
	updates := service.NewBroadcaster()
	wf := service.NewWorkflow(docRepo, userRepo, flowRepo, tokenSvc, notifier, recorder, updates, archive)
	settingsSvc := service.NewSettingsService(settingsRepo)
	reconciler := service.NewReconciler(settingsRepo, tokenSvc, wf)
	poller := service.NewPoller(reconciler, time.Duration(cfg.Poller.IntervalSec)*time.Second)

	if cfg.Poller.Enabled {
		go poller.Run(ctx)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	promMW, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())
	app.Use(promMW.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app, db, handlers.Services{
		Workflow: wf,
		Recorder: recorder,
		Tokens:   tokenSvc,
		Users:    service.NewUserService(userRepo),
		Settings: settingsSvc,
		Poller:   poller,
		Status:   reconciler.LastCheckTime,
	})

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	// The control surface serves the local shell only.
	if err := app.Listen(cfg.AppHost); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
