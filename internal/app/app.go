package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/data/db"
	apphttp "github.com/occhealth/pcmso-backend/internal/http"
	"github.com/occhealth/pcmso-backend/internal/observability"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics

	dbService    *db.Service
	closeEvents  func() error
	otelShutdown func(context.Context) error
}

// Options tweaks New for non-server entrypoints.
type Options struct {
	// SkipRouter leaves Router nil (CLI use).
	SkipRouter bool
	// SkipMigrate leaves the schema untouched.
	SkipMigrate bool
}

func New(ctx context.Context, opts Options) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	dbService, err := db.NewService(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if !opts.SkipMigrate {
		if err := db.AutoMigrateAll(dbService.DB()); err != nil {
			_ = dbService.Close()
			log.Sync()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	theDB := dbService.DB()
	log.Info("Database ready", "driver", dbService.Driver())

	publisher, closeEvents, err := wirePublisher(log, cfg)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	metrics := observability.NewMetrics()
	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, metrics, publisher)
	if err != nil {
		_ = closeEvents()
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		dbService:    dbService,
		closeEvents:  closeEvents,
		otelShutdown: otelShutdown,
	}
	if !opts.SkipRouter {
		handlerset := wireHandlers(log, theDB, serviceset)
		middleware := wireMiddleware(log, cfg)
		a.Router = wireRouter(log, cfg, metrics, handlerset, middleware)
	}
	return a, nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
	err := (&apphttp.Server{Engine: a.Router}).Run(ctx, a.Cfg.HTTPAddr)
	a.Log.Info("HTTP server stopped")
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.closeEvents != nil {
		if err := a.closeEvents(); err != nil {
			a.Log.Warn("close events publisher failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("close database failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
