package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	importhandler "github.com/FACorreiaa/invoice-import/internal/domain/import/handler"
	importrepo "github.com/FACorreiaa/invoice-import/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/invoice-import/internal/domain/import/service"

	"github.com/FACorreiaa/invoice-import/pkg/cache"
	"github.com/FACorreiaa/invoice-import/pkg/config"
	"github.com/FACorreiaa/invoice-import/pkg/cron"
	"github.com/FACorreiaa/invoice-import/pkg/db"
	"github.com/FACorreiaa/invoice-import/pkg/middleware"
	"github.com/FACorreiaa/invoice-import/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB // nil when POSTGRES_ENABLED=false
	Logger *slog.Logger

	// Infrastructure
	FileStorage storage.Storage
	Cache       cache.Cache
	Scheduler   *cron.Scheduler

	// Repositories
	MappingRepo importrepo.ImportMappingRepository

	// Services
	ImportService *importservice.ImportService

	// Handlers
	ImportHandler *importhandler.ImportHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Database.Enabled {
		if err := deps.initDatabase(); err != nil {
			return nil, fmt.Errorf("failed to init database: %w", err)
		}
	}

	if err := deps.initInfrastructure(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}

	deps.initRepositories()
	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initInfrastructure sets up file storage, the preimport cache and the cleanup scheduler
func (d *Dependencies) initInfrastructure(ctx context.Context) error {
	fileStorage, err := storage.New(ctx, &storage.Config{
		Type:              storage.StorageType(d.Config.Storage.Type),
		LocalPath:         d.Config.Storage.LocalPath,
		S3Bucket:          d.Config.Storage.S3Bucket,
		S3Region:          d.Config.Storage.S3Region,
		S3AccessKeyID:     d.Config.Storage.S3AccessKeyID,
		S3SecretAccessKey: d.Config.Storage.S3SecretAccessKey,
		S3Endpoint:        d.Config.Storage.S3Endpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	var sweeper cron.Sweeper
	switch d.Config.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Address:  d.Config.Cache.RedisAddress,
			Password: d.Config.Cache.RedisPassword,
			Database: d.Config.Cache.RedisDB,
			Prefix:   d.Config.Cache.Prefix,
		})
		if err != nil {
			return err
		}
		d.Cache = redisCache
	default:
		memCache := cache.NewMemoryCache()
		d.Cache = memCache
		sweeper = memCache
	}

	d.Scheduler = cron.NewScheduler(d.FileStorage, sweeper, d.Config.Import.CleanupSpec, d.Config.Cache.TTL, d.Logger)

	d.Logger.Info("infrastructure initialized",
		slog.String("storage", d.Config.Storage.Type),
		slog.String("cache", d.Config.Cache.Type),
	)
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	if d.DB != nil {
		d.MappingRepo = importrepo.NewPostgresImportMappingRepository(d.DB.Pool)
	}
	d.Logger.Info("repositories initialized", slog.Bool("mappings", d.MappingRepo != nil))
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() {
	d.ImportService = importservice.NewImportService(
		d.FileStorage,
		d.Cache,
		newLoggingEntityWriter(d.Logger),
		importservice.Options{
			CacheTTL:        d.Config.Cache.TTL,
			PreviewRows:     d.Config.Import.PreviewRows,
			DefaultCurrency: d.Config.Import.DefaultCurrency,
		},
		d.Logger,
	)
	if d.MappingRepo != nil {
		d.ImportService.WithMappingRepository(d.MappingRepo)
	}

	d.Logger.Info("services initialized")
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Config.Import.MaxUploadBytes, d.Logger)
	d.Logger.Info("handlers initialized")
}

// Router builds the HTTP handler with the middleware chain
func (d *Dependencies) Router() http.Handler {
	mux := http.NewServeMux()
	d.ImportHandler.Register(mux)

	return middleware.Chain(mux,
		middleware.Logging(d.Logger),
		middleware.CORS(d.Config.Server.AllowedOrigins),
		middleware.RateLimit(d.Config.Server.RateLimitPerSecond, d.Config.Server.RateLimitBurst),
	)
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if closer, ok := d.Cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			d.Logger.Warn("failed to close cache", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
