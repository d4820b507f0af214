package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libredis "ac360/backend/libs/redis"
	"ac360/backend/services/hourly-cache-service/internal/config"
	"ac360/backend/services/hourly-cache-service/internal/db"
	httpserver "ac360/backend/services/hourly-cache-service/internal/http"
	"ac360/backend/services/hourly-cache-service/internal/http/handlers"
	redisstore "ac360/backend/services/hourly-cache-service/internal/redis"
	"ac360/backend/services/hourly-cache-service/internal/repository"
	"ac360/backend/services/hourly-cache-service/internal/service"
	"ac360/backend/services/hourly-cache-service/internal/ws"
)

// App wires hourly-cache-service dependencies.
type App struct {
	server      *httpserver.Server
	debouncer   *service.RecalcDebouncer
	cancelHub   context.CancelFunc
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.NewPostgres(cfg.Database.DSN, cfg.Cache.WriteConcurrency)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	totalsRepo := repository.NewHourlyTotalsRepository(sqlDB, cfg.Cache.WriteConcurrency)
	var mirrors []service.CacheWriter
	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		redisClient, err = libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password,
			libredis.WithDB(cfg.Redis.DB),
			libredis.WithPoolSize(cfg.Cache.WriteConcurrency+2),
		)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		mirrors = append(mirrors, redisstore.NewHourlyTotalsStore(redisClient, cfg.MirrorTTL()))
		logger.Info("redis mirror enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.MirrorTTL()))
	}
	writer := service.NewMirroredWriter(totalsRepo, logger, mirrors...)

	hubCtx, cancelHub := context.WithCancel(context.Background())
	hub := ws.NewHub(hubCtx, 0, logger)

	clock := quartz.NewReal()
	cacheService := service.NewHourlyCacheService(
		repository.NewSessionRepository(sqlDB, logger),
		writer,
		hub,
		loc,
		clock,
		logger,
	)
	debouncer := service.NewRecalcDebouncer(cacheService, clock, cfg.DebounceDelay(), cfg.RunTimeout(), logger)

	routes := httpserver.Routes{
		Recalculate:    handlers.NewRecalculateHandler(cacheService, logger),
		SessionWritten: handlers.NewSessionWrittenHandler(debouncer),
		HourlyTotals:   handlers.NewHourlyTotalsHandler(totalsRepo, loc, clock),
		LiveFeed:       hub.HandleWS,
		Health:         handlers.NewHealthHandler(debouncer, hub),
	}
	router := httpserver.NewRouter(routes, httpserver.RouterOptions{
		JWTSecret:          cfg.Auth.JWTSecret,
		RateLimitPerMinute: cfg.HTTP.RateLimit,
	})
	server := httpserver.NewServer(cfg.HTTPAddress(), router, cfg.RunTimeout()+cfg.RunTimeout()/2, logger)

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("internal routes are unauthenticated; set HOURLY_JWT_SECRET")
	}

	return &App{
		server:      server,
		debouncer:   debouncer,
		cancelHub:   cancelHub,
		db:          sqlDB,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close drains pending recalculations and releases resources.
func (a *App) Close() {
	a.debouncer.Close()
	a.cancelHub()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
