package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/connpane/internal/config"
	"github.com/MrSnakeDoc/connpane/internal/httpserver"
	"github.com/MrSnakeDoc/connpane/internal/httpserver/deps"
	"github.com/MrSnakeDoc/connpane/internal/index"
	"github.com/MrSnakeDoc/connpane/internal/logger"
	"github.com/MrSnakeDoc/connpane/internal/redis"
	"github.com/MrSnakeDoc/connpane/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/connpane/internal/store/redis"
	"github.com/MrSnakeDoc/connpane/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	memIndex    *index.MemoryIndex
	reloader    *scheduler.ConnectionReloader
	pruner      *scheduler.Pruner
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	redisClient, err := redis.Connect(context.Background(), redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Error("failed to connect to redis", logger.Error(err))
		_ = loggerClient.Sync()
		os.Exit(1)
	}

	memIndex := index.NewMemoryIndex()
	store := redisstore.NewStore(redisClient)

	// Restore pushed snapshots before the first file reload re-tags them
	syncer := scheduler.NewRedisSyncer(store, memIndex, loggerClient)
	if err := syncer.Sync(context.Background()); err != nil {
		loggerClient.Warn("failed to sync from redis on startup, starting from the registry file only",
			logger.Error(err))
	}

	reloadTrigger := make(chan struct{}, 1)

	reloader := scheduler.NewConnectionReloader(
		cfg.ConnectionsFile,
		store,
		memIndex,
		loggerClient,
		cfg.ReloadInterval,
		reloadTrigger,
	)

	pruner := scheduler.NewPruner(
		store,
		memIndex,
		loggerClient,
		cfg.PruneInterval,
		cfg.Retention,
		cfg.LastUsedUnit,
	)

	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		ConnectionsFile: cfg.ConnectionsFile,
		Store:           store,
		MemoryIndex:     memIndex,
		ReloadTrigger:   reloadTrigger,
		IngestBurst:     cfg.IngestBurst,
		IngestRefill:    cfg.IngestRefillPerMn,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		memIndex:    memIndex,
		reloader:    reloader,
		pruner:      pruner,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting connpane %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())
	defer func() { _ = a.logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A failed initial load is fatal
	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start connection reloader: %w", err)
	}
	a.logger.Info("connection reloader started",
		logger.String("file", a.cfg.ConnectionsFile),
		logger.Duration("interval", a.cfg.ReloadInterval),
		logger.Int("connections", a.memIndex.Count()))

	if err := a.pruner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pruner: %w", err)
	}
	if a.pruner.Enabled() {
		a.logger.Info("pruner started",
			logger.Duration("interval", a.cfg.PruneInterval),
			logger.Duration("retention", a.cfg.Retention),
			logger.String("unit", string(a.cfg.LastUsedUnit)))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.reloader.Stop()
	a.pruner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", logger.Error(err))
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ connpane stopped cleanly")
	return nil
}
