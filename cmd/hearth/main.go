package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hearth-bot/internal/bot"
	"hearth-bot/internal/config"
	"hearth-bot/internal/httpapi"
	"hearth-bot/internal/metrics"
	"hearth-bot/internal/server"
	"hearth-bot/internal/storage"
	"hearth-bot/internal/storage/memory"
	"hearth-bot/internal/storage/mongo"
	"hearth-bot/internal/storage/postgres"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := openStore(cfg.Database, logger)
	if err != nil {
		logger.Fatal("storage init failed", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	client := httpapi.New(time.Duration(cfg.Search.TimeoutSeconds)*time.Second, logger)
	client.WithObserver(metrics.ObserveAPI)

	botSvc, err := bot.New(config.NewStore(config.Path(), cfg), store, client, logger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	err = botSvc.Start(startCtx)
	cancelStart()
	if err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started", zap.String("name", cfg.Discord.Name))

	var srv *server.Server
	if cfg.Health.Enabled {
		srv = server.New(cfg.Health.Addr, map[string]server.Check{
			"storage": store.Ping,
			"gateway": botSvc.Connected,
		}, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("shutdown requested")
	case <-botSvc.Stopped():
		logger.Info("shutdown requested by owner")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if srv != nil {
		_ = srv.Shutdown(ctx)
	}
	botSvc.Close(ctx)
	if err := store.Close(ctx); err != nil {
		logger.Warn("storage close failed", zap.Error(err))
	}
}

// openStore connects the configured backend and prepares its schema.
func openStore(cfg config.DatabaseConfig, logger *zap.Logger) (storage.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	switch cfg.Driver {
	case "mongo":
		store, err := mongo.New(ctx, mongo.Options{
			URI:                    cfg.MongoURI,
			Database:               cfg.Name,
			ProfileCollection:      cfg.ProfileCollection,
			ReactionRoleCollection: cfg.ReactionRoleCollection,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		return store, nil
	case "memory":
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
