package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/threadlog/internal/config"
	"github.com/threadlog/internal/db"
	"github.com/threadlog/internal/handler"
	"github.com/threadlog/internal/logging"
	"github.com/threadlog/internal/realtime"
	"github.com/threadlog/internal/router"
	"github.com/threadlog/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.Init(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseDSN); err != nil {
		logger.Fatal("failed to initialize database", zap.String("driver", cfg.DatabaseDriver), zap.Error(err))
	}
	defer db.Close(db.DB)

	// 可选的初始账号
	if err := db.EnsureUser(os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD"), os.Getenv("ADMIN_FIRST_NAME"), os.Getenv("ADMIN_LAST_NAME")); err != nil {
		logger.Fatal("failed to ensure initial user", zap.Error(err))
	}

	ctx := context.Background()
	blogBucket, err := storage.Open(ctx, cfg, cfg.BlogImageBucket)
	if err != nil {
		logger.Fatal("failed to open bucket", zap.String("bucket", cfg.BlogImageBucket), zap.Error(err))
	}
	commentBucket, err := storage.Open(ctx, cfg, cfg.CommentImageBucket)
	if err != nil {
		logger.Fatal("failed to open bucket", zap.String("bucket", cfg.CommentImageBucket), zap.Error(err))
	}

	hub := realtime.NewHub()
	deps := handler.Deps{
		DB:            db.DB,
		BlogBucket:    blogBucket,
		CommentBucket: commentBucket,
		Hub:           hub,
		Config:        cfg,
		Logger:        logger,
	}

	// 多实例部署时通过 Redis 广播变更事件
	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		relay := realtime.NewRedisRelay(client, cfg.RedisChannel, hub, logger)
		deps.Publisher = relay
		go func() {
			if err := relay.Run(relayCtx); err != nil {
				logger.Error("redis relay stopped", zap.Error(err))
			}
		}()
	}

	api := handler.NewAPI(deps)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router.SetupRouter(api, cfg, logger),
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("storage", cfg.StorageBackend),
			zap.String("database", cfg.DatabaseDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
