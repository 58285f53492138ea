package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transcoding_service/internal/transcode/api/handlers"
	"transcoding_service/internal/transcode/api/router"
	"transcoding_service/internal/transcode/app"
	"transcoding_service/internal/transcode/queue"
	"transcoding_service/internal/transcode/repository"
	"transcoding_service/internal/transcode/storage"
	"transcoding_service/pkg/config"
	"transcoding_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

const mb = 1024 * 1024

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.UploadAPI, config.EnvConfig.UploadAPILogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.UploadAPI](config.EnvConfig.UploadAPI, config.EnvConfig.UploadAPIYAMLPath)
	ctx := context.Background()

	// 1. status store (+ redis cache)
	repo, closeStore, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		logger.Log.Fatal("Unable to connect to status store after retries", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore(context.Background())

	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Log.Fatal("status store migrate failed", zap.Error(err))
	}

	repo, closeCache, err := repository.WithCache(ctx, repo, cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Unable to connect to redis", zap.Error(err))
	}
	defer closeCache()

	// 2. object storage
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Log.Fatal("Unable to connect to object storage after retries", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	// 3. job publisher
	publisher, err := queue.NewPublisher(cfg.Queue)
	if err != nil {
		logger.Log.Fatal("job publisher 建立失敗", zap.String("driver", cfg.Queue.Driver), zap.Error(err))
	}
	defer publisher.Close()

	notifier, err := app.NewStatusNotifier(cfg.Kafka)
	if err != nil {
		logger.Log.Fatal("Kafka Writer 建立失敗", zap.Error(err))
	}
	defer notifier.Close()

	maxUpload := int64(cfg.MaxUploadSizeMB) * mb
	usecase := app.NewTranscodeUseCase(store, repo, publisher, notifier, app.UploadConfig{
		MaxUploadSize: maxUpload,
		AllowedExts:   cfg.AllowedExts,
	})
	videoHandler := handlers.NewVideoHandler(usecase)

	// 创建 Fiber 应用, body 上限多留 1MB 給 multipart header
	r := fiber.New(fiber.Config{
		BodyLimit: int(maxUpload) + mb,
	})
	r.Use(recover.New())

	// 添加日志中间件
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.UploadAPILogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	// 注册路由
	router.RegisterRoutes(r, videoHandler)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Log.Info("shutting down upload api")
		if err := r.ShutdownWithTimeout(30 * time.Second); err != nil {
			logger.Log.Error("upload api shutdown failed", zap.Error(err))
		}
	}()

	// 启动服务器
	if err := r.Listen(cfg.IP + ":" + cfg.Port); err != nil {
		logger.Log.Fatal("Server failed to start", zap.Error(err))
	}
	logger.Log.Info("upload api stopped")
}
