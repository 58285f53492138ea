package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transcoding_service/internal/transcode/app"
	"transcoding_service/internal/transcode/encoder"
	"transcoding_service/internal/transcode/queue"
	"transcoding_service/internal/transcode/repository"
	"transcoding_service/internal/transcode/storage"
	"transcoding_service/pkg/config"
	"transcoding_service/pkg/logger"
	"transcoding_service/pkg/metrics"
	"transcoding_service/pkg/runner"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.TranscodeWorker, config.EnvConfig.TranscodeWorkerLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.TranscodeWorker](config.EnvConfig.TranscodeWorker, config.EnvConfig.TranscodeWorkerYAMLPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// 3. status events
	notifier, err := app.NewStatusNotifier(cfg.Kafka)
	if err != nil {
		logger.Log.Fatal("Kafka Writer 建立失敗", zap.Error(err))
	}
	defer notifier.Close()

	// 4. job source
	source, err := queue.NewJobSource(cfg.Queue)
	if err != nil {
		logger.Log.Fatal("job source 建立失敗", zap.String("driver", cfg.Queue.Driver), zap.Error(err))
	}

	orchestrator := encoder.NewOrchestrator(runner.NewExecRunner(), encoder.Config{
		FFmpegPath:  cfg.Encoder.FFmpegPath,
		FFprobePath: cfg.Encoder.FFprobePath,
		Preset:      cfg.Encoder.Preset,
		Timeout:     cfg.Encoder.Timeout,
	})
	processor := app.NewProcessor(repo, storage.NewTransfer(store), orchestrator, notifier, app.ProcessorConfig{
		WorkDir:              cfg.Worker.WorkDir,
		MaxRetries:           cfg.Worker.MaxRetries,
		RetryInitialInterval: cfg.Worker.RetryInitialInterval,
		RetryMaxInterval:     cfg.Worker.RetryMaxInterval,
	})
	pipeline := app.NewPipeline(source, processor, cfg.Worker.Concurrency)

	// 上次 crash 留下的 processing 影片
	if n, err := processor.RecoverStale(ctx, cfg.Worker.StaleAfter); err != nil {
		logger.Log.Error("recover stale videos failed", zap.Error(err))
	} else if n > 0 {
		logger.Log.Warn("stale processing videos marked failed", zap.Int("count", n))
	}

	// 5. metrics / healthz / pprof
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		select {
		case <-pipeline.Done():
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("job source stopped"))
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}
	})
	if metrics.RegisterPprof(mux) {
		logger.Log.Info("pprof enabled", zap.String("path", "/debug/pprof/"))
	}
	srv := &http.Server{
		Addr:              cfg.IP + ":" + cfg.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info("metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := pipeline.Start(gctx); err != nil {
			_ = srv.Close()
			return err
		}

		var sourceErr error
		select {
		case <-gctx.Done():
		case <-pipeline.Done():
			// broker 斷線, 結束 process 交給 supervisor 重啟
			sourceErr = pipeline.Err()
			logger.Log.Error("job source stopped", zap.Error(sourceErr))
		}

		// 停止拉取工作, 等待進行中的工作完成
		logger.Log.Info("shutting down, waiting for in-flight jobs", zap.Duration("timeout", cfg.Worker.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
		defer cancel()

		stopErr := pipeline.Stop(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warn("metrics server shutdown failed", zap.Error(err))
		}
		return errors.Join(sourceErr, stopErr)
	})

	if err := g.Wait(); err != nil {
		logger.Log.Error("transcode worker stopped with error", zap.Error(err))
		logger.Log.Sync()
		os.Exit(1)
	}
	logger.Log.Info("transcode worker stopped")
}
