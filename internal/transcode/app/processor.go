package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/internal/transcode/repository"
	"transcoding_service/internal/transcode/storage"
	"transcoding_service/pkg/logger"
	"transcoding_service/pkg/metrics"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Encoder 將來源檔轉為 HLS
type Encoder interface {
	Encode(ctx context.Context, sourcePath, outputDir string) (*domain.OutputManifest, error)
}

// Transferer 下載來源與上傳輸出
type Transferer interface {
	Download(ctx context.Context, key string, area *storage.WorkArea) error
	UploadOutputs(ctx context.Context, storageKey string, manifest *domain.OutputManifest) ([]domain.UploadResult, error)
}

// ProcessorConfig worker 設定
type ProcessorConfig struct {
	WorkDir              string
	MaxRetries           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// Processor 處理單一轉碼工作: processing -> download -> probe/encode -> upload -> completed / failed
type Processor struct {
	repo     repository.VideoRepo
	transfer Transferer
	encoder  Encoder
	notifier StatusNotifier
	cfg      ProcessorConfig

	now     func() time.Time
	newArea func(baseDir, ext string) (*storage.WorkArea, error)
}

// NewProcessor create processor
func NewProcessor(repo repository.VideoRepo, transfer Transferer, encoder Encoder, notifier StatusNotifier, cfg ProcessorConfig) *Processor {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "./tmp"
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 5 * time.Second
	}
	if cfg.RetryMaxInterval < cfg.RetryInitialInterval {
		cfg.RetryMaxInterval = cfg.RetryInitialInterval
	}
	return &Processor{
		repo:     repo,
		transfer: transfer,
		encoder:  encoder,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		newArea:  storage.NewWorkArea,
	}
}

// Process 回傳 nil 時 queue ack; 回傳 error 時 queue nack 且不重送.
// 影片已是終態時直接 ack.
func (p *Processor) Process(ctx context.Context, job domain.EncodeJob) error {
	start := time.Now()
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	log := logger.Log.With(zap.String("video_id", job.VideoID), zap.String("job_id", job.JobID), zap.Int("attempt", job.Attempt))

	video, err := p.repo.FindVideo(ctx, job.VideoID)
	if err != nil {
		log.Error("load video failed", zap.Error(err))
		return fmt.Errorf("load video[%s]: %w", job.VideoID, err)
	}
	if video.Status.IsTerminal() {
		log.Info("video already settled, skip", zap.String("status", string(video.Status)))
		metrics.JobsTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		return nil
	}

	if err := p.setStatus(ctx, job, domain.VideoProcessing, domain.MessageProcessing); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Info("video settled concurrently, skip")
			metrics.JobsTotal.WithLabelValues(metrics.ResultSkipped).Inc()
			return nil
		}
		log.Error("set processing failed", zap.Error(err))
		return err
	}

	defer func() { metrics.JobDuration.Observe(time.Since(start).Seconds()) }()
	runErr := p.runWithRetry(ctx, job, log)

	if runErr != nil {
		msg := domain.FailureMessage(runErr)
		log.Error("video processing failed", zap.String("message", msg), zap.Error(runErr))
		metrics.JobsTotal.WithLabelValues(metrics.ResultFailed).Inc()
		if err := p.setStatus(ctx, job, domain.VideoFailed, msg); err != nil {
			log.Error("set failed status failed", zap.Error(err))
			return errors.Join(runErr, err)
		}
		return runErr
	}

	if err := p.setStatus(ctx, job, domain.VideoCompleted, domain.MessageCompleted); err != nil {
		log.Error("set completed status failed", zap.Error(err))
		metrics.JobsTotal.WithLabelValues(metrics.ResultFailed).Inc()
		return err
	}
	metrics.JobsTotal.WithLabelValues(metrics.ResultCompleted).Inc()
	log.Info("video processed", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// runWithRetry 在同一個 slot 內重試, probe 失敗視為永久錯誤
func (p *Processor) runWithRetry(ctx context.Context, job domain.EncodeJob, log *logger.LogInfo) error {
	if p.cfg.MaxRetries <= 0 {
		return p.runOnce(ctx, job)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.cfg.RetryInitialInterval
	eb.MaxInterval = p.cfg.RetryMaxInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.cfg.MaxRetries)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := p.runOnce(ctx, job)
		if errors.Is(err, domain.ErrProbe) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("job attempt failed, retrying",
			zap.Int("try", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	return backoff.RetryNotify(op, b, notify)
}

func (p *Processor) runOnce(ctx context.Context, job domain.EncodeJob) error {
	area, err := p.newArea(p.cfg.WorkDir, path.Ext(job.StorageKey))
	if err != nil {
		return domain.NewStageError(domain.StageDownload, "Failed to prepare work area", err)
	}
	defer func() {
		if err := area.Cleanup(); err != nil {
			logger.Log.Warn("cleanup work area failed", zap.String("dir", area.Dir), zap.Error(err))
		}
	}()

	if err := p.transfer.Download(ctx, job.StorageKey, area); err != nil {
		return err
	}

	manifest, err := p.encoder.Encode(ctx, area.SourcePath, area.OutputDir)
	if err != nil {
		return err
	}

	if _, err := p.transfer.UploadOutputs(ctx, job.StorageKey, manifest); err != nil {
		return err
	}
	return nil
}

func (p *Processor) setStatus(ctx context.Context, job domain.EncodeJob, status domain.VideoStatus, message string) error {
	if err := p.repo.UpdateVideoStatus(ctx, job.VideoID, status, message); err != nil {
		return err
	}
	p.notifier.Notify(ctx, domain.VideoStatusEvent{
		VideoID:   job.VideoID,
		JobID:     job.JobID,
		Status:    status,
		Message:   message,
		Timestamp: p.now(),
	})
	return nil
}
