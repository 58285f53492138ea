package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/logger"
	"transcoding_service/pkg/metrics"

	"go.uber.org/zap"
)

// RecoverStale 把 updated_at 早於 olderThan 的 processing 影片標為 failed, 回傳標記數量.
// worker 啟動時在拉取工作前呼叫; olderThan <= 0 時不處理.
func (p *Processor) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	videos, err := p.repo.FindByStatus(ctx, domain.VideoProcessing)
	if err != nil {
		return 0, fmt.Errorf("find processing videos: %w", err)
	}

	now := p.now()
	cutoff := now.Add(-olderThan)
	recovered := 0
	for i := range videos {
		v := &videos[i]
		if !v.UpdatedAt.Before(cutoff) {
			continue
		}
		log := logger.Log.With(zap.String("video_id", v.ID), zap.Time("updated_at", v.UpdatedAt))
		if err := v.Transition(domain.VideoFailed, domain.MessageInterrupted, now); err != nil {
			log.Warn("skip stale video", zap.Error(err))
			continue
		}

		err := p.setStatus(ctx, domain.EncodeJob{VideoID: v.ID}, v.Status, v.Message)
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Info("stale video settled concurrently, skip")
			continue
		}
		if err != nil {
			return recovered, fmt.Errorf("fail stale video[%s]: %w", v.ID, err)
		}
		metrics.JobsTotal.WithLabelValues(metrics.ResultFailed).Inc()
		log.Warn("stale processing video marked failed", zap.Duration("older_than", olderThan))
		recovered++
	}
	return recovered, nil
}
