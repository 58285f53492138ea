package app

import (
	"context"
	"sync"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/internal/transcode/queue"
	errprocess "transcoding_service/pkg/err"
	"transcoding_service/pkg/logger"

	"go.uber.org/zap"
)

// JobProcessor 處理單一工作
type JobProcessor interface {
	Process(ctx context.Context, job domain.EncodeJob) error
}

// Pipeline 由 JobSource 拉取工作並交給 processor, 每個 slot 一次處理一個工作
type Pipeline struct {
	source      queue.JobSource
	processor   JobProcessor
	concurrency int

	mu      sync.Mutex
	running bool
}

// NewPipeline create pipeline
func NewPipeline(source queue.JobSource, processor JobProcessor, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{source: source, processor: processor, concurrency: concurrency}
}

// Start 開始拉取工作 (non-blocking)
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errprocess.Set("pipeline already started")
	}
	if err := p.source.Start(ctx, p.concurrency, p.processor.Process); err != nil {
		return err
	}
	p.running = true
	logger.Log.Info("pipeline started", zap.Int("concurrency", p.concurrency))
	return nil
}

// Done source 不再拉取工作時關閉
func (p *Pipeline) Done() <-chan struct{} {
	return p.source.Done()
}

// Err source 結束的原因, broker 斷線時為 queue.ErrSourceClosed
func (p *Pipeline) Err() error {
	return p.source.Err()
}

// Stop 停止拉取並等待進行中的工作, ctx 到期時回傳錯誤
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	p.running = false
	if err := p.source.Stop(ctx); err != nil {
		return err
	}
	logger.Log.Info("pipeline stopped")
	return nil
}
