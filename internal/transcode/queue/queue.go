// Package queue delivers encode jobs between the upload api and the worker.
// Both drivers are at-least-once: a job is acknowledged only after the
// handler returns, and a handler error is never retried by the broker.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/config"
)

// 支援的 queue driver
const (
	DriverRabbitMQ = "rabbitmq"
	DriverAsynq    = "asynq"
)

// Publisher 送出轉碼工作
type Publisher interface {
	Enqueue(ctx context.Context, job domain.EncodeJob) (string, error)
	Close() error
}

// Handler 處理單一工作. 回傳後 source 才 ack / nack
type Handler func(ctx context.Context, job domain.EncodeJob) error

// JobSource 拉取工作並以最多 concurrency 個並行呼叫 handler
type JobSource interface {
	Start(ctx context.Context, concurrency int, handler Handler) error
	// Stop 停止拉取並等待進行中的 handler, 以 ctx 為上限
	Stop(ctx context.Context) error
	// Done 在 source 不再拉取工作時關閉, 包含 Stop 與 broker 端斷線
	Done() <-chan struct{}
	// Err Done 關閉後回傳原因, 正常 Stop 為 nil
	Err() error
}

// ErrSourceClosed broker 端關閉了 consumer, source 不會再收到工作
var ErrSourceClosed = errors.New("job source closed unexpectedly")

// stopSignal 記錄 source 結束, 只有第一次 finish 生效
type stopSignal struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newStopSignal() *stopSignal {
	return &stopSignal{done: make(chan struct{})}
}

func (s *stopSignal) finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Done closed when the source stops pulling jobs
func (s *stopSignal) Done() <-chan struct{} {
	return s.done
}

// Err reason of the stop, nil before Done or after a normal Stop
func (s *stopSignal) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// NewPublisher 依設定建立 publisher
func NewPublisher(cfg config.QueueConfig) (Publisher, error) {
	switch cfg.Driver {
	case DriverRabbitMQ, "":
		conn, ch, err := DialRabbitMQ(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		p, err := NewRabbitPublisher(ch, queueName(cfg))
		if err != nil {
			conn.Close()
			return nil, err
		}
		p.conn = conn
		return p, nil
	case DriverAsynq:
		return NewAsynqPublisher(cfg.Asynq, queueName(cfg)), nil
	}
	return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
}

// NewJobSource 依設定建立 job source
func NewJobSource(cfg config.QueueConfig) (JobSource, error) {
	switch cfg.Driver {
	case DriverRabbitMQ, "":
		conn, ch, err := DialRabbitMQ(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		s := NewRabbitSource(ch, queueName(cfg))
		s.conn = conn
		return s, nil
	case DriverAsynq:
		return NewAsynqSource(cfg.Asynq, queueName(cfg)), nil
	}
	return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
}

func queueName(cfg config.QueueConfig) string {
	if cfg.Name == "" {
		return domain.QueueName
	}
	return cfg.Name
}
