package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/config"
	"transcoding_service/pkg/logger"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// asynq 未設定 timeout 時預設 30 分鐘, 長影片轉碼需要更久
const asynqTaskTimeout = 6 * time.Hour

// encodeTaskMaxRetry handler 錯誤一律 SkipRetry 直接 archive,
// retry 次數只用在 worker crash 後 lease 過期的重新派送
const encodeTaskMaxRetry = 1

func redisOpt(cfg config.AsynqConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

// EncodeTaskOptions video:encode task 的 asynq options
func EncodeTaskOptions(queue string) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(encodeTaskMaxRetry),
		asynq.Timeout(asynqTaskTimeout),
	}
}

// NewEncodeTask 建立 video:encode task
func NewEncodeTask(job domain.EncodeJob, queue string) (*asynq.Task, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	payload, err := job.Marshal()
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(domain.TaskEncodeVideo, payload, EncodeTaskOptions(queue)...), nil
}

// TaskEnqueuer *asynq.Client
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqPublisher 以 asynq (redis) 送出工作
type AsynqPublisher struct {
	client TaskEnqueuer
	queue  string
}

// NewAsynqPublisher create asynq publisher
func NewAsynqPublisher(cfg config.AsynqConfig, queue string) *AsynqPublisher {
	return NewAsynqPublisherWithClient(asynq.NewClient(redisOpt(cfg)), queue)
}

// NewAsynqPublisherWithClient create asynq publisher with given client
func NewAsynqPublisherWithClient(client TaskEnqueuer, queue string) *AsynqPublisher {
	return &AsynqPublisher{client: client, queue: queue}
}

// Enqueue 回傳 asynq task id
func (p *AsynqPublisher) Enqueue(ctx context.Context, job domain.EncodeJob) (string, error) {
	task, err := NewEncodeTask(job, p.queue)
	if err != nil {
		return "", err
	}
	info, err := p.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue job video[%s]: %w", job.VideoID, err)
	}
	return info.ID, nil
}

// Close client
func (p *AsynqPublisher) Close() error {
	return p.client.Close()
}

// AsynqSource asynq server, concurrency 即 worker slot 數
type AsynqSource struct {
	cfg   config.AsynqConfig
	queue string

	mu  sync.Mutex
	srv *asynq.Server
	*stopSignal
}

// NewAsynqSource create asynq job source. asynq server 自行重連 redis, Done 只在 Stop 後關閉
func NewAsynqSource(cfg config.AsynqConfig, queue string) *AsynqSource {
	return &AsynqSource{cfg: cfg, queue: queue, stopSignal: newStopSignal()}
}

// HandleTask 解析 task 並呼叫 handler, 所有錯誤都帶 SkipRetry
func HandleTask(ctx context.Context, t *asynq.Task, handler Handler) error {
	job, err := domain.UnmarshalEncodeJob(t.Payload())
	if err != nil {
		logger.Log.Error("malformed task payload", zap.String("type", t.Type()), zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if id, ok := asynq.GetTaskID(ctx); ok {
		job.JobID = id
	}
	retried, _ := asynq.GetRetryCount(ctx)
	job.Attempt = retried + 1

	// in-flight 工作不跟著 shutdown 取消
	if err := handler(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// Start 啟動 asynq server (non-blocking)
func (s *AsynqSource) Start(_ context.Context, concurrency int, handler Handler) error {
	if concurrency < 1 {
		concurrency = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return fmt.Errorf("asynq source already started")
	}

	srv := asynq.NewServer(redisOpt(s.cfg), asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{s.queue: 1},
		ShutdownTimeout: asynqTaskTimeout,
		Logger:          asynqLogger{},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(domain.TaskEncodeVideo, func(ctx context.Context, t *asynq.Task) error {
		return HandleTask(ctx, t, handler)
	})

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	s.srv = srv
	logger.Log.Info("asynq server started", zap.String("queue", s.queue), zap.Int("concurrency", concurrency))
	return nil
}

// Stop 停止拉取並等待進行中的 task
func (s *AsynqSource) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	defer s.finish(nil)
	if srv == nil {
		return nil
	}

	srv.Stop()
	done := make(chan struct{})
	go func() {
		srv.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("asynq source stop: %w", ctx.Err())
	}
}

// asynqLogger 把 asynq 的 log 轉到 zap
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { logger.Log.Debug(fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...interface{})  { logger.Log.Info(fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...interface{})  { logger.Log.Warn(fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...interface{}) { logger.Log.Error(fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...interface{}) { logger.Log.Fatal(fmt.Sprint(args...)) }
