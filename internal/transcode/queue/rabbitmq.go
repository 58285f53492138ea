package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/config"
	"transcoding_service/pkg/database"
	"transcoding_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// DialRabbitMQ 連線並取得 channel
func DialRabbitMQ(cfg config.RabbitMQConfig) (*amqp.Connection, *amqp.Channel, error) {
	interval := database.SecondsOf(cfg.RetryInterval)
	conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
		ConnectStr:    database.RabbitMQURL(cfg.User, cfg.Password, cfg.IP, cfg.Port),
		RetryCount:    max(cfg.RetryCount, 1),
		RetryInterval: interval,
	})
	if err != nil {
		return nil, nil, err
	}
	ch, err := database.GetRabbitMQChannelWithRetry(conn, max(cfg.RetryCount, 1), interval)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func declareQueue(ch database.RabbitChannel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // queue name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

// RabbitPublisher 以 persistent message 送出工作
type RabbitPublisher struct {
	ch    database.RabbitChannel
	queue string
	mu    sync.Mutex
	conn  *amqp.Connection
}

// NewRabbitPublisher 宣告 durable queue 並建立 publisher
func NewRabbitPublisher(ch database.RabbitChannel, queue string) (*RabbitPublisher, error) {
	if err := declareQueue(ch, queue); err != nil {
		return nil, err
	}
	return &RabbitPublisher{ch: ch, queue: queue}, nil
}

// Enqueue 回傳 message id 作為 job id
func (p *RabbitPublisher) Enqueue(_ context.Context, job domain.EncodeJob) (string, error) {
	if err := job.Validate(); err != nil {
		return "", err
	}
	body, err := job.Marshal()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.Publish(
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    id,
			Type:         domain.TaskEncodeVideo,
			Body:         body,
		},
	)
	if err != nil {
		return "", fmt.Errorf("publish job video[%s]: %w", job.VideoID, err)
	}
	return id, nil
}

// Close channel and connection
func (p *RabbitPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// RabbitSource 手動 ack, prefetch = concurrency
type RabbitSource struct {
	ch    database.RabbitChannel
	queue string
	tag   string
	conn  *amqp.Connection

	wg       sync.WaitGroup
	stopping atomic.Bool
	started  atomic.Bool
	*stopSignal
}

// NewRabbitSource create rabbitmq job source
func NewRabbitSource(ch database.RabbitChannel, queue string) *RabbitSource {
	return &RabbitSource{
		ch:         ch,
		queue:      queue,
		tag:        "transcode-worker-" + uuid.NewString()[:8],
		stopSignal: newStopSignal(),
	}
}

// Start 宣告 queue, 設定 Qos 並啟動 concurrency 個 slot
func (s *RabbitSource) Start(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency < 1 {
		concurrency = 1
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("rabbitmq source already started")
	}
	if err := declareQueue(s.ch, s.queue); err != nil {
		return err
	}
	if err := s.ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := s.ch.Consume(
		s.queue, // queue
		s.tag,   // consumer tag
		false,   // autoAck 為 false, 使用手動確認
		false,   // exclusive
		false,   // noLocal
		false,   // noWait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", s.queue, err)
	}

	logger.Log.Info("rabbitmq consumer started", zap.String("queue", s.queue), zap.Int("concurrency", concurrency))

	// in-flight 工作不跟著 stop 取消
	jobCtx := context.WithoutCancel(ctx)
	for i := 0; i < concurrency; i++ {
		s.wg.Add(1)
		go func(slot int) {
			defer s.wg.Done()
			for d := range deliveries {
				s.handle(jobCtx, slot, d, handler)
			}
		}(i)
	}

	// deliveries 在 channel / connection 關閉時也會被 close (broker 重啟, 網路中斷, consumer_timeout)
	go func() {
		s.wg.Wait()
		if s.stopping.Load() {
			s.finish(nil)
			return
		}
		logger.Log.Error("rabbitmq deliveries closed", zap.String("queue", s.queue), zap.String("consumer", s.tag))
		s.finish(fmt.Errorf("rabbitmq consumer %s: %w", s.tag, ErrSourceClosed))
	}()
	return nil
}

func (s *RabbitSource) handle(ctx context.Context, slot int, d amqp.Delivery, handler Handler) {
	// stop 之後才收到的 prefetch 訊息放回 queue
	if s.stopping.Load() {
		if err := d.Nack(false, true); err != nil {
			logger.Log.Warn("requeue on shutdown failed", zap.Error(err))
		}
		return
	}

	job, err := domain.UnmarshalEncodeJob(d.Body)
	if err != nil {
		logger.Log.Error("malformed job payload", zap.String("message_id", d.MessageId), zap.Error(err))
		if err := d.Nack(false, false); err != nil {
			logger.Log.Warn("nack failed", zap.Error(err))
		}
		return
	}
	job.JobID = d.MessageId
	job.Attempt = 1
	if d.Redelivered {
		job.Attempt = 2
	}

	if err := handler(ctx, job); err != nil {
		logger.Log.Warn("job failed", zap.Int("slot", slot), zap.String("video_id", job.VideoID), zap.Error(err))
		if err := d.Nack(false, false); err != nil {
			logger.Log.Warn("nack failed", zap.Error(err))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		logger.Log.Warn("ack failed", zap.String("video_id", job.VideoID), zap.Error(err))
	}
}

// Stop cancel consumer 並等待所有 slot 結束
func (s *RabbitSource) Stop(ctx context.Context) error {
	s.stopping.Store(true)
	if s.started.Load() {
		if err := s.ch.Cancel(s.tag, false); err != nil {
			logger.Log.Warn("cancel consumer failed", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("rabbitmq source stop: %w", ctx.Err())
	}

	if cerr := s.ch.Close(); cerr != nil && err == nil {
		logger.Log.Warn("close channel failed", zap.Error(cerr))
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.finish(nil)
	return err
}
