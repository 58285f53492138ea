package app

import (
	"context"
	"encoding/json"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/config"
	"transcoding_service/pkg/database"
	"transcoding_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// StatusNotifier 狀態變更通知. 失敗只記錄 log, 不影響工作結果
type StatusNotifier interface {
	Notify(ctx context.Context, event domain.VideoStatusEvent)
	Close() error
}

// KafkaWriter *kafka.Writer
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier 以 video id 為 key 發佈到 kafka, 同一影片的事件保持順序
type KafkaNotifier struct {
	writer KafkaWriter
}

// NewKafkaNotifier create kafka notifier
func NewKafkaNotifier(writer KafkaWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

// Notify publish status event
func (k *KafkaNotifier) Notify(ctx context.Context, event domain.VideoStatusEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("marshal status event failed", zap.String("video_id", event.VideoID), zap.Error(err))
		return
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.VideoID),
		Value: value,
		Time:  event.Timestamp,
	})
	if err != nil {
		logger.Log.Warn("publish status event failed",
			zap.String("video_id", event.VideoID),
			zap.String("status", string(event.Status)),
			zap.Error(err))
	}
}

// Close writer
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

// NewStatusNotifier 設定 brokers 時使用 kafka, 否則 NopNotifier
func NewStatusNotifier(cfg config.KafkaConfig) (StatusNotifier, error) {
	if len(cfg.Brokers) == 0 {
		logger.Log.Info("kafka brokers not configured, status events disabled")
		return NopNotifier{}, nil
	}
	w, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
		Brokers:       cfg.Brokers,
		Topic:         cfg.Topic,
		RetryCount:    cfg.RetryCount,
		RetryInterval: database.SecondsOf(cfg.RetryInterval),
	})
	if err != nil {
		return nil, err
	}
	return NewKafkaNotifier(w), nil
}

// NopNotifier 未設定 kafka 時使用
type NopNotifier struct{}

// Notify do nothing
func (NopNotifier) Notify(context.Context, domain.VideoStatusEvent) {}

// Close do nothing
func (NopNotifier) Close() error { return nil }
