package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/config"
	"transcoding_service/pkg/logger"

	"github.com/hibiken/asynq"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRabbitChannel 是 RabbitMQ channel 的 Mock
type MockRabbitChannel struct {
	mock.Mock
	deliveries chan amqp.Delivery
	closeOnce  sync.Once
}

// closeDeliveries 模擬 amqp 關閉 consumer 的 delivery channel
func (m *MockRabbitChannel) closeDeliveries() {
	m.closeOnce.Do(func() { close(m.deliveries) })
}

func (m *MockRabbitChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	a := m.Called(name, durable, autoDelete, exclusive, noWait, args)
	return amqp.Queue{Name: name}, a.Error(0)
}

func (m *MockRabbitChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	return m.Called(prefetchCount, prefetchSize, global).Error(0)
}

func (m *MockRabbitChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, mandatory, immediate, msg).Error(0)
}

func (m *MockRabbitChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	a := m.Called(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
	return m.deliveries, a.Error(0)
}

func (m *MockRabbitChannel) Cancel(consumer string, noWait bool) error {
	m.closeDeliveries()
	return m.Called(consumer, noWait).Error(0)
}

func (m *MockRabbitChannel) Close() error {
	return m.Called().Error(0)
}

// ackRecorder amqp.Acknowledger, 記錄 ack / nack
type ackRecorder struct {
	mu    sync.Mutex
	acks  []uint64
	nacks map[uint64]bool // tag -> requeue
}

func newAckRecorder() *ackRecorder {
	return &ackRecorder{nacks: map[uint64]bool{}}
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks[tag] = requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *ackRecorder) settled() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks) + len(a.nacks)
}

func TestRabbitPublisher(t *testing.T) {
	logger.SetNewNop()
	ch := new(MockRabbitChannel)
	ch.On("QueueDeclare", "transcode", true, false, false, false, amqp.Table(nil)).Return(nil).Once()
	ch.On("Publish", "", "transcode", false, false, mock.MatchedBy(func(p amqp.Publishing) bool {
		return p.ContentType == "application/json" &&
			p.DeliveryMode == amqp.Persistent &&
			string(p.Body) == `{"video_id":"v1","storage_key":"videos/a.mp4"}`
	})).Return(nil).Once()

	p, err := NewRabbitPublisher(ch, "transcode")
	require.NoError(t, err)

	id, err := p.Enqueue(context.Background(), domain.EncodeJob{VideoID: "v1", StorageKey: "videos/a.mp4"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = p.Enqueue(context.Background(), domain.EncodeJob{VideoID: "v1"})
	assert.Error(t, err)
	ch.AssertExpectations(t)
}

func TestRabbitSource(t *testing.T) {
	logger.SetNewNop()

	ch := &MockRabbitChannel{deliveries: make(chan amqp.Delivery, 4)}
	ch.On("QueueDeclare", "transcode", true, false, false, false, amqp.Table(nil)).Return(nil)
	ch.On("Qos", 2, 0, false).Return(nil).Once()
	ch.On("Consume", "transcode", mock.Anything, false, false, false, false, amqp.Table(nil)).Return(nil).Once()
	ch.On("Cancel", mock.Anything, false).Return(nil).Once()
	ch.On("Close").Return(nil).Once()

	acks := newAckRecorder()
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, MessageId: "m1", Body: []byte(`{"video_id":"ok","storage_key":"videos/a.mp4"}`)}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, MessageId: "m2", Body: []byte(`{"video_id":"bad","storage_key":"videos/b.mp4"}`), Redelivered: true}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 3, MessageId: "m3", Body: []byte(`garbage`)}

	var mu sync.Mutex
	seen := map[string]domain.EncodeJob{}
	handler := func(ctx context.Context, job domain.EncodeJob) error {
		mu.Lock()
		seen[job.VideoID] = job
		mu.Unlock()
		if job.VideoID == "bad" {
			return errors.New("encode failed")
		}
		return nil
	}

	src := NewRabbitSource(ch, "transcode")
	require.NoError(t, src.Start(context.Background(), 2, handler))

	assert.Eventually(t, func() bool { return acks.settled() == 3 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, src.Stop(ctx))

	assert.Equal(t, []uint64{1}, acks.acks)
	assert.Equal(t, map[uint64]bool{2: false, 3: false}, acks.nacks)
	assert.Equal(t, "m1", seen["ok"].JobID)
	assert.Equal(t, 1, seen["ok"].Attempt)
	assert.Equal(t, 2, seen["bad"].Attempt)
	ch.AssertExpectations(t)

	select {
	case <-src.Done():
	default:
		t.Fatal("Done 應在 Stop 後關閉")
	}
	assert.NoError(t, src.Err())
}

func TestRabbitSourceDeliveriesClosed(t *testing.T) {
	logger.SetNewNop()

	ch := &MockRabbitChannel{deliveries: make(chan amqp.Delivery, 1)}
	ch.On("QueueDeclare", "transcode", true, false, false, false, amqp.Table(nil)).Return(nil)
	ch.On("Qos", 1, 0, false).Return(nil).Once()
	ch.On("Consume", "transcode", mock.Anything, false, false, false, false, amqp.Table(nil)).Return(nil).Once()
	ch.On("Cancel", mock.Anything, false).Return(errors.New("channel/connection is not open"))
	ch.On("Close").Return(amqp.ErrClosed)

	src := NewRabbitSource(ch, "transcode")
	require.NoError(t, src.Start(context.Background(), 1, func(context.Context, domain.EncodeJob) error { return nil }))
	assert.NoError(t, src.Err())

	t.Run("broker 關閉 channel 時 Done 關閉並回傳錯誤", func(t *testing.T) {
		ch.closeDeliveries()

		select {
		case <-src.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("deliveries 關閉後 Done 沒有關閉")
		}
		assert.ErrorIs(t, src.Err(), ErrSourceClosed)
	})

	t.Run("之後 Stop 不覆蓋原因", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, src.Stop(ctx))
		assert.ErrorIs(t, src.Err(), ErrSourceClosed)
	})
}

func TestRabbitSourceStopRequeues(t *testing.T) {
	logger.SetNewNop()
	acks := newAckRecorder()
	src := NewRabbitSource(&MockRabbitChannel{}, "transcode")
	src.stopping.Store(true)

	called := false
	src.handle(context.Background(), 0, amqp.Delivery{Acknowledger: acks, DeliveryTag: 7, Body: []byte(`{}`)},
		func(context.Context, domain.EncodeJob) error { called = true; return nil })

	assert.False(t, called)
	assert.Equal(t, map[uint64]bool{7: true}, acks.nacks)
}

type fakeEnqueuer struct {
	task *asynq.Task
	err  error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.task = task
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: "transcode"}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestAsynqPublisher(t *testing.T) {
	fe := &fakeEnqueuer{}
	p := NewAsynqPublisherWithClient(fe, "transcode")

	id, err := p.Enqueue(context.Background(), domain.EncodeJob{VideoID: "v1", StorageKey: "videos/a.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)
	assert.Equal(t, domain.TaskEncodeVideo, fe.task.Type())
	assert.JSONEq(t, `{"video_id":"v1","storage_key":"videos/a.mp4"}`, string(fe.task.Payload()))

	fe.err = errors.New("redis down")
	_, err = p.Enqueue(context.Background(), domain.EncodeJob{VideoID: "v1", StorageKey: "k"})
	assert.Error(t, err)
}

func TestEncodeTaskOptions(t *testing.T) {
	got := map[asynq.OptionType]interface{}{}
	for _, opt := range EncodeTaskOptions("transcode") {
		got[opt.Type()] = opt.Value()
	}

	t.Run("worker crash 後 lease 過期可以重新派送一次", func(t *testing.T) {
		assert.Equal(t, 1, got[asynq.MaxRetryOpt])
	})
	t.Run("queue 與 timeout", func(t *testing.T) {
		assert.Equal(t, "transcode", got[asynq.QueueOpt])
		assert.Equal(t, 6*time.Hour, got[asynq.TimeoutOpt])
	})
}

func TestAsynqSourceStopWithoutStart(t *testing.T) {
	src := NewAsynqSource(config.AsynqConfig{}, "transcode")
	assert.NoError(t, src.Stop(context.Background()))
	select {
	case <-src.Done():
	default:
		t.Fatal("Done 應在 Stop 後關閉")
	}
	assert.NoError(t, src.Err())
}

func TestHandleTask(t *testing.T) {
	logger.SetNewNop()
	ok := func(context.Context, domain.EncodeJob) error { return nil }
	fail := func(context.Context, domain.EncodeJob) error { return errors.New("FFmpeg failed") }

	task := asynq.NewTask(domain.TaskEncodeVideo, []byte(`{"video_id":"v1","storage_key":"videos/a.mp4"}`))
	assert.NoError(t, HandleTask(context.Background(), task, ok))

	err := HandleTask(context.Background(), task, fail)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	bad := asynq.NewTask(domain.TaskEncodeVideo, []byte(`{`))
	assert.ErrorIs(t, HandleTask(context.Background(), bad, ok), asynq.SkipRetry)

	t.Run("handler ctx 不隨 shutdown 取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := HandleTask(ctx, task, func(ctx context.Context, _ domain.EncodeJob) error { return ctx.Err() })
		assert.NoError(t, err)
	})
}

func TestFactoryUnknownDriver(t *testing.T) {
	_, err := NewPublisher(config.QueueConfig{Driver: "sqs"})
	assert.Error(t, err)
	_, err = NewJobSource(config.QueueConfig{Driver: "sqs"})
	assert.Error(t, err)
	assert.Equal(t, "transcode", queueName(config.QueueConfig{}))
}
