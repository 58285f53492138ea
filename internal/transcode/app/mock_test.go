package app

import (
	"context"
	"io"
	"sync"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/internal/transcode/queue"
	"transcoding_service/internal/transcode/storage"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
)

// MockVideoRepo 是 VideoRepo 的 Mock
type MockVideoRepo struct {
	mock.Mock
}

func (m *MockVideoRepo) AutoMigrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockVideoRepo) InsertVideo(ctx context.Context, video *domain.Video) error {
	return m.Called(ctx, video).Error(0)
}

func (m *MockVideoRepo) FindVideo(ctx context.Context, id string) (*domain.Video, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*domain.Video)
	return v, args.Error(1)
}

func (m *MockVideoRepo) UpdateVideoStatus(ctx context.Context, id string, status domain.VideoStatus, message string) error {
	return m.Called(ctx, id, status, message).Error(0)
}

func (m *MockVideoRepo) FindByStatus(ctx context.Context, status domain.VideoStatus) ([]domain.Video, error) {
	args := m.Called(ctx, status)
	v, _ := args.Get(0).([]domain.Video)
	return v, args.Error(1)
}

// MockTransferer 是 Transferer 的 Mock
type MockTransferer struct {
	mock.Mock
}

func (m *MockTransferer) Download(ctx context.Context, key string, area *storage.WorkArea) error {
	return m.Called(ctx, key, area).Error(0)
}

func (m *MockTransferer) UploadOutputs(ctx context.Context, storageKey string, manifest *domain.OutputManifest) ([]domain.UploadResult, error) {
	args := m.Called(ctx, storageKey, manifest)
	res, _ := args.Get(0).([]domain.UploadResult)
	return res, args.Error(1)
}

// MockEncoder 是 Encoder 的 Mock
type MockEncoder struct {
	mock.Mock
}

func (m *MockEncoder) Encode(ctx context.Context, sourcePath, outputDir string) (*domain.OutputManifest, error) {
	args := m.Called(ctx, sourcePath, outputDir)
	res, _ := args.Get(0).(*domain.OutputManifest)
	return res, args.Error(1)
}

// MockObjectStore 是 ObjectStore 的 Mock
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (domain.UploadResult, error) {
	args := m.Called(ctx, key, r, size, contentType)
	return args.Get(0).(domain.UploadResult), args.Error(1)
}

func (m *MockObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

// MockPublisher 是 queue.Publisher 的 Mock
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Enqueue(ctx context.Context, job domain.EncodeJob) (string, error) {
	args := m.Called(ctx, job)
	return args.String(0), args.Error(1)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

// recordNotifier 記錄收到的事件
type recordNotifier struct {
	mu     sync.Mutex
	events []domain.VideoStatusEvent
}

func (r *recordNotifier) Notify(_ context.Context, event domain.VideoStatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordNotifier) Close() error { return nil }

func (r *recordNotifier) statuses() []domain.VideoStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.VideoStatus, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Status)
	}
	return out
}

// fakeKafkaWriter 記錄寫入的 message
type fakeKafkaWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}

// fakeSource 直接把 job 交給 handler, 模擬 queue
type fakeSource struct {
	mu          sync.Mutex
	handler     queue.Handler
	concurrency int
	startErr    error
	stopped     bool

	doneOnce sync.Once
	done     chan struct{}
	err      error
}

func (f *fakeSource) doneCh() chan struct{} {
	f.doneOnce.Do(func() { f.done = make(chan struct{}) })
	return f.done
}

func (f *fakeSource) Done() <-chan struct{} {
	return f.doneCh()
}

func (f *fakeSource) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// fail 模擬 broker 端斷線
func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	close(f.doneCh())
}

func (f *fakeSource) Start(_ context.Context, concurrency int, handler queue.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.handler = handler
	f.concurrency = concurrency
	return nil
}

func (f *fakeSource) Stop(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSource) deliver(ctx context.Context, job domain.EncodeJob) error {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	return h(ctx, job)
}
