package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/internal/transcode/queue"
	"transcoding_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcProcessor func(ctx context.Context, job domain.EncodeJob) error

func (f funcProcessor) Process(ctx context.Context, job domain.EncodeJob) error {
	return f(ctx, job)
}

func TestPipeline(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	t.Run("start 後 job 交給 processor", func(t *testing.T) {
		src := &fakeSource{}
		var got []string
		p := NewPipeline(src, funcProcessor(func(_ context.Context, job domain.EncodeJob) error {
			got = append(got, job.VideoID)
			return nil
		}), 3)

		require.NoError(t, p.Start(ctx))
		assert.Equal(t, 3, src.concurrency)

		assert.NoError(t, src.deliver(ctx, domain.EncodeJob{VideoID: "a"}))
		assert.NoError(t, src.deliver(ctx, domain.EncodeJob{VideoID: "b"}))
		assert.Equal(t, []string{"a", "b"}, got)

		require.NoError(t, p.Stop(ctx))
		assert.True(t, src.stopped)
	})

	t.Run("processor 錯誤回傳給 source", func(t *testing.T) {
		src := &fakeSource{}
		boom := errors.New("boom")
		p := NewPipeline(src, funcProcessor(func(context.Context, domain.EncodeJob) error { return boom }), 1)
		require.NoError(t, p.Start(ctx))
		assert.ErrorIs(t, src.deliver(ctx, domain.EncodeJob{VideoID: "a"}), boom)
	})

	t.Run("重複 start", func(t *testing.T) {
		p := NewPipeline(&fakeSource{}, funcProcessor(func(context.Context, domain.EncodeJob) error { return nil }), 0)
		require.NoError(t, p.Start(ctx))
		assert.Error(t, p.Start(ctx))
		assert.Equal(t, 1, p.concurrency)
	})

	t.Run("source 啟動失敗", func(t *testing.T) {
		src := &fakeSource{startErr: errors.New("dial")}
		p := NewPipeline(src, funcProcessor(func(context.Context, domain.EncodeJob) error { return nil }), 1)
		assert.Error(t, p.Start(ctx))
		assert.NoError(t, p.Stop(ctx))
		assert.False(t, src.stopped)
	})

	t.Run("source 斷線時 Done 關閉", func(t *testing.T) {
		src := &fakeSource{}
		p := NewPipeline(src, funcProcessor(func(context.Context, domain.EncodeJob) error { return nil }), 1)
		require.NoError(t, p.Start(ctx))

		select {
		case <-p.Done():
			t.Fatal("source 尚未結束")
		default:
		}

		src.fail(queue.ErrSourceClosed)
		select {
		case <-p.Done():
		case <-time.After(time.Second):
			t.Fatal("Done 沒有關閉")
		}
		assert.ErrorIs(t, p.Err(), queue.ErrSourceClosed)
	})
}
