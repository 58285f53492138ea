package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type usecaseDeps struct {
	store     *MockObjectStore
	repo      *MockVideoRepo
	publisher *MockPublisher
	notifier  *recordNotifier
}

func newTestUseCase(cfg UploadConfig) (*transcodeUseCase, *usecaseDeps) {
	d := &usecaseDeps{
		store:     new(MockObjectStore),
		repo:      new(MockVideoRepo),
		publisher: new(MockPublisher),
		notifier:  &recordNotifier{},
	}
	uc := NewTranscodeUseCase(d.store, d.repo, d.publisher, d.notifier, cfg).(*transcodeUseCase)
	uc.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return uc, d
}

func videoReq(name, contentType, body string) domain.UploadVideoReq {
	return domain.UploadVideoReq{
		FileName:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		File:        strings.NewReader(body),
	}
}

func TestTranscodeUseCase_UploadVideo(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	cfg := UploadConfig{MaxUploadSize: 1024, AllowedExts: []string{".mp4", ".mov"}}

	t.Run("上傳成功並送出工作", func(t *testing.T) {
		uc, d := newTestUseCase(cfg)
		uc.newID = func() string { return "vid-1" }

		d.store.On("Put", ctx, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "videos/") && strings.HasSuffix(key, ".mp4")
		}), mock.Anything, int64(4), "video/mp4").Return(domain.RemoteResult("http://minio/videos/x.mp4", "videos/x.mp4"), nil)
		d.repo.On("InsertVideo", ctx, mock.MatchedBy(func(v *domain.Video) bool {
			return v.ID == "vid-1" && v.Status == domain.VideoPending && v.Name == "Clip.MP4"
		})).Return(nil)
		d.publisher.On("Enqueue", ctx, mock.MatchedBy(func(job domain.EncodeJob) bool {
			return job.VideoID == "vid-1" && strings.HasPrefix(job.StorageKey, "videos/")
		})).Return("job-1", nil)

		res, err := uc.UploadVideo(ctx, videoReq("Clip.MP4", "video/mp4", "data"))
		require.NoError(t, err)
		assert.Equal(t, "vid-1", res.VideoID)
		assert.Equal(t, domain.VideoPending, res.Status)
		assert.Equal(t, "job-1", res.JobID)
		assert.Equal(t, MessageUploaded, res.Message)
		assert.Equal(t, []domain.VideoStatus{domain.VideoPending}, d.notifier.statuses())
		d.store.AssertExpectations(t)
		d.repo.AssertExpectations(t)
		d.publisher.AssertExpectations(t)
	})

	t.Run("重複上傳得到不同 id 與 key", func(t *testing.T) {
		uc, d := newTestUseCase(cfg)
		var keys []string
		d.store.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { keys = append(keys, args.String(1)) }).
			Return(domain.UploadResult{}, nil)
		d.repo.On("InsertVideo", ctx, mock.Anything).Return(nil)
		d.publisher.On("Enqueue", ctx, mock.Anything).Return("job", nil)

		first, err := uc.UploadVideo(ctx, videoReq("a.mp4", "video/mp4", "same"))
		require.NoError(t, err)
		second, err := uc.UploadVideo(ctx, videoReq("a.mp4", "video/mp4", "same"))
		require.NoError(t, err)

		assert.NotEqual(t, first.VideoID, second.VideoID)
		require.Len(t, keys, 2)
		assert.NotEqual(t, keys[0], keys[1])
	})

	t.Run("驗證失敗", func(t *testing.T) {
		cases := map[string]domain.UploadVideoReq{
			"沒有檔案":   {FileName: "a.mp4", ContentType: "video/mp4"},
			"非影片":    videoReq("a.mp4", "image/png", "x"),
			"副檔名不允許": videoReq("a.avi", "video/x-msvideo", "x"),
			"超過大小":   {FileName: "a.mp4", ContentType: "video/mp4", Size: 2048, File: strings.NewReader("x")},
		}
		for name, req := range cases {
			t.Run(name, func(t *testing.T) {
				uc, d := newTestUseCase(cfg)
				_, err := uc.UploadVideo(ctx, req)
				assert.ErrorIs(t, err, domain.ErrValidation)
				d.store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("content type 帶參數", func(t *testing.T) {
		uc, _ := newTestUseCase(cfg)
		assert.NoError(t, uc.validate(videoReq("a.mov", "video/quicktime; codecs=avc1", "x")))
	})

	t.Run("儲存失敗不建立影片", func(t *testing.T) {
		uc, d := newTestUseCase(cfg)
		d.store.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(domain.UploadResult{}, errors.New("bucket missing"))

		_, err := uc.UploadVideo(ctx, videoReq("a.mp4", "video/mp4", "x"))
		assert.Error(t, err)
		d.repo.AssertNotCalled(t, "InsertVideo", mock.Anything, mock.Anything)
	})

	t.Run("送出工作失敗: 影片標記 failed", func(t *testing.T) {
		uc, d := newTestUseCase(cfg)
		uc.newID = func() string { return "vid-9" }
		d.store.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.UploadResult{}, nil)
		d.repo.On("InsertVideo", ctx, mock.Anything).Return(nil)
		d.publisher.On("Enqueue", ctx, mock.Anything).Return("", errors.New("broker closed"))
		d.repo.On("UpdateVideoStatus", ctx, "vid-9", domain.VideoFailed, "Failed to enqueue encoding job: broker closed").Return(nil)

		_, err := uc.UploadVideo(ctx, videoReq("a.mp4", "video/mp4", "x"))
		assert.Error(t, err)
		assert.Equal(t, []domain.VideoStatus{domain.VideoPending, domain.VideoFailed}, d.notifier.statuses())
		d.repo.AssertExpectations(t)
	})
}

func TestTranscodeUseCase_StoreOriginal(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	uc, d := newTestUseCase(UploadConfig{})

	d.store.On("Put", ctx, mock.Anything, mock.Anything, int64(1), "video/webm").Return(domain.LocalResult("videos/x.webm"), nil)

	res, err := uc.StoreOriginal(ctx, videoReq("x.webm", "video/webm", "x"))
	require.NoError(t, err)
	assert.Equal(t, domain.UploadLocal, res.Kind)
	d.repo.AssertNotCalled(t, "InsertVideo", mock.Anything, mock.Anything)
	d.publisher.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestTranscodeUseCase_GetVideoStatus(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	t.Run("存在", func(t *testing.T) {
		uc, d := newTestUseCase(UploadConfig{})
		d.repo.On("FindVideo", ctx, "vid-1").
			Return(&domain.Video{ID: "vid-1", Name: "a.mp4", Status: domain.VideoFailed, Message: "FFmpeg failed: invalid codec"}, nil)

		res, err := uc.GetVideoStatus(ctx, "vid-1")
		require.NoError(t, err)
		assert.Equal(t, domain.VideoFailed, res.Status)
		assert.Equal(t, "FFmpeg failed: invalid codec", res.Message)
	})

	t.Run("不存在", func(t *testing.T) {
		uc, d := newTestUseCase(UploadConfig{})
		d.repo.On("FindVideo", ctx, "nope").Return(nil, domain.ErrVideoNotFound)

		_, err := uc.GetVideoStatus(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrVideoNotFound)
	})
}
