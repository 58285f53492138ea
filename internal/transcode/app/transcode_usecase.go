package app

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/internal/transcode/queue"
	"transcoding_service/internal/transcode/repository"
	"transcoding_service/internal/transcode/storage"
	"transcoding_service/pkg"
	errprocess "transcoding_service/pkg/err"
	"transcoding_service/pkg/logger"
	"transcoding_service/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// upload result label
const (
	uploadAccepted = "accepted"
	uploadRejected = "rejected"
	uploadFailed   = "failed"
)

// MessageUploaded 上傳成功回應
const MessageUploaded = "Video uploaded, waiting to be processed"

// TranscodeUseCase 上傳與狀態查詢
type TranscodeUseCase interface {
	UploadVideo(ctx context.Context, req domain.UploadVideoReq) (*domain.UploadVideoRes, error)
	StoreOriginal(ctx context.Context, req domain.UploadVideoReq) (domain.UploadResult, error)
	GetVideoStatus(ctx context.Context, videoID string) (*domain.VideoStatusRes, error)
}

// UploadConfig 上傳限制
type UploadConfig struct {
	MaxUploadSize int64 // bytes
	AllowedExts   []string
}

type transcodeUseCase struct {
	store     storage.ObjectStore
	repo      repository.VideoRepo
	publisher queue.Publisher
	notifier  StatusNotifier
	cfg       UploadConfig

	now   func() time.Time
	newID func() string
}

// NewTranscodeUseCase 建立 TranscodeUseCase
func NewTranscodeUseCase(store storage.ObjectStore,
	repo repository.VideoRepo,
	publisher queue.Publisher,
	notifier StatusNotifier,
	cfg UploadConfig,
) TranscodeUseCase {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &transcodeUseCase{
		store:     store,
		repo:      repo,
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *transcodeUseCase) validate(req domain.UploadVideoReq) error {
	if req.File == nil {
		return errprocess.Wrap(domain.ErrValidation, "fileName[%s] no file provided", req.FileName)
	}
	mediaType, _, err := mime.ParseMediaType(req.ContentType)
	if err != nil || !strings.HasPrefix(mediaType, "video/") {
		return errprocess.Wrap(domain.ErrValidation, "fileName[%s] content type %q is not a video", req.FileName, req.ContentType)
	}
	ext := filepath.Ext(req.FileName)
	if len(s.cfg.AllowedExts) > 0 && !pkg.ContainsFold(s.cfg.AllowedExts, ext) {
		return errprocess.Wrap(domain.ErrValidation, "fileName[%s] extension %q is not allowed", req.FileName, ext)
	}
	if s.cfg.MaxUploadSize > 0 && req.Size > s.cfg.MaxUploadSize {
		return errprocess.Wrap(domain.ErrValidation, "fileName[%s] size %d exceeds %d bytes", req.FileName, req.Size, s.cfg.MaxUploadSize)
	}
	return nil
}

// originalKey videos/<ULID><ext>, 重複上傳相同內容也會得到不同 key
func originalKey(fileName string) string {
	return "videos/" + storage.NewULID() + strings.ToLower(filepath.Ext(fileName))
}

func (s *transcodeUseCase) putOriginal(ctx context.Context, req domain.UploadVideoReq) (string, domain.UploadResult, error) {
	if err := s.validate(req); err != nil {
		metrics.UploadsTotal.WithLabelValues(uploadRejected).Inc()
		return "", domain.UploadResult{}, err
	}

	key := originalKey(req.FileName)
	res, err := s.store.Put(ctx, key, req.File, req.Size, req.ContentType)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(uploadFailed).Inc()
		return "", domain.UploadResult{}, errprocess.Wrap(err, "fileName[%s] 上傳 object storage 失敗", req.FileName)
	}
	return key, res, nil
}

// StoreOriginal 只儲存原始檔, 不建立轉碼工作
func (s *transcodeUseCase) StoreOriginal(ctx context.Context, req domain.UploadVideoReq) (domain.UploadResult, error) {
	_, res, err := s.putOriginal(ctx, req)
	if err != nil {
		return domain.UploadResult{}, err
	}
	metrics.UploadsTotal.WithLabelValues(uploadAccepted).Inc()
	return res, nil
}

// UploadVideo 儲存原始檔 -> 建立 pending 影片 -> 送出轉碼工作.
// 送出失敗時影片標記為 failed
func (s *transcodeUseCase) UploadVideo(ctx context.Context, req domain.UploadVideoReq) (*domain.UploadVideoRes, error) {
	key, _, err := s.putOriginal(ctx, req)
	if err != nil {
		return nil, err
	}

	video := domain.NewVideo(s.newID(), req.FileName, key, s.now().UTC())
	if err := s.repo.InsertVideo(ctx, video); err != nil {
		metrics.UploadsTotal.WithLabelValues(uploadFailed).Inc()
		return nil, errprocess.Wrap(err, "fileName[%s] 資料庫建立影片失敗", req.FileName)
	}
	s.notify(ctx, video.ID, "", video.Status, video.Message)

	jobID, err := s.publisher.Enqueue(ctx, domain.EncodeJob{VideoID: video.ID, StorageKey: key})
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(uploadFailed).Inc()
		msg := fmt.Sprintf("Failed to enqueue encoding job: %v", err)
		if uerr := s.repo.UpdateVideoStatus(ctx, video.ID, domain.VideoFailed, msg); uerr != nil {
			logger.Log.Error("mark video failed", zap.String("video_id", video.ID), zap.Error(uerr))
		} else {
			s.notify(ctx, video.ID, "", domain.VideoFailed, msg)
		}
		return nil, errprocess.Wrap(err, "video[%s] 發布轉碼工作失敗", video.ID)
	}

	metrics.UploadsTotal.WithLabelValues(uploadAccepted).Inc()
	logger.Log.Info("video uploaded",
		zap.String("video_id", video.ID),
		zap.String("key", key),
		zap.String("job_id", jobID))

	return &domain.UploadVideoRes{
		Message: MessageUploaded,
		VideoID: video.ID,
		Status:  video.Status,
		JobID:   jobID,
	}, nil
}

// GetVideoStatus 查詢影片狀態
func (s *transcodeUseCase) GetVideoStatus(ctx context.Context, videoID string) (*domain.VideoStatusRes, error) {
	video, err := s.repo.FindVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return video.ToStatusRes(), nil
}

func (s *transcodeUseCase) notify(ctx context.Context, videoID, jobID string, status domain.VideoStatus, message string) {
	s.notifier.Notify(ctx, domain.VideoStatusEvent{
		VideoID:   videoID,
		JobID:     jobID,
		Status:    status,
		Message:   message,
		Timestamp: s.now(),
	})
}
