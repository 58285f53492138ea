package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transcoding_service/internal/transcode/domain"

	"gorm.io/gorm"
)

// VideoRepo video status store
type VideoRepo interface {
	AutoMigrate(ctx context.Context) error
	InsertVideo(ctx context.Context, video *domain.Video) error
	FindVideo(ctx context.Context, id string) (*domain.Video, error)
	// UpdateVideoStatus 只在目前狀態為合法前一狀態時更新,
	// 否則回傳 domain.ErrInvalidTransition, id 不存在回傳 domain.ErrVideoNotFound
	UpdateVideoStatus(ctx context.Context, id string, status domain.VideoStatus, message string) error
	// FindByStatus 依 created_at 排序, 未知狀態回傳 domain.ErrValidation
	FindByStatus(ctx context.Context, status domain.VideoStatus) ([]domain.Video, error)
}

func checkStatus(status domain.VideoStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown video status %q: %w", status, domain.ErrValidation)
	}
	return nil
}

type videoRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewVideoRepo create postgres VideoRepo
func NewVideoRepo(db *gorm.DB) VideoRepo {
	return &videoRepo{db: db, now: time.Now}
}

// AutoMigrate 建立 / 更新 videos 表, 不會刪除既有欄位
func (r *videoRepo) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&domain.Video{})
}

func (r *videoRepo) InsertVideo(ctx context.Context, video *domain.Video) error {
	return r.db.WithContext(ctx).Create(video).Error
}

func (r *videoRepo) FindVideo(ctx context.Context, id string) (*domain.Video, error) {
	var v domain.Video
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("video[%s]: %w", id, domain.ErrVideoNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateVideoStatus 以 WHERE status IN (...) 做條件更新, 同一影片的並行更新不會離開終態
func (r *videoRepo) UpdateVideoStatus(ctx context.Context, id string, status domain.VideoStatus, message string) error {
	preds := domain.AllowedPredecessors(status)
	if len(preds) == 0 {
		return fmt.Errorf("video[%s] -> %s: %w", id, status, domain.ErrInvalidTransition)
	}
	from := make([]string, len(preds))
	for i, s := range preds {
		from[i] = string(s)
	}

	tx := r.db.WithContext(ctx).
		Model(&domain.Video{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     string(status),
			"message":    message,
			"updated_at": r.now(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected > 0 {
		return nil
	}

	current, err := r.FindVideo(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("video[%s] %s -> %s: %w", id, current.Status, status, domain.ErrInvalidTransition)
}

func (r *videoRepo) FindByStatus(ctx context.Context, status domain.VideoStatus) ([]domain.Video, error) {
	if err := checkStatus(status); err != nil {
		return nil, err
	}
	var videos []domain.Video
	if err := r.db.WithContext(ctx).Where("status = ?", string(status)).Order("created_at ASC").Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}
