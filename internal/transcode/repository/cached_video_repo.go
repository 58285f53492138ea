package repository

import (
	"context"
	"errors"
	"time"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/database"
	"transcoding_service/pkg/logger"

	"go.uber.org/zap"
)

const cacheKeyPrefix = "video:status:"

// CachedVideoRepo FindVideo 走 redis read-through cache, 狀態更新後刪除 cache
type CachedVideoRepo struct {
	VideoRepo
	cache database.RedisRepository[domain.Video]
	ttl   time.Duration
}

// NewCachedVideoRepo wrap repo with redis cache
func NewCachedVideoRepo(repo VideoRepo, cache database.RedisRepository[domain.Video], ttl time.Duration) *CachedVideoRepo {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &CachedVideoRepo{VideoRepo: repo, cache: cache, ttl: ttl}
}

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}

// FindVideo cache miss 或 redis 錯誤時回到 store
func (c *CachedVideoRepo) FindVideo(ctx context.Context, id string) (*domain.Video, error) {
	v, err := c.cache.Get(ctx, cacheKey(id))
	if err == nil {
		return &v, nil
	}
	if !errors.Is(err, database.ErrCacheMiss) {
		logger.Log.Warn("video cache get failed", zap.String("video_id", id), zap.Error(err))
	}

	video, err := c.VideoRepo.FindVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, cacheKey(id), *video, c.ttl); err != nil {
		logger.Log.Warn("video cache set failed", zap.String("video_id", id), zap.Error(err))
	}
	return video, nil
}

// UpdateVideoStatus 更新後一律刪除 cache
func (c *CachedVideoRepo) UpdateVideoStatus(ctx context.Context, id string, status domain.VideoStatus, message string) error {
	err := c.VideoRepo.UpdateVideoStatus(ctx, id, status, message)
	if delErr := c.cache.Del(ctx, cacheKey(id)); delErr != nil {
		logger.Log.Warn("video cache invalidate failed", zap.String("video_id", id), zap.Error(delErr))
	}
	return err
}
