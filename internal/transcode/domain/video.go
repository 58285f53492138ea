package domain

import (
	"fmt"
	"time"

	"transcoding_service/pkg"
)

// VideoStatus definition video status
type VideoStatus string

const (
	// VideoPending 已上傳, 等待轉碼
	VideoPending VideoStatus = "pending"
	// VideoProcessing worker 已取出工作
	VideoProcessing VideoStatus = "processing"
	// VideoCompleted 所有輸出已上傳
	VideoCompleted VideoStatus = "completed"
	// VideoFailed 任一階段失敗, Message 記錄原因
	VideoFailed VideoStatus = "failed"
)

// 狀態訊息
const (
	MessagePending     = "Video is waiting to be processed"
	MessageProcessing  = "Video processing started"
	MessageCompleted   = "Video processed successfully"
	MessageInterrupted = "Processing interrupted before completion" // worker 重啟時仍停在 processing
)

// IsTerminal completed / failed 之後不可再變更
func (s VideoStatus) IsTerminal() bool {
	return s == VideoCompleted || s == VideoFailed
}

// Valid check status is known
func (s VideoStatus) Valid() bool {
	switch s {
	case VideoPending, VideoProcessing, VideoCompleted, VideoFailed:
		return true
	}
	return false
}

// allowedFrom 每個目標狀態可接受的前一個狀態.
// processing -> processing 給重送 (redelivery) 的工作使用.
var allowedFrom = map[VideoStatus][]VideoStatus{
	VideoProcessing: {VideoPending, VideoProcessing},
	VideoCompleted:  {VideoProcessing},
	VideoFailed:     {VideoPending, VideoProcessing},
}

// AllowedPredecessors 回傳可以轉換到 to 的狀態
func AllowedPredecessors(to VideoStatus) []VideoStatus {
	from := allowedFrom[to]
	out := make([]VideoStatus, len(from))
	copy(out, from)
	return out
}

// CanTransition 判斷 from -> to 是否合法
func CanTransition(from, to VideoStatus) bool {
	return pkg.Contains(allowedFrom[to], from)
}

// Video 影片與轉碼狀態
type Video struct {
	ID         string      `gorm:"primaryKey;type:varchar(36)" bson:"_id" json:"video_id"`
	Name       string      `bson:"name" json:"name"`
	StorageKey string      `gorm:"not null" bson:"storage_key" json:"storage_key"` // 存於 object storage 的 key
	Status     VideoStatus `gorm:"type:varchar(16);index;not null" bson:"status" json:"status"`
	Message    string      `bson:"message" json:"message"`
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `bson:"updated_at" json:"updated_at"`
}

// NewVideo 建立 pending 狀態的影片
func NewVideo(id, name, storageKey string, now time.Time) *Video {
	return &Video{
		ID:         id,
		Name:       name,
		StorageKey: storageKey,
		Status:     VideoPending,
		Message:    MessagePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Transition 變更狀態, 不合法時回傳 ErrInvalidTransition
func (v *Video) Transition(to VideoStatus, message string, now time.Time) error {
	if !CanTransition(v.Status, to) {
		return fmt.Errorf("video[%s] %s -> %s: %w", v.ID, v.Status, to, ErrInvalidTransition)
	}
	v.Status = to
	v.Message = message
	v.UpdatedAt = now
	return nil
}

// VideoStatusRes 狀態查詢回應, polling endpoint 直接輸出
type VideoStatusRes struct {
	VideoID   string      `json:"video_id"`
	Name      string      `json:"name"`
	Status    VideoStatus `json:"status"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ToStatusRes convert video to status response
func (v *Video) ToStatusRes() *VideoStatusRes {
	return &VideoStatusRes{
		VideoID:   v.ID,
		Name:      v.Name,
		Status:    v.Status,
		Message:   v.Message,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

// VideoStatusEvent 狀態變更事件, 發佈到 kafka
type VideoStatusEvent struct {
	VideoID   string      `json:"video_id"`
	JobID     string      `json:"job_id,omitempty"`
	Status    VideoStatus `json:"status"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}
