package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// QueueName definition queue name
	QueueName = "transcode"
	// TaskEncodeVideo asynq task type
	TaskEncodeVideo = "video:encode"
)

// EncodeJob 轉碼工作訊息
type EncodeJob struct {
	VideoID    string `json:"video_id"`
	StorageKey string `json:"storage_key"` // 原始檔的 object key, e.g. videos/<file>

	// 以下由 queue 填入, 不序列化
	JobID   string `json:"-"`
	Attempt int    `json:"-"`
}

// Validate check required fields
func (j EncodeJob) Validate() error {
	if strings.TrimSpace(j.VideoID) == "" {
		return fmt.Errorf("encode job: video_id is required")
	}
	if strings.TrimSpace(j.StorageKey) == "" {
		return fmt.Errorf("encode job: storage_key is required")
	}
	return nil
}

// Marshal job payload
func (j EncodeJob) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// UnmarshalEncodeJob 解析並驗證 payload
func UnmarshalEncodeJob(data []byte) (EncodeJob, error) {
	var job EncodeJob
	if err := json.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("decode encode job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return job, err
	}
	return job, nil
}
