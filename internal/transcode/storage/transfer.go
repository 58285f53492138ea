package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/logger"
	"transcoding_service/pkg/metrics"

	"go.uber.org/zap"
)

// Transfer 在 object store 與 work area 之間搬移檔案
type Transfer struct {
	store  ObjectStore
	create func(name string) (io.WriteCloser, error)
}

// NewTransfer create transfer
func NewTransfer(store ObjectStore) *Transfer {
	return &Transfer{
		store:  store,
		create: func(name string) (io.WriteCloser, error) { return os.Create(name) },
	}
}

// OutputPrefix 轉碼輸出的 key 前綴, e.g. videos/abc.mp4 -> videos/abc
func OutputPrefix(storageKey string) string {
	base := path.Base(storageKey)
	return "videos/" + strings.TrimSuffix(base, path.Ext(base))
}

// Download 下載原始檔到 area.SourcePath
func (t *Transfer) Download(ctx context.Context, key string, area *WorkArea) error {
	defer metrics.ObserveStage(string(domain.StageDownload), time.Now())

	rc, err := t.store.Get(ctx, key)
	if err != nil {
		return domain.NewStageError(domain.StageDownload, fmt.Sprintf("Failed to download %s", key), err)
	}
	defer rc.Close()

	f, err := t.create(area.SourcePath)
	if err != nil {
		return domain.NewStageError(domain.StageDownload, "Failed to create source file", err)
	}

	n, err := io.Copy(f, rc)
	if err != nil {
		_ = f.Close()
		return domain.NewStageError(domain.StageDownload, fmt.Sprintf("Failed to download %s", key), err)
	}
	// close 失敗代表寫入不完整
	if err := f.Close(); err != nil {
		return domain.NewStageError(domain.StageDownload, fmt.Sprintf("Failed to download %s", key), err)
	}
	logger.Log.Debug("source downloaded", zap.String("key", key), zap.Int64("bytes", n))
	return nil
}

// UploadOutputs 依 manifest 順序上傳所有輸出, 同一 key 重複上傳為覆蓋
func (t *Transfer) UploadOutputs(ctx context.Context, storageKey string, manifest *domain.OutputManifest) ([]domain.UploadResult, error) {
	defer metrics.ObserveStage(string(domain.StageUpload), time.Now())

	prefix := OutputPrefix(storageKey)
	results := make([]domain.UploadResult, 0, len(manifest.Files))
	for _, file := range manifest.Files {
		key := prefix + "/" + file.RelPath
		res, err := t.uploadFile(ctx, key, file)
		if err != nil {
			return results, domain.NewStageError(domain.StageUpload, fmt.Sprintf("Failed to upload %s", key), err)
		}
		results = append(results, res)
	}
	logger.Log.Info("outputs uploaded", zap.String("prefix", prefix), zap.Int("files", len(results)))
	return results, nil
}

func (t *Transfer) uploadFile(ctx context.Context, key string, file domain.OutputFile) (domain.UploadResult, error) {
	f, err := os.Open(file.LocalPath)
	if err != nil {
		return domain.UploadResult{}, err
	}
	defer f.Close()
	return t.store.Put(ctx, key, f, file.Size, file.ContentType)
}
