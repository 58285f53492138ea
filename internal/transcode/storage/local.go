package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"transcoding_service/internal/transcode/domain"
)

// LocalStore 將物件存在本機目錄, 回傳 local upload result
type LocalStore struct {
	root string
}

// NewLocalStore create local store
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage: dir is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (l *LocalStore) path(key string) (string, error) {
	p := filepath.Join(l.root, filepath.FromSlash(key))
	if p != l.root && !strings.HasPrefix(p, l.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("local storage: key %q escapes root", key)
	}
	return p, nil
}

// Put 先寫暫存檔再 rename, 重複寫入同一 key 會覆蓋
func (l *LocalStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (domain.UploadResult, error) {
	p, err := l.path(key)
	if err != nil {
		return domain.UploadResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return domain.UploadResult{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return domain.UploadResult{}, err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return domain.UploadResult{}, err
	}
	if err := tmp.Close(); err != nil {
		return domain.UploadResult{}, err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return domain.UploadResult{}, err
	}

	return domain.LocalResult(key), nil
}

// Get open stored file
func (l *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}
