package storage

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewULID 產生依時間排序的唯一 id
func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// WorkArea 單一工作的暫存目錄: <base>/<ULID>/{source<ext>, out/}
type WorkArea struct {
	Dir        string
	SourcePath string
	OutputDir  string
}

// NewWorkArea 建立工作目錄, ext 為來源副檔名 (含 ".")
func NewWorkArea(baseDir, ext string) (*WorkArea, error) {
	dir := filepath.Join(baseDir, NewULID())
	out := filepath.Join(dir, "out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("create work area: %w", err)
	}
	return &WorkArea{
		Dir:        dir,
		SourcePath: filepath.Join(dir, "source"+strings.ToLower(ext)),
		OutputDir:  out,
	}, nil
}

// Cleanup 刪除整個工作目錄
func (w *WorkArea) Cleanup() error {
	return os.RemoveAll(w.Dir)
}
