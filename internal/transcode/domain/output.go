package domain

import (
	"io"
	"path"
	"strings"
)

// 輸出檔名
const (
	MasterPlaylist  = "master.m3u8"
	VariantPlaylist = "prog_index.m3u8"
	SegmentPrefix   = "fileSequence"
)

// OutputFile 轉碼產生的單一檔案
type OutputFile struct {
	RelPath     string // 相對於輸出目錄, 使用 "/" 分隔
	LocalPath   string
	Size        int64
	ContentType string
}

// OutputManifest 轉碼輸出清單, 依 RelPath 排序
type OutputManifest struct {
	Plan  RenditionPlan
	Files []OutputFile
}

// Find 以相對路徑找檔案
func (m *OutputManifest) Find(relPath string) (OutputFile, bool) {
	for _, f := range m.Files {
		if f.RelPath == relPath {
			return f, true
		}
	}
	return OutputFile{}, false
}

// IsOutputFile 判斷檔案是否為 HLS 輸出
func IsOutputFile(name string) bool {
	base := path.Base(name)
	ext := strings.ToLower(path.Ext(base))
	return ext == ".m3u8" || ext == ".ts" || strings.HasPrefix(base, SegmentPrefix)
}

// ContentTypeFor 依副檔名決定 content type
func ContentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/MP2T"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}

// UploadKind upload result 類型
type UploadKind string

const (
	// UploadLocal 檔案留在本機, 只回傳檔名
	UploadLocal UploadKind = "local"
	// UploadRemote 上傳到 object storage, 回傳 URL 與 key
	UploadRemote UploadKind = "remote"
)

// UploadResult tagged upload result
type UploadResult struct {
	Kind UploadKind `json:"kind"`
	Name string     `json:"name,omitempty"`
	URL  string     `json:"url,omitempty"`
	Key  string     `json:"key,omitempty"`
}

// LocalResult create local upload result
func LocalResult(name string) UploadResult {
	return UploadResult{Kind: UploadLocal, Name: name}
}

// RemoteResult create remote upload result
func RemoteResult(url, key string) UploadResult {
	return UploadResult{Kind: UploadRemote, URL: url, Key: key}
}

// UploadVideoReq usecase upload video request
type UploadVideoReq struct {
	FileName    string
	ContentType string
	Size        int64
	File        io.Reader
}

// UploadVideoRes usecase upload video response
type UploadVideoRes struct {
	Message string      `json:"message"`
	VideoID string      `json:"video_id"`
	Status  VideoStatus `json:"status"`
	JobID   string      `json:"job_id,omitempty"`
}
