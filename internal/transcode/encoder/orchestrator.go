// Package encoder probes a source video, picks its rendition and drives
// ffmpeg to produce an HLS output directory.
package encoder

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/logger"
	"transcoding_service/pkg/metrics"
	"transcoding_service/pkg/runner"

	"go.uber.org/zap"
)

// Config encoder 設定
type Config struct {
	FFmpegPath  string
	FFprobePath string
	Preset      string
	Timeout     time.Duration // 0 表示不限制
}

func (c Config) withDefaults() Config {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
	if c.Preset == "" {
		c.Preset = "veryslow"
	}
	return c
}

// Orchestrator probe -> 選擇等級 -> ffmpeg -> 收集輸出
type Orchestrator struct {
	cfg    Config
	runner runner.Runner
	prober *Prober
}

// NewOrchestrator create orchestrator
func NewOrchestrator(r runner.Runner, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		cfg:    cfg,
		runner: r,
		prober: NewProber(r, cfg.FFprobePath),
	}
}

// Encode 將 sourcePath 轉為 HLS, 輸出寫在 outputDir 底下
func (o *Orchestrator) Encode(ctx context.Context, sourcePath, outputDir string) (*domain.OutputManifest, error) {
	start := time.Now()
	probe, err := o.prober.Probe(ctx, sourcePath)
	metrics.ObserveStage(string(domain.StageProbe), start)
	if err != nil {
		return nil, err
	}

	plan := domain.Plan(probe)
	logger.Log.Info("rendition planned",
		zap.String("source", sourcePath),
		zap.String("resolution", probe.Resolution.String()),
		zap.Int64("source_bitrate", probe.Bitrate),
		zap.String("tier", plan.Tier.Name),
		zap.String("size", plan.Size()),
		zap.Int64("bitrate", plan.Bitrate),
		zap.Bool("audio", plan.HasAudio),
	)
	for _, c := range domain.CapsFor(probe.Bitrate) {
		logger.Log.Debug("tier cap", zap.String("tier", c.Tier.Name), zap.Int64("bitrate", c.Bitrate))
	}

	if err := os.MkdirAll(filepath.Join(outputDir, plan.Tier.OutputDir()), 0o755); err != nil {
		return nil, domain.NewStageError(domain.StageEncode, "FFmpeg failed: cannot create output dir", err)
	}

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	start = time.Now()
	result, err := o.runner.Run(ctx, o.cfg.FFmpegPath, BuildArgs(plan, sourcePath, outputDir, o.cfg.Preset)...)
	metrics.ObserveStage(string(domain.StageEncode), start)
	if err != nil {
		return nil, domain.NewStageError(domain.StageEncode, "FFmpeg failed: "+err.Error(), err)
	}
	if !result.Success() {
		return nil, domain.NewStageError(domain.StageEncode,
			"FFmpeg failed: "+tailLines(result.Stderr, stderrTailLines),
			fmt.Errorf("ffmpeg exit code %d", result.ExitCode))
	}

	files, err := CollectOutputs(outputDir, sourcePath)
	if err != nil {
		return nil, domain.NewStageError(domain.StageEncode, "FFmpeg failed: cannot read output", err)
	}
	manifest := &domain.OutputManifest{Plan: plan, Files: files}
	if _, ok := manifest.Find(domain.MasterPlaylist); !ok {
		return nil, domain.NewStageError(domain.StageEncode, "FFmpeg failed: no master playlist produced", nil)
	}

	return manifest, nil
}

// stderrTailLines 失敗訊息只保留 stderr 最後幾行
const stderrTailLines = 20

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// variantPattern ffmpeg 以 var_stream_map 的 name 展開 %v.
// 輸出目錄名稱含 %v 時 master playlist 會寫在上一層, 也就是 outputDir 根目錄
const variantPattern = "v%v"

// BuildArgs 組合 ffmpeg HLS 參數, variant 輸出到 v<index>, master 輸出到 outputDir
func BuildArgs(plan domain.RenditionPlan, sourcePath, outputDir, preset string) []string {
	variantDir := filepath.Join(outputDir, variantPattern)
	streamMap := "v:0"
	if plan.HasAudio {
		streamMap += ",a:0"
	}
	streamMap += " name:" + strconv.Itoa(plan.Tier.Index)

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", sourcePath,
		"-preset", preset,
		"-g", "48",
		"-crf", "17",
		"-sc_threshold", "0",
		"-s:v:0", plan.Size(),
		"-c:v:0", "libx264",
		"-b:v:0", strconv.FormatInt(plan.Bitrate, 10),
	}
	if plan.HasAudio {
		args = append(args, "-c:a:0", "aac", "-b:a:0", "128k")
	} else {
		args = append(args, "-an")
	}
	args = append(args,
		"-f", "hls",
		"-hls_time", "6",
		"-hls_list_size", "0",
		"-hls_playlist_type", "event",
		"-hls_segment_filename", filepath.Join(variantDir, domain.SegmentPrefix+"%d.ts"),
		"-master_pl_name", domain.MasterPlaylist,
		"-var_stream_map", streamMap,
		filepath.Join(variantDir, domain.VariantPlaylist),
	)
	return args
}

// CollectOutputs 走訪 outputDir, 只收 HLS 檔案並排除來源檔, 依相對路徑排序
func CollectOutputs(outputDir, sourcePath string) ([]domain.OutputFile, error) {
	sourceAbs, _ := filepath.Abs(sourcePath)
	var files []domain.OutputFile

	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == sourceAbs {
			return nil
		}
		if !domain.IsOutputFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		files = append(files, domain.OutputFile{
			RelPath:     rel,
			LocalPath:   path,
			Size:        info.Size(),
			ContentType: domain.ContentTypeFor(rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}
