package encoder

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/runner"
)

// MsgNoResolution probe 取不到解析度時寫入 video 的訊息
const MsgNoResolution = "Could not determine video resolution"

// Prober 以 ffprobe 取得來源影片資訊
type Prober struct {
	runner  runner.Runner
	ffprobe string
}

// NewProber create prober
func NewProber(r runner.Runner, ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{runner: r, ffprobe: ffprobePath}
}

// Probe 依序查詢 bitrate / 解析度 / 音軌
func (p *Prober) Probe(ctx context.Context, path string) (domain.ProbeResult, error) {
	var res domain.ProbeResult

	out, err := p.query(ctx,
		"-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=bit_rate",
		"-of", "csv=p=0", path)
	if err != nil {
		return res, err
	}
	res.Bitrate = parseBitrate(out)

	out, err = p.query(ctx,
		"-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0", path)
	if err != nil {
		return res, err
	}
	resolution, ok := parseResolution(out)
	if !ok {
		return res, domain.NewStageError(domain.StageProbe, MsgNoResolution, fmt.Errorf("ffprobe output %q", out))
	}
	res.Resolution = resolution

	out, err = p.query(ctx,
		"-v", "error", "-select_streams", "a:0",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0", path)
	if err != nil {
		return res, err
	}
	res.HasAudio = strings.TrimSpace(out) == "audio"

	return res, nil
}

func (p *Prober) query(ctx context.Context, args ...string) (string, error) {
	result, err := p.runner.Run(ctx, p.ffprobe, args...)
	if err != nil {
		return "", domain.NewStageError(domain.StageProbe, "FFprobe failed: "+err.Error(), err)
	}
	if !result.Success() {
		msg := strings.TrimSpace(result.Stderr)
		return "", domain.NewStageError(domain.StageProbe, "FFprobe failed: "+msg,
			fmt.Errorf("ffprobe exit code %d", result.ExitCode))
	}
	return result.Stdout, nil
}

// parseBitrate 無法解析 (e.g. N/A) 時回傳 0
func parseBitrate(out string) int64 {
	line := firstLine(out)
	n, err := strconv.ParseInt(line, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseResolution(out string) (domain.Resolution, bool) {
	parts := strings.Split(firstLine(out), "x")
	if len(parts) < 2 {
		return domain.Resolution{}, false
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return domain.Resolution{}, false
	}
	return domain.Resolution{Width: w, Height: h}, true
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	// 部分容器會多輸出一個逗號, e.g. "1920x1080,"
	return strings.TrimRight(strings.TrimSpace(s), ",")
}
