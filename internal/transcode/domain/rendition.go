package domain

import (
	"fmt"
	"math"
)

// Tier 轉碼解析度等級
type Tier struct {
	Index  int    // 0..4, 輸出目錄 v<Index>
	Name   string // 144p / 360p / ...
	Height int
	Cap    int64 // bitrate 上限 (bps)
}

const (
	kbps int64 = 1000
	mbps int64 = 1000 * kbps
)

// 標準等級
var (
	Tier144  = Tier{Index: 0, Name: "144p", Height: 144, Cap: 500 * kbps}
	Tier360  = Tier{Index: 1, Name: "360p", Height: 360, Cap: 1 * mbps}
	Tier720  = Tier{Index: 2, Name: "720p", Height: 720, Cap: 5 * mbps}
	Tier1080 = Tier{Index: 3, Name: "1080p", Height: 1080, Cap: 8 * mbps}
	// max tier 依來源高度決定 1440 或 2160
	Tier1440 = Tier{Index: 4, Name: "1440p", Height: 1440, Cap: 16 * mbps}
	Tier2160 = Tier{Index: 4, Name: "2160p", Height: 2160, Cap: 40 * mbps}
)

// Ladder 標準等級, 由低到高
var Ladder = []Tier{Tier144, Tier360, Tier720, Tier1080}

// OutputDir 輸出子目錄, e.g. v2
func (t Tier) OutputDir() string {
	return fmt.Sprintf("v%d", t.Index)
}

// SelectTier 依來源高度選擇單一輸出等級
func SelectTier(height int) Tier {
	if height <= Tier144.Height {
		return Tier144
	}
	if height > Tier1080.Height {
		if height >= Tier2160.Height {
			return Tier2160
		}
		return Tier1440
	}
	selected := Tier144
	for _, t := range Ladder {
		if t.Height <= height {
			selected = t
		}
	}
	return selected
}

// BitrateFor min(source, cap), 來源 bitrate 未知 (<= 0) 時使用 cap
func BitrateFor(t Tier, source int64) int64 {
	if source <= 0 || source > t.Cap {
		return t.Cap
	}
	return source
}

// Resolution 影片解析度
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ScaleWidth 依比例計算寬度, 結果為奇數時 +1 (libx264 需要偶數)
func ScaleWidth(targetHeight int, src Resolution) int {
	if src.Height <= 0 {
		return 0
	}
	w := int(math.Round(float64(targetHeight) * float64(src.Width) / float64(src.Height)))
	if w%2 != 0 {
		w++
	}
	return w
}

// TierCap 某等級對來源 bitrate 的 cap 結果
type TierCap struct {
	Tier    Tier
	Bitrate int64
}

// CapsFor 每個等級 (含 1440 / 2160) 的 capped bitrate, 只作為診斷資訊
func CapsFor(source int64) []TierCap {
	all := append(append([]Tier{}, Ladder...), Tier1440, Tier2160)
	caps := make([]TierCap, 0, len(all))
	for _, t := range all {
		caps = append(caps, TierCap{Tier: t, Bitrate: BitrateFor(t, source)})
	}
	return caps
}

// ProbeResult ffprobe 結果
type ProbeResult struct {
	Bitrate    int64 // bps, 0 表示未知
	Resolution Resolution
	HasAudio   bool
}

// RenditionPlan 單一輸出的轉碼參數
type RenditionPlan struct {
	Tier     Tier
	Width    int
	Height   int
	Bitrate  int64
	HasAudio bool
}

// Size ffmpeg -s 參數, e.g. 1280x720
func (p RenditionPlan) Size() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// Plan 依 probe 結果產生轉碼計畫
func Plan(probe ProbeResult) RenditionPlan {
	tier := SelectTier(probe.Resolution.Height)
	return RenditionPlan{
		Tier:     tier,
		Width:    ScaleWidth(tier.Height, probe.Resolution),
		Height:   tier.Height,
		Bitrate:  BitrateFor(tier, probe.Bitrate),
		HasAudio: probe.HasAudio,
	}
}
