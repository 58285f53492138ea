// Package metrics holds the prometheus collectors shared by the worker and the upload api.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "transcode"

// job result label
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
)

var (
	// JobsTotal 依結果統計工作數
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Encode jobs settled, by result.",
	}, []string{"result"})

	// JobDuration 單一工作 (含重試) 耗時
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Wall time of an encode job from dequeue to settlement.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// StageDuration 各階段耗時
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Wall time of each pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"stage"})

	// ActiveJobs 正在處理中的工作
	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_jobs",
		Help:      "Jobs currently held by a worker slot.",
	})

	// UploadsTotal 上傳結果
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Source uploads accepted by the api, by result.",
	}, []string{"result"})
)

// ObserveStage 記錄某階段耗時
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Handler /metrics http handler
func Handler() http.Handler {
	return promhttp.Handler()
}
