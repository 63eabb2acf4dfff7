// Package metrics exposes prometheus instrumentation for the worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts jobs by terminal outcome.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "renderq_jobs_processed_total",
		Help: "Jobs driven to a terminal state, labeled by outcome.",
	}, []string{"outcome"})

	// JobDuration observes end-to-end processing time per job.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "renderq_job_duration_seconds",
		Help:    "Time from dequeue to terminal state.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	// FrameRateClamped counts jobs whose requested frame rate exceeded
	// the safety ceiling.
	FrameRateClamped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "renderq_frame_rate_clamped_total",
		Help: "Jobs processed with a frame rate reduced to the ceiling.",
	})
)
