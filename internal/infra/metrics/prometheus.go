package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesCapturedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timelapse_frames_captured_total",
		Help: "Capture attempts, by result",
	}, []string{"result"})

	CaptureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "timelapse_capture_duration_seconds",
		Help:    "Wall time of a single frame grab including preload",
		Buckets: []float64{1, 5, 10, 15, 20, 30, 45, 60, 120},
	})

	PendingFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timelapse_pending_frames",
		Help: "Frames accumulated towards the next artifact",
	})

	ArtifactsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timelapse_artifacts_total",
		Help: "Artifacts assembled, by kind and status",
	}, []string{"kind", "status"})

	AssemblyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timelapse_assembly_duration_seconds",
		Help:    "Duration of frame-to-video assembly",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"kind"})

	FramesRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timelapse_frames_removed_total",
		Help: "Consumed frames removed after assembly, by result",
	}, []string{"result"})

	MigrationGroupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timelapse_migration_groups_total",
		Help: "Legacy frame groups migrated, by status",
	}, []string{"status"})

	SinkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timelapse_sink_errors_total",
		Help: "Failed artifact publications, by sink",
	}, []string{"sink"})
)
