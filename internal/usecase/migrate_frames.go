package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/asusplayer/time-lapse/internal/domain/entity"
	"github.com/asusplayer/time-lapse/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	// DetectionPatterns identify the capture scheme that predates batching.
	DetectionPatterns = []string{"screenshot_*.png", "screenshot_*.jpg", "frame_*.png", "frame_*.jpg"}

	// SweepPatterns are everything the migration will pick up.
	SweepPatterns = append(append([]string{}, DetectionPatterns...), "*.png", "*.jpg", "*.jpeg")

	legacyTimestamp = regexp.MustCompile(`\d{8}_\d{6}`)
)

// LegacyFrame is an individually stored image awaiting migration.
type LegacyFrame struct {
	Path         string
	ModTime      time.Time
	Timestamp    time.Time
	HasTimestamp bool
}

// SortKey orders legacy frames: the timestamp in the name when there is one,
// otherwise the file modification time.
func (f LegacyFrame) SortKey() time.Time {
	if f.HasTimestamp {
		return f.Timestamp
	}
	return f.ModTime
}

func ParseLegacyTimestamp(name string, loc *time.Location) (time.Time, bool) {
	m := legacyTimestamp.FindString(name)
	if m == "" {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(entity.TimestampLayout, m, loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// ScanLegacyFrames globs dir with patterns, deduplicating matches and skipping
// anything that is not a regular file or whose name mentions "temp".
func ScanLegacyFrames(dir string, patterns []string) ([]LegacyFrame, error) {
	seen := make(map[string]struct{})
	var frames []LegacyFrame
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}

			if strings.Contains(filepath.Base(m), "temp") {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			f := LegacyFrame{Path: m, ModTime: info.ModTime()}
			f.Timestamp, f.HasTimestamp = ParseLegacyTimestamp(filepath.Base(m), time.Local)
			frames = append(frames, f)
		}
	}
	return frames, nil
}

// GroupFrames splits legacy frames into migration batches.
//
// Frames are ordered by SortKey. A timestamped frame closes the open group
// and starts a new one when it lies span or more after the group start OR the
// group already holds maxFrames; both conditions are checked for every frame
// and either one suffices. A frame without a timestamp is appended
// unconditionally and closes the group once it reaches maxFrames; it only
// sets the group start when it opens the group.
func GroupFrames(frames []LegacyFrame, span time.Duration, maxFrames int, now time.Time) []entity.Batch {
	sorted := append([]LegacyFrame(nil), frames...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := sorted[i].SortKey(), sorted[j].SortKey()
		if !ki.Equal(kj) {
			return ki.Before(kj)
		}
		return sorted[i].Path < sorted[j].Path
	})

	var (
		batches  []entity.Batch
		current  []entity.Frame
		start    time.Time
		hasStart bool
	)
	closeGroup := func() {
		batches = append(batches, entity.Batch{Kind: entity.BatchKindMigrated, StartedAt: start, Frames: current})
		current = nil
	}

	for i, lf := range sorted {
		frame := entity.Frame{Sequence: uint64(i + 1), CapturedAt: lf.SortKey(), Path: lf.Path}

		if lf.HasTimestamp {
			switch {
			case !hasStart:
				start, hasStart = lf.Timestamp, true
				current = append(current, frame)
			case lf.Timestamp.Sub(start) >= span || len(current) >= maxFrames:
				closeGroup()
				start = lf.Timestamp
				current = []entity.Frame{frame}
			default:
				current = append(current, frame)
			}
			continue
		}

		if len(current) == 0 {
			start, hasStart = lf.ModTime, true
		}
		current = append(current, frame)
		if len(current) >= maxFrames {
			closeGroup()
			hasStart = false
		}
	}

	if len(current) > 0 {
		if !hasStart {
			start = now
		}
		closeGroup()
	}
	return batches
}

type MigrateConfig struct {
	FramesDir      string
	GroupSpan      time.Duration
	FramesPerVideo int
}

// MigrationReport summarises one sweep.
type MigrationReport struct {
	FramesFound    int
	Groups         int
	Succeeded      int
	Failed         int
	FramesDeleted  int
	DeleteFailures int
}

// MigrateFramesUseCase converts legacy per-image captures into artifacts.
// Deletion of migrated frames is governed by the assembler's retention
// settings.
type MigrateFramesUseCase struct {
	assembler *BatchAssembler
	logger    *zap.Logger
	cfg       MigrateConfig
	now       func() time.Time
}

func NewMigrateFramesUseCase(assembler *BatchAssembler, logger *zap.Logger, cfg MigrateConfig) *MigrateFramesUseCase {
	return &MigrateFramesUseCase{assembler: assembler, logger: logger, cfg: cfg, now: time.Now}
}

// Detect counts frames that follow the legacy naming scheme.
func (uc *MigrateFramesUseCase) Detect() (int, error) {
	frames, err := ScanLegacyFrames(uc.cfg.FramesDir, DetectionPatterns)
	if err != nil {
		return 0, err
	}
	return len(frames), nil
}

// Plan scans and groups the legacy frames without touching them.
func (uc *MigrateFramesUseCase) Plan() ([]entity.Batch, error) {
	frames, err := ScanLegacyFrames(uc.cfg.FramesDir, SweepPatterns)
	if err != nil {
		return nil, fmt.Errorf("scan legacy frames: %w", err)
	}
	return GroupFrames(frames, uc.cfg.GroupSpan, uc.cfg.FramesPerVideo, uc.now()), nil
}

// Execute runs one sweep. Groups are assembled independently: a failed group
// is counted and the sweep moves on. Only cancellation or an unreadable
// frames directory end it early.
func (uc *MigrateFramesUseCase) Execute(ctx context.Context) (*MigrationReport, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "MigrateFramesUseCase.Execute")
	defer span.End()

	log := uc.logger.With(zap.String("frames_dir", uc.cfg.FramesDir))
	report := &MigrationReport{}

	frames, err := ScanLegacyFrames(uc.cfg.FramesDir, SweepPatterns)
	if err != nil {
		return report, fmt.Errorf("scan legacy frames: %w", err)
	}
	report.FramesFound = len(frames)
	if len(frames) == 0 {
		log.Warn("no frames found to migrate")
		return report, nil
	}

	groups := GroupFrames(frames, uc.cfg.GroupSpan, uc.cfg.FramesPerVideo, uc.now())
	report.Groups = len(groups)
	span.SetAttributes(attribute.Int("migration.frames", len(frames)), attribute.Int("migration.groups", len(groups)))
	log.Info("migrating legacy frames",
		zap.Int("frames", len(frames)),
		zap.Int("groups", len(groups)),
		zap.Int("frames_per_video", uc.cfg.FramesPerVideo),
		zap.Duration("group_span", uc.cfg.GroupSpan),
	)

	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			log.Warn("migration interrupted", zap.Int("groups_done", i), zap.Int("groups_total", len(groups)))
			return report, err
		}

		glog := log.With(
			zap.Int("group", i+1),
			zap.Int("groups_total", len(groups)),
			zap.Time("start", group.StartedAt),
			zap.Int("frames", group.Len()),
		)
		glog.Info("processing group")

		result, err := uc.assembler.Assemble(ctx, group)
		if err != nil {
			report.Failed++
			metrics.MigrationGroupsTotal.WithLabelValues("failed").Inc()
			glog.Error("group failed", zap.Error(err))
			continue
		}

		report.Succeeded++
		metrics.MigrationGroupsTotal.WithLabelValues("completed").Inc()
		removed, failed := countRemoved(result.Removed)
		report.FramesDeleted += removed
		report.DeleteFailures += failed
		glog.Info("group completed", zap.String("artifact", filepath.Base(result.Artifact.Path)))
	}

	log.Info("migration summary",
		zap.Int("frames", report.FramesFound),
		zap.Int("videos_created", report.Succeeded),
		zap.Int("groups", report.Groups),
		zap.Int("failed", report.Failed),
		zap.Int("frames_deleted", report.FramesDeleted),
		zap.Int("delete_failures", report.DeleteFailures),
	)
	return report, nil
}
