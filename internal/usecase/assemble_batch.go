package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asusplayer/time-lapse/internal/domain/entity"
	"github.com/asusplayer/time-lapse/internal/domain/port"
	"github.com/asusplayer/time-lapse/internal/infra/ffmpeg"
	"github.com/asusplayer/time-lapse/internal/infra/metrics"
	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type AssemblerConfig struct {
	OutputDir     string
	KeepFrames    bool
	// RetainDir, when set, receives kept frames in a per-batch subdirectory
	// so the staging directory only ever holds unassembled frames.
	RetainDir     string
	ArchiveFrames bool
	// ConversionDir receives re-encoded copies of non-JPEG frames. Only used
	// when the assembler has a converter.
	ConversionDir string
}

// AssemblyResult describes one flushed batch.
type AssemblyResult struct {
	Artifact *entity.Artifact
	Removed  []RemovalResult
	Retained []RemovalResult
}

// BatchAssembler turns a closed batch into an artifact and disposes of the
// consumed frames according to its retention settings.
type BatchAssembler struct {
	compiler  port.VideoCompiler
	archiver  port.FrameArchiver
	converter port.ImageConverter
	publisher *PublishArtifactUseCase
	logger    *zap.Logger
	cfg       AssemblerConfig
}

func NewBatchAssembler(
	compiler port.VideoCompiler,
	archiver port.FrameArchiver,
	converter port.ImageConverter,
	publisher *PublishArtifactUseCase,
	logger *zap.Logger,
	cfg AssemblerConfig,
) *BatchAssembler {
	return &BatchAssembler{
		compiler:  compiler,
		archiver:  archiver,
		converter: converter,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
	}
}

// Assemble compiles the batch into OutputDir. On failure the batch's frames
// are left exactly as they were and the error is returned to the caller.
func (a *BatchAssembler) Assemble(ctx context.Context, batch entity.Batch) (*AssemblyResult, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "BatchAssembler.Assemble")
	defer span.End()

	if batch.Len() == 0 {
		return nil, ffmpeg.ErrNoFrames
	}
	if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	outPath := uniquePath(filepath.Join(a.cfg.OutputDir, batch.ArtifactName()))
	artifact := entity.NewArtifact(batch, outPath)
	artifact.MarkAssembling()

	span.SetAttributes(
		attribute.String("artifact.id", artifact.ID.String()),
		attribute.String("artifact.kind", string(batch.Kind)),
		attribute.Int("artifact.frames", batch.Len()),
	)
	log := a.logger.With(
		zap.String("artifact", filepath.Base(outPath)),
		zap.String("kind", string(batch.Kind)),
		zap.Int("frames", batch.Len()),
	)

	inputs := batch.Paths()
	if a.converter != nil {
		converted, cleanup := a.convertFrames(ctx, inputs, log)
		defer cleanup()
		inputs = converted
	}

	start := time.Now()
	err := a.compiler.Compile(ctx, inputs, outPath)
	metrics.AssemblyDuration.WithLabelValues(string(batch.Kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		os.Remove(outPath)
		artifact.MarkFailed(err.Error())
		metrics.ArtifactsTotal.WithLabelValues(string(batch.Kind), "failed").Inc()
		span.RecordError(err)
		log.Error("assembly failed, frames preserved", append(toolErrorFields(err), zap.Error(err))...)
		a.publisher.Failed(ctx, artifact)
		return &AssemblyResult{Artifact: artifact}, fmt.Errorf("assemble %s: %w", filepath.Base(outPath), err)
	}

	var size int64
	if info, err := os.Stat(outPath); err == nil {
		size = info.Size()
	}
	artifact.MarkCompleted(size)
	metrics.ArtifactsTotal.WithLabelValues(string(batch.Kind), "completed").Inc()
	log.Info("artifact created",
		zap.String("size", humanize.Bytes(uint64(size))),
		zap.Duration("took", time.Since(start)),
	)

	a.publisher.Completed(ctx, artifact)

	result := &AssemblyResult{Artifact: artifact}
	if a.cfg.KeepFrames {
		result.Retained = a.retain(batch, log)
	} else {
		result.Removed = a.dispose(ctx, batch, log)
	}
	return result, nil
}

// retain moves kept frames to RetainDir/{batch start}. Frames that cannot be
// moved stay where they are and are reported.
func (a *BatchAssembler) retain(batch entity.Batch, log *zap.Logger) []RemovalResult {
	if a.cfg.RetainDir == "" {
		return nil
	}
	dir := filepath.Join(a.cfg.RetainDir, batch.StartedAt.Format(entity.TimestampLayout))
	results := moveFiles(batch.Paths(), dir, log)
	moved, failed := countRemoved(results)
	log.Info("consumed frames retained", zap.String("dir", dir), zap.Int("moved", moved), zap.Int("failed", failed))
	return results
}

func (a *BatchAssembler) dispose(ctx context.Context, batch entity.Batch, log *zap.Logger) []RemovalResult {
	if a.cfg.ArchiveFrames && a.archiver != nil {
		archivePath := uniquePath(filepath.Join(a.cfg.OutputDir,
			fmt.Sprintf("frames_%s.zip", batch.StartedAt.Format(entity.TimestampLayout))))
		if err := a.archiver.ArchiveFrames(ctx, batch.Paths(), archivePath); err != nil {
			log.Warn("archiving frames failed, keeping them on disk", zap.Error(err))
			return nil
		}
		log.Info("frames archived", zap.String("archive", filepath.Base(archivePath)))
	}

	results := removeFiles(batch.Paths(), log)
	removed, failed := countRemoved(results)
	log.Info("consumed frames removed", zap.Int("removed", removed), zap.Int("failed", failed))
	return results
}

func (a *BatchAssembler) convertFrames(ctx context.Context, paths []string, log *zap.Logger) ([]string, func()) {
	dir := a.cfg.ConversionDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("cannot create conversion dir, using original frames", zap.Error(err))
		return paths, func() {}
	}

	out := make([]string, len(paths))
	for i, p := range paths {
		converted, err := a.converter.ToJPEG(ctx, p, dir)
		if err != nil {
			log.Warn("frame conversion failed, using original", zap.String("frame", filepath.Base(p)), zap.Error(err))
			converted = p
		}
		out[i] = converted
		if (i+1)%100 == 0 {
			log.Debug("frames prepared", zap.Int("done", i+1), zap.Int("total", len(paths)))
		}
	}
	return out, func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("could not remove conversion dir", zap.String("dir", dir), zap.Error(err))
		}
	}
}

// toolErrorFields extracts the exit code and diagnostic tail of a failed
// ffmpeg run for logging.
func toolErrorFields(err error) []zap.Field {
	var exitErr *ffmpeg.ExitError
	switch {
	case errors.As(err, &exitErr):
		return []zap.Field{
			zap.String("command", strings.Join(exitErr.Args, " ")),
			zap.Int("exit_code", exitErr.Code),
			zap.String("stderr", exitErr.Stderr),
		}
	case errors.Is(err, ffmpeg.ErrTimeout):
		return []zap.Field{zap.String("reason", "timeout")}
	case errors.Is(err, ffmpeg.ErrToolNotFound):
		return []zap.Field{zap.String("reason", "ffmpeg not found")}
	}
	return nil
}

// uniquePath returns path, or path with a numeric suffix when a file of that
// name already exists.
func uniquePath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}
