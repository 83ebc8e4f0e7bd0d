package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/asusplayer/time-lapse/internal/domain/entity"
	"github.com/asusplayer/time-lapse/internal/domain/port"
	"github.com/asusplayer/time-lapse/internal/infra/ffmpeg"
	"github.com/asusplayer/time-lapse/internal/infra/metrics"
	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type RecorderConfig struct {
	// FramesDir is the staging directory for captured frames.
	FramesDir  string
	Threshold  int
	Interval   time.Duration
	RetryDelay time.Duration
}

// Recorder is the capture loop: grab a frame, accumulate it, flush full
// batches, sleep, repeat. It runs on a single goroutine.
type Recorder struct {
	grabber   port.FrameGrabber
	assembler *BatchAssembler
	acc       *Accumulator
	retry     backoff.BackOff
	logger    *zap.Logger
	cfg       RecorderConfig

	seq uint64
	now func() time.Time
}

func NewRecorder(grabber port.FrameGrabber, assembler *BatchAssembler, logger *zap.Logger, cfg RecorderConfig) (*Recorder, error) {
	acc, err := NewAccumulator(cfg.Threshold)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		grabber:   grabber,
		assembler: assembler,
		acc:       acc,
		retry:     backoff.NewConstantBackOff(cfg.RetryDelay),
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

// Pending is the number of frames waiting for the next flush.
func (r *Recorder) Pending() int {
	return r.acc.Count()
}

// Recover adopts frames left in the staging directory by a previous run.
// Numbering resumes after the highest sequence found and the orphans are
// flushed as recovered artifacts, oldest first, in threshold-sized batches.
func (r *Recorder) Recover(ctx context.Context) error {
	if err := os.MkdirAll(r.cfg.FramesDir, 0o755); err != nil {
		return fmt.Errorf("create frames dir: %w", err)
	}

	entries, err := os.ReadDir(r.cfg.FramesDir)
	if err != nil {
		return fmt.Errorf("read frames dir: %w", err)
	}

	var orphans []entity.Frame
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if f, ok := entity.ParseFrameName(filepath.Join(r.cfg.FramesDir, e.Name()), time.Local); ok {
			orphans = append(orphans, f)
		}
	}
	if len(orphans) == 0 {
		return nil
	}

	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Sequence < orphans[j].Sequence })
	r.seq = orphans[len(orphans)-1].Sequence

	r.logger.Info("recovering frames from previous run",
		zap.Int("frames", len(orphans)),
		zap.Uint64("resume_sequence", r.seq+1),
	)

	var errs []error
	for start := 0; start < len(orphans); start += r.cfg.Threshold {
		end := min(start+r.cfg.Threshold, len(orphans))
		batch := entity.Batch{
			Kind:      entity.BatchKindRecovered,
			StartedAt: orphans[start].CapturedAt,
			Frames:    orphans[start:end],
		}
		if _, err := r.assembler.Assemble(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run loops until ctx is cancelled, then flushes any accumulated frames as a
// partial artifact. It only returns after that final flush.
func (r *Recorder) Run(ctx context.Context) error {
	r.logger.Info("recording started",
		zap.Int("frames_per_artifact", r.cfg.Threshold),
		zap.Duration("sleep", r.cfg.Interval),
		zap.String("frames_dir", r.cfg.FramesDir),
	)

	for ctx.Err() == nil {
		if err := r.safeCycle(ctx); err != nil {
			delay := r.retry.NextBackOff()
			r.logger.Error("unexpected error in capture cycle", zap.Error(err), zap.Duration("retry_in", delay))
			if !sleepCtx(ctx, delay) {
				break
			}
			continue
		}
		r.retry.Reset()

		r.logger.Debug("sleeping", zap.Duration("duration", r.cfg.Interval))
		if !sleepCtx(ctx, r.cfg.Interval) {
			break
		}
	}

	r.logger.Info("shutdown requested, stopping capture", zap.Int("pending_frames", r.acc.Count()))
	r.flushPartial(context.WithoutCancel(ctx))
	return nil
}

func (r *Recorder) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.cycle(ctx)
}

func (r *Recorder) cycle(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	if err := os.MkdirAll(r.cfg.FramesDir, 0o755); err != nil {
		return fmt.Errorf("create frames dir: %w", err)
	}

	frame, ok := r.capture(ctx)
	if !ok {
		return nil
	}

	batch, full := r.acc.Add(frame)
	metrics.PendingFrames.Set(float64(r.acc.Count()))
	if full {
		r.flush(context.WithoutCancel(ctx), batch)
	}
	return nil
}

// capture grabs one frame. The grab is detached from ctx so that a capture in
// flight when shutdown is requested still completes and is included in the
// partial flush.
func (r *Recorder) capture(ctx context.Context) (entity.Frame, bool) {
	ctx, span := otel.Tracer("usecase").Start(context.WithoutCancel(ctx), "Recorder.capture")
	defer span.End()

	r.seq++
	frame := entity.NewFrame(r.cfg.FramesDir, r.seq, r.now())
	span.SetAttributes(attribute.Int64("frame.sequence", int64(frame.Sequence)))

	start := time.Now()
	err := r.grabber.Grab(ctx, frame.Path)
	metrics.CaptureDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		os.Remove(frame.Path)
		span.RecordError(err)
		metrics.FramesCapturedTotal.WithLabelValues(captureFailureReason(err)).Inc()
		r.logger.Error("capture failed, continuing",
			append(toolErrorFields(err), zap.Uint64("sequence", frame.Sequence), zap.Error(err))...)
		return entity.Frame{}, false
	}

	metrics.FramesCapturedTotal.WithLabelValues("ok").Inc()
	r.logger.Info("frame captured",
		zap.String("frame", filepath.Base(frame.Path)),
		zap.Int("pending", r.acc.Count()+1),
		zap.Int("threshold", r.cfg.Threshold),
	)
	return frame, true
}

// flush assembles a full batch. A failed assembly is not retried: its frames
// stay in the staging directory and accumulation continues with the next
// cycle.
func (r *Recorder) flush(ctx context.Context, batch entity.Batch) {
	if _, err := r.assembler.Assemble(ctx, batch); err != nil {
		r.logger.Error("batch not assembled, continuing with next cycle",
			zap.Int("frames", batch.Len()), zap.Error(err))
	}
}

func (r *Recorder) flushPartial(ctx context.Context) {
	batch, ok := r.acc.Drain()
	metrics.PendingFrames.Set(0)
	if !ok {
		return
	}
	r.logger.Info("flushing partial batch", zap.Int("frames", batch.Len()))
	r.flush(ctx, batch)
}

func captureFailureReason(err error) string {
	switch {
	case errors.Is(err, ffmpeg.ErrTimeout):
		return "timeout"
	case errors.Is(err, ffmpeg.ErrToolNotFound):
		return "tool_missing"
	case errors.Is(err, ffmpeg.ErrNoOutput):
		return "no_output"
	}
	return "failed"
}

// sleepCtx waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
