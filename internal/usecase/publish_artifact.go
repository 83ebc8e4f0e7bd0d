package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/asusplayer/time-lapse/internal/domain/entity"
	"github.com/asusplayer/time-lapse/internal/domain/port"
	"github.com/asusplayer/time-lapse/internal/infra/metrics"
	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type PublishConfig struct {
	UploadRetries int
	RetryDelay    time.Duration
}

// PublishArtifactUseCase fans a finished (or failed) artifact out to the
// optional sinks. Every sink is best-effort: failures are logged and
// counted, never returned. Nil ports are skipped.
type PublishArtifactUseCase struct {
	repo      port.ArtifactRepository
	storage   port.ArtifactStorage
	events    port.EventPublisher
	notifier  port.FailureNotifier
	durations port.DurationReader
	logger    *zap.Logger
	cfg       PublishConfig
}

func NewPublishArtifactUseCase(
	repo port.ArtifactRepository,
	storage port.ArtifactStorage,
	events port.EventPublisher,
	notifier port.FailureNotifier,
	durations port.DurationReader,
	logger *zap.Logger,
	cfg PublishConfig,
) *PublishArtifactUseCase {
	return &PublishArtifactUseCase{
		repo:      repo,
		storage:   storage,
		events:    events,
		notifier:  notifier,
		durations: durations,
		logger:    logger,
		cfg:       cfg,
	}
}

func (uc *PublishArtifactUseCase) Completed(ctx context.Context, artifact *entity.Artifact) {
	if uc == nil {
		return
	}
	ctx, span := otel.Tracer("usecase").Start(ctx, "PublishArtifactUseCase.Completed")
	defer span.End()

	log := uc.logger.With(zap.String("artifact_id", artifact.ID.String()), zap.String("artifact", filepath.Base(artifact.Path)))

	if uc.durations != nil {
		if d, err := uc.durations.Duration(ctx, artifact.Path); err != nil {
			log.Warn("could not read artifact duration", zap.Error(err))
		} else {
			artifact.DurationSecs = d
		}
	}

	created := uc.record(ctx, artifact, log)

	if uc.storage != nil {
		key := ObjectKey(artifact)
		if err := uc.upload(ctx, artifact.Path, key); err != nil {
			metrics.SinkErrorsTotal.WithLabelValues("storage").Inc()
			log.Error("artifact upload failed", zap.String("object_key", key), zap.Error(err))
		} else {
			artifact.ObjectKey = key
			log.Info("artifact uploaded", zap.String("object_key", key))
			if created {
				if err := uc.repo.Update(ctx, artifact); err != nil {
					metrics.SinkErrorsTotal.WithLabelValues("repository").Inc()
					log.Error("failed to update artifact record", zap.Error(err))
				}
			}
		}
	}

	uc.publishEvent(ctx, artifact, log)
}

func (uc *PublishArtifactUseCase) Failed(ctx context.Context, artifact *entity.Artifact) {
	if uc == nil {
		return
	}
	ctx, span := otel.Tracer("usecase").Start(ctx, "PublishArtifactUseCase.Failed")
	defer span.End()

	log := uc.logger.With(zap.String("artifact_id", artifact.ID.String()), zap.String("artifact", filepath.Base(artifact.Path)))

	uc.record(ctx, artifact, log)
	uc.publishEvent(ctx, artifact, log)

	if uc.notifier != nil {
		if err := uc.notifier.NotifyFailure(ctx, filepath.Base(artifact.Path), artifact.FrameCount, artifact.ErrorMessage); err != nil {
			metrics.SinkErrorsTotal.WithLabelValues("notifier").Inc()
		}
	}
}

func (uc *PublishArtifactUseCase) record(ctx context.Context, artifact *entity.Artifact, log *zap.Logger) bool {
	if uc.repo == nil {
		return false
	}
	if err := uc.repo.Create(ctx, artifact); err != nil {
		metrics.SinkErrorsTotal.WithLabelValues("repository").Inc()
		log.Error("failed to create artifact record", zap.Error(err))
		return false
	}
	return true
}

func (uc *PublishArtifactUseCase) upload(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	retries := uc.cfg.UploadRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(uc.cfg.RetryDelay), uint64(retries)),
		ctx,
	)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(err)
		}
		err := uc.storage.UploadArtifact(ctx, key, f, info.Size())
		if err != nil {
			uc.logger.Warn("upload attempt failed", zap.String("object_key", key), zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}, b)
}

func (uc *PublishArtifactUseCase) publishEvent(ctx context.Context, artifact *entity.Artifact, log *zap.Logger) {
	if uc.events == nil {
		return
	}
	data, _ := json.Marshal(EventMessage(artifact))
	if err := uc.events.PublishArtifactEvent(ctx, data); err != nil {
		metrics.SinkErrorsTotal.WithLabelValues("events").Inc()
		log.Error("failed to publish artifact event", zap.Error(err))
	}
}

// ObjectKey places an artifact under its start year and month.
func ObjectKey(artifact *entity.Artifact) string {
	return fmt.Sprintf("%s/%s", artifact.StartedAt.Format("2006/01"), filepath.Base(artifact.Path))
}

func EventMessage(artifact *entity.Artifact) entity.ArtifactEventMessage {
	return entity.ArtifactEventMessage{
		ArtifactID:   artifact.ID,
		Kind:         artifact.Kind,
		Status:       artifact.Status,
		FileName:     filepath.Base(artifact.Path),
		ObjectKey:    artifact.ObjectKey,
		FrameCount:   artifact.FrameCount,
		SizeBytes:    artifact.SizeBytes,
		Duration:     artifact.DurationSecs,
		StartedAt:    artifact.StartedAt,
		ErrorMessage: artifact.ErrorMessage,
	}
}
