// Package app wires configuration into the use cases shared by the recorder
// and migrate binaries.
package app

import (
	"context"
	"path/filepath"

	"github.com/asusplayer/time-lapse/internal/domain/port"
	"github.com/asusplayer/time-lapse/internal/infra/config"
	"github.com/asusplayer/time-lapse/internal/infra/email"
	"github.com/asusplayer/time-lapse/internal/infra/ffmpeg"
	miniostorage "github.com/asusplayer/time-lapse/internal/infra/minio"
	"github.com/asusplayer/time-lapse/internal/infra/mp4meta"
	"github.com/asusplayer/time-lapse/internal/infra/postgres"
	"github.com/asusplayer/time-lapse/internal/infra/rabbitmq"
	"github.com/asusplayer/time-lapse/internal/usecase"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const conversionDirName = "temp_conversion"

// Sinks holds the optional artifact destinations. A sink that is not
// configured, or cannot be reached at startup, stays disabled.
type Sinks struct {
	Publisher *usecase.PublishArtifactUseCase
	closers   []func()
}

func OpenSinks(ctx context.Context, cfg *config.Config, log *zap.Logger) *Sinks {
	s := &Sinks{}

	var repo port.ArtifactRepository
	if cfg.DatabaseURL != "" {
		if r, err := s.openRepository(ctx, cfg.DatabaseURL, log); err != nil {
			log.Warn("artifact catalog disabled", zap.Error(err))
		} else {
			repo = r
		}
	}

	var storage port.ArtifactStorage
	if cfg.MinIOEndpoint != "" {
		st, err := miniostorage.NewStorage(miniostorage.StorageConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.MinIOBucket,
		})
		if err == nil {
			err = st.EnsureBucket(ctx)
		}
		if err != nil {
			log.Warn("artifact upload disabled", zap.Error(err))
		} else {
			storage = st
			log.Info("uploading artifacts", zap.String("bucket", st.Bucket()))
		}
	}

	var events port.EventPublisher
	if cfg.RabbitMQURL != "" {
		pub, err := rabbitmq.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.Warn("artifact events disabled", zap.Error(err))
		} else {
			s.closers = append(s.closers, func() { pub.Close() })
			events = rabbitmq.NewEventPublisher(pub, log)
			log.Info("publishing artifact events", zap.String("exchange", cfg.RabbitMQExchange))
		}
	}

	var notifier port.FailureNotifier
	if cfg.SMTPHost != "" && cfg.NotificationTo != "" {
		notifier = email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.NotificationTo, log)
	}

	if repo == nil && storage == nil && events == nil && notifier == nil {
		return s
	}

	s.Publisher = usecase.NewPublishArtifactUseCase(
		repo, storage, events, notifier,
		mp4meta.New(ffmpeg.NewDurationReader(cfg.FFprobePath)),
		log,
		usecase.PublishConfig{
			UploadRetries: cfg.UploadRetries,
			RetryDelay:    cfg.RetryDelay(),
		},
	)
	return s
}

func (s *Sinks) openRepository(ctx context.Context, databaseURL string, log *zap.Logger) (*postgres.ArtifactRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := postgres.RunMigrations(databaseURL); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}
	s.closers = append(s.closers, pool.Close)
	log.Info("cataloguing artifacts in postgres")
	return postgres.NewArtifactRepository(pool), nil
}

func (s *Sinks) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newCompiler(cfg *config.Config, log *zap.Logger) *ffmpeg.Compiler {
	return ffmpeg.NewCompiler(ffmpeg.CompilerConfig{
		FFmpegPath: cfg.FFmpegPath,
		FPS:        cfg.VideoFPS,
		Quality:    cfg.VideoQuality,
		Preset:     cfg.VideoPreset,
		Timeout:    cfg.AssemblyTimeout,
	}, log)
}

// NewRecorder builds the capture loop over the temp frames directory.
func NewRecorder(cfg *config.Config, publisher *usecase.PublishArtifactUseCase, log *zap.Logger) (*usecase.Recorder, error) {
	grabber := ffmpeg.NewGrabber(ffmpeg.GrabberConfig{
		FFmpegPath:    cfg.FFmpegPath,
		SourceURL:     cfg.RTSPURL,
		RTSPTransport: cfg.RTSPTransport,
		Preload:       cfg.PreloadDelay(),
		TimeoutBuffer: cfg.CaptureTimeoutBuffer,
		Width:         cfg.ImageWidth,
		Height:        cfg.ImageHeight,
	}, log)

	assembler := usecase.NewBatchAssembler(newCompiler(cfg, log), ffmpeg.NewZipArchiver(), nil, publisher, log,
		usecase.AssemblerConfig{
			OutputDir:     cfg.OutputDir,
			KeepFrames:    cfg.KeepFrames,
			RetainDir:     cfg.RetainedFramesDir(),
			ArchiveFrames: cfg.ArchiveFrames,
		})

	return usecase.NewRecorder(grabber, assembler, log, usecase.RecorderConfig{
		FramesDir:  cfg.TempFramesDir(),
		Threshold:  cfg.FramesPerArtifact(),
		Interval:   cfg.SleepInterval(),
		RetryDelay: cfg.RetryDelay(),
	})
}

// NewMigration builds the legacy frame sweep. Migrated frames are deleted
// unless DELETE_OLD_FRAMES is off.
func NewMigration(cfg *config.Config, publisher *usecase.PublishArtifactUseCase, log *zap.Logger) *usecase.MigrateFramesUseCase {
	framesDir := cfg.LegacyFramesDir()
	assembler := usecase.NewBatchAssembler(newCompiler(cfg, log), nil, ffmpeg.NewConverter(cfg.FFmpegPath), publisher, log,
		usecase.AssemblerConfig{
			OutputDir:     cfg.OutputDir,
			KeepFrames:    !cfg.DeleteOldFrames,
			ConversionDir: filepath.Join(framesDir, conversionDirName),
		})

	return usecase.NewMigrateFramesUseCase(assembler, log, usecase.MigrateConfig{
		FramesDir:      framesDir,
		GroupSpan:      cfg.MigrationGroupSpan(),
		FramesPerVideo: cfg.FramesPerVideo,
	})
}
