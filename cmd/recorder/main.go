package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asusplayer/time-lapse/internal/app"
	"github.com/asusplayer/time-lapse/internal/infra/config"
	"github.com/asusplayer/time-lapse/internal/infra/metrics"
	"github.com/asusplayer/time-lapse/internal/infra/tracing"
	"github.com/asusplayer/time-lapse/internal/usecase"
	"github.com/asusplayer/time-lapse/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting time-lapse recorder",
		zap.String("source", tracing.RedactSource(cfg.RTSPURL)),
		zap.String("output_dir", cfg.OutputDir),
		zap.Int("cycle_seconds", cfg.CycleSeconds),
		zap.Int("preload_seconds", cfg.PreloadSeconds),
		zap.Float64("video_duration_hours", cfg.VideoDurationHours),
		zap.Int("frames_per_video", cfg.FramesPerArtifact()),
		zap.Int("fps", cfg.VideoFPS),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	if cfg.JaegerEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, tracing.Stream{
			SourceURL:       cfg.RTSPURL,
			OutputDir:       cfg.OutputDir,
			FramesPerVideo:  cfg.FramesPerArtifact(),
			IntervalSeconds: cfg.CycleSeconds,
		})
		if err != nil {
			log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	sinks := app.OpenSinks(ctx, cfg, log)
	defer sinks.Close()

	recorder, err := app.NewRecorder(cfg, sinks.Publisher, log)
	if err != nil {
		log.Error("create recorder", zap.Error(err))
		os.Exit(1)
	}
	migration := app.NewMigration(cfg, sinks.Publisher, log)

	supervisor := usecase.NewSupervisor(migration, recorder, log, usecase.SupervisorConfig{
		AutoMigrate:  cfg.AutoMigrate,
		SkipConfirm:  cfg.SkipMigrationConfirm,
		ConfirmDelay: cfg.MigrationConfirmDelay,
	})

	var metricsSrv *http.Server
	if cfg.MetricsPort > 0 {
		metricsSrv = metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := supervisor.Run(ctx); err != nil {
		log.Error("recorder error", zap.Error(err))
	}

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsSrv.Shutdown(shutdownCtx)
	}

	log.Info("time-lapse recorder stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}
