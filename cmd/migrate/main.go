package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/asusplayer/time-lapse/internal/app"
	"github.com/asusplayer/time-lapse/internal/domain/entity"
	"github.com/asusplayer/time-lapse/internal/infra/config"
	"github.com/asusplayer/time-lapse/pkg/logger"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	a := &cli.App{
		Name:  "migrate",
		Usage: "convert individually stored frames into time-lapse videos",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "frames-dir", Usage: "directory holding the legacy frames (default FRAMES_DIR or OUTPUT_DIR)"},
			&cli.StringFlag{Name: "output-dir", Usage: "directory receiving the videos (default OUTPUT_DIR)"},
			&cli.Float64Flag{Name: "group-hours", Usage: "maximum time span of one video (default MIGRATION_GROUP_HOURS)"},
			&cli.IntFlag{Name: "frames-per-video", Usage: "maximum frames in one video (default FRAMES_PER_VIDEO)"},
			&cli.BoolFlag{Name: "keep-frames", Usage: "keep frames after a successful migration"},
			&cli.BoolFlag{Name: "dry-run", Usage: "print the planned videos and exit"},
		},
		Action: run,
	}

	if err := a.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.IsSet("frames-dir") {
		cfg.FramesDir = c.String("frames-dir")
	}
	if c.IsSet("output-dir") {
		cfg.OutputDir = c.String("output-dir")
	}
	if c.IsSet("group-hours") {
		cfg.MigrationGroupHours = c.Float64("group-hours")
	}
	if c.IsSet("frames-per-video") {
		cfg.FramesPerVideo = c.Int("frames-per-video")
	}
	if c.Bool("keep-frames") {
		cfg.DeleteOldFrames = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Bool("dry-run") {
		return plan(c, cfg, log)
	}

	sinks := app.OpenSinks(ctx, cfg, log)
	defer sinks.Close()

	report, err := app.NewMigration(cfg, sinks.Publisher, log).Execute(ctx)
	if err != nil {
		return fmt.Errorf("migration aborted: %w", err)
	}
	if report.Failed > 0 {
		log.Warn("some groups were not migrated, their frames were kept", zap.Int("failed", report.Failed))
	}
	return nil
}

func plan(c *cli.Context, cfg *config.Config, log *zap.Logger) error {
	groups, err := app.NewMigration(cfg, nil, log).Plan()
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "%d frames in %s would become %d videos:\n",
		countFrames(groups), cfg.LegacyFramesDir(), len(groups))
	for _, g := range groups {
		var size uint64
		for _, p := range g.Paths() {
			if info, err := os.Stat(p); err == nil {
				size += uint64(info.Size())
			}
		}
		fmt.Fprintf(out, "  %s  %5d frames  %s\n",
			filepath.Join(cfg.OutputDir, g.ArtifactName()), g.Len(), humanize.Bytes(size))
	}
	return nil
}

func countFrames(groups []entity.Batch) int {
	n := 0
	for _, g := range groups {
		n += g.Len()
	}
	return n
}
