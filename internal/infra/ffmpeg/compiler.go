package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/asusplayer/time-lapse/internal/domain/port"
	"go.uber.org/zap"
)

type CompilerConfig struct {
	FFmpegPath string
	FPS        int
	Quality    int
	Preset     string
	Timeout    time.Duration
}

// Compiler turns an ordered frame list into an H.264 MP4 via the concat
// demuxer.
type Compiler struct {
	cfg    CompilerConfig
	runner runner
	logger *zap.Logger
}

func NewCompiler(cfg CompilerConfig, logger *zap.Logger) *Compiler {
	if cfg.Preset == "" {
		cfg.Preset = "medium"
	}
	return &Compiler{cfg: cfg, runner: runner{path: cfg.FFmpegPath}, logger: logger}
}

func (c *Compiler) Args(playlistPath, outputPath string) []string {
	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", playlistPath,
		"-vsync", "vfr",
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264",
		"-crf", strconv.Itoa(c.cfg.Quality),
		"-preset", c.cfg.Preset,
		"-y",
		outputPath,
	}
}

func (c *Compiler) Compile(ctx context.Context, framePaths []string, outputPath string) error {
	if len(framePaths) == 0 {
		return ErrNoFrames
	}

	list, err := os.CreateTemp(filepath.Dir(outputPath), "playlist_*.txt")
	if err != nil {
		return fmt.Errorf("create playlist: %w", err)
	}
	defer os.Remove(list.Name())

	if err := WritePlaylist(list, framePaths, c.cfg.FPS); err != nil {
		list.Close()
		return fmt.Errorf("write playlist: %w", err)
	}
	if err := list.Close(); err != nil {
		return fmt.Errorf("close playlist: %w", err)
	}

	c.logger.Info("compiling video",
		zap.String("output", outputPath),
		zap.Int("frames", len(framePaths)),
		zap.Int("fps", c.cfg.FPS),
	)

	if _, err := c.runner.run(ctx, c.cfg.Timeout, c.Args(list.Name(), outputPath)...); err != nil {
		return fmt.Errorf("compile %s: %w", filepath.Base(outputPath), err)
	}
	return nil
}

var _ port.VideoCompiler = (*Compiler)(nil)
