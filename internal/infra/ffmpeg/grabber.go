package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/asusplayer/time-lapse/internal/domain/port"
	"go.uber.org/zap"
)

type GrabberConfig struct {
	FFmpegPath    string
	SourceURL     string
	RTSPTransport string
	Preload       time.Duration
	TimeoutBuffer time.Duration
	Width         int
	Height        int
}

// Grabber pulls single frames from a live source.
type Grabber struct {
	cfg    GrabberConfig
	runner runner
	logger *zap.Logger
}

func NewGrabber(cfg GrabberConfig, logger *zap.Logger) *Grabber {
	return &Grabber{cfg: cfg, runner: runner{path: cfg.FFmpegPath}, logger: logger}
}

func (g *Grabber) Timeout() time.Duration {
	return g.cfg.Preload + g.cfg.TimeoutBuffer
}

func (g *Grabber) Args(outputPath string) []string {
	var args []string
	if g.cfg.RTSPTransport != "" && strings.HasPrefix(strings.ToLower(g.cfg.SourceURL), "rtsp://") {
		args = append(args, "-rtsp_transport", g.cfg.RTSPTransport)
	}
	args = append(args,
		"-i", g.cfg.SourceURL,
		"-ss", strconv.FormatFloat(g.cfg.Preload.Seconds(), 'f', -1, 64),
		"-frames:v", "1",
	)
	if g.cfg.Width > 0 && g.cfg.Height > 0 {
		args = append(args, "-s", fmt.Sprintf("%dx%d", g.cfg.Width, g.cfg.Height))
	}
	return append(args, "-q:v", "2", "-y", outputPath)
}

func (g *Grabber) Grab(ctx context.Context, outputPath string) error {
	g.logger.Debug("grabbing frame",
		zap.String("source", g.cfg.SourceURL),
		zap.Duration("preload", g.cfg.Preload),
		zap.Duration("timeout", g.Timeout()),
	)

	if _, err := g.runner.run(ctx, g.Timeout(), g.Args(outputPath)...); err != nil {
		return fmt.Errorf("grab frame: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("grab frame %s: %w", outputPath, ErrNoOutput)
	}
	return nil
}

var _ port.FrameGrabber = (*Grabber)(nil)
