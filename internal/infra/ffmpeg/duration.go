package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/asusplayer/time-lapse/internal/domain/port"
)

const durationTimeout = 30 * time.Second

type DurationReader struct {
	runner runner
}

func NewDurationReader(ffprobePath string) *DurationReader {
	return &DurationReader{runner: runner{path: ffprobePath}}
}

func (p *DurationReader) Duration(ctx context.Context, videoPath string) (float64, error) {
	output, err := p.runner.run(ctx, durationTimeout,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

var _ port.DurationReader = (*DurationReader)(nil)
