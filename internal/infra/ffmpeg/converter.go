package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/asusplayer/time-lapse/internal/domain/port"
)

const convertTimeout = 30 * time.Second

type Converter struct {
	runner runner
}

func NewConverter(ffmpegPath string) *Converter {
	return &Converter{runner: runner{path: ffmpegPath}}
}

// ToJPEG returns srcPath unchanged for JPEG input, otherwise re-encodes it
// into dstDir and returns the new path.
func (c *Converter) ToJPEG(ctx context.Context, srcPath string, dstDir string) (string, error) {
	ext := strings.ToLower(filepath.Ext(srcPath))
	if ext == ".jpg" || ext == ".jpeg" {
		return srcPath, nil
	}

	stem := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	dst := filepath.Join(dstDir, stem+".jpg")
	if _, err := c.runner.run(ctx, convertTimeout, "-i", srcPath, "-q:v", "2", "-y", dst); err != nil {
		return "", fmt.Errorf("convert %s: %w", filepath.Base(srcPath), err)
	}
	return dst, nil
}

var _ port.ImageConverter = (*Converter)(nil)
