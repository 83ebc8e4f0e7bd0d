// Package mp4meta reads artifact durations straight from the MP4 movie
// header, falling back to another duration reader for files it cannot parse.
package mp4meta

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/asusplayer/time-lapse/internal/domain/port"
)

var ErrNoDuration = errors.New("mp4 has no movie duration")

type Reader struct {
	fallback port.DurationReader
}

// New returns a reader that asks fallback (which may be nil) when the header
// cannot be read.
func New(fallback port.DurationReader) *Reader {
	return &Reader{fallback: fallback}
}

func (p *Reader) Duration(ctx context.Context, videoPath string) (float64, error) {
	d, err := HeaderDuration(videoPath)
	if err == nil || p.fallback == nil {
		return d, err
	}
	return p.fallback.Duration(ctx, videoPath)
}

// HeaderDuration returns the mvhd duration of an MP4 in seconds.
func HeaderDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	mp4File, err := mp4.DecodeFile(f, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return 0, fmt.Errorf("decode mp4: %w", err)
	}

	moov := mp4File.Moov
	if moov == nil && mp4File.Init != nil {
		moov = mp4File.Init.Moov
	}
	if moov == nil || moov.Mvhd == nil || moov.Mvhd.Timescale == 0 || moov.Mvhd.Duration == 0 {
		return 0, ErrNoDuration
	}
	return float64(moov.Mvhd.Duration) / float64(moov.Mvhd.Timescale), nil
}

var _ port.DurationReader = (*Reader)(nil)
