package entity

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// TimestampLayout is the capture/start timestamp embedded in frame and
// artifact file names.
const TimestampLayout = "20060102_150405"

var frameNamePattern = regexp.MustCompile(`^frame_(\d+)_(\d{8}_\d{6})\.jpg$`)

// Frame is one captured still, identified by its capture sequence.
type Frame struct {
	Sequence   uint64
	CapturedAt time.Time
	Path       string
}

func FrameFileName(seq uint64, capturedAt time.Time) string {
	return fmt.Sprintf("frame_%08d_%s.jpg", seq, capturedAt.Format(TimestampLayout))
}

func NewFrame(dir string, seq uint64, capturedAt time.Time) Frame {
	return Frame{
		Sequence:   seq,
		CapturedAt: capturedAt,
		Path:       filepath.Join(dir, FrameFileName(seq, capturedAt)),
	}
}

// ParseFrameName recovers a frame from a path written by NewFrame. Capture
// times are interpreted in loc.
func ParseFrameName(path string, loc *time.Location) (Frame, bool) {
	m := frameNamePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return Frame{}, false
	}
	seq, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return Frame{}, false
	}
	ts, err := time.ParseInLocation(TimestampLayout, m[2], loc)
	if err != nil {
		return Frame{}, false
	}
	return Frame{Sequence: seq, CapturedAt: ts, Path: path}, true
}

// FramePaths returns the frame paths in the order given.
func FramePaths(frames []Frame) []string {
	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = f.Path
	}
	return paths
}
