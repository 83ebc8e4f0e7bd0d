package ffmpeg

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

// PlaylistEntry is one "file" line of an ffmpeg concat list. A zero Duration
// means no duration line follows.
type PlaylistEntry struct {
	Path     string
	Duration float64
}

// PlaylistEntries lays frames out for the concat demuxer: each frame shown
// for 1/fps, then the last frame repeated so its duration is honoured.
func PlaylistEntries(framePaths []string, fps int) []PlaylistEntry {
	if len(framePaths) == 0 {
		return nil
	}
	d := 1.0 / float64(fps)
	entries := make([]PlaylistEntry, 0, len(framePaths)+1)
	for _, p := range framePaths {
		entries = append(entries, PlaylistEntry{Path: p, Duration: d})
	}
	return append(entries, PlaylistEntry{Path: framePaths[len(framePaths)-1]})
}

func WritePlaylist(w io.Writer, framePaths []string, fps int) error {
	bw := bufio.NewWriter(w)
	for _, e := range PlaylistEntries(framePaths, fps) {
		abs, err := filepath.Abs(e.Path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", e.Path, err)
		}
		fmt.Fprintf(bw, "file '%s'\n", quotePath(abs))
		if e.Duration > 0 {
			fmt.Fprintf(bw, "duration %s\n", strconv.FormatFloat(e.Duration, 'f', -1, 64))
		}
	}
	return bw.Flush()
}

func quotePath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
