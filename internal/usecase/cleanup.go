package usecase

import (
	"errors"
	"io/fs"
	"fmt"
	"os"
	"path/filepath"

	"github.com/asusplayer/time-lapse/internal/infra/metrics"
	"go.uber.org/zap"
)

// RemovalResult is the outcome of deleting one consumed file.
type RemovalResult struct {
	Path string
	Err  error
}

// removeFiles deletes every path independently; one failure never stops the
// rest. A file that is already gone counts as removed.
func removeFiles(paths []string, log *zap.Logger) []RemovalResult {
	results := make([]RemovalResult, 0, len(paths))
	for _, p := range paths {
		err := os.Remove(p)
		if errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
		if err != nil {
			log.Warn("could not remove frame", zap.String("path", p), zap.Error(err))
			metrics.FramesRemovedTotal.WithLabelValues("failed").Inc()
		} else {
			metrics.FramesRemovedTotal.WithLabelValues("removed").Inc()
		}
		results = append(results, RemovalResult{Path: p, Err: err})
	}
	return results
}

func countRemoved(results []RemovalResult) (removed, failed int) {
	for _, r := range results {
		if r.Err != nil {
			failed++
		} else {
			removed++
		}
	}
	return removed, failed
}

// moveFiles relocates every path into dir, keeping base names. Each move is
// independent like removeFiles.
func moveFiles(paths []string, dir string, log *zap.Logger) []RemovalResult {
	results := make([]RemovalResult, 0, len(paths))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		err = fmt.Errorf("create retain dir: %w", err)
		log.Warn("could not retain frames", zap.String("dir", dir), zap.Error(err))
		for _, p := range paths {
			results = append(results, RemovalResult{Path: p, Err: err})
		}
		return results
	}
	for _, p := range paths {
		err := os.Rename(p, filepath.Join(dir, filepath.Base(p)))
		if err != nil {
			log.Warn("could not move frame", zap.String("path", p), zap.Error(err))
		}
		results = append(results, RemovalResult{Path: p, Err: err})
	}
	return results
}
