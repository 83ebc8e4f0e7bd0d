package ffmpeg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeTool installs a shell script standing in for ffmpeg/ffprobe.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

const writeLastArg = `for last; do :; done
printf 'jpeg' > "$last"`

// copyPlaylist writes the concat list passed via -i to the output path so
// tests can inspect it after the compiler removed its own copy.
const copyPlaylist = `while [ $# -gt 0 ]; do
  case "$1" in
    -i) shift; list="$1" ;;
  esac
  out="$1"
  shift
done
cp "$list" "$out"`

func writeFrames(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(paths[i], []byte(n), 0o644))
	}
	return paths
}
