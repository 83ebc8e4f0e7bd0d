package ffmpeg

import (
	"archive/zip"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverterPassesJPEGThrough(t *testing.T) {
	c := NewConverter(filepath.Join(t.TempDir(), "never-run"))

	got, err := c.ToJPEG(context.Background(), "/legacy/shot.JPG", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "/legacy/shot.JPG", got)
}

func TestConverterReencodesPNG(t *testing.T) {
	dst := t.TempDir()
	c := NewConverter(fakeTool(t, writeLastArg))

	got, err := c.ToJPEG(context.Background(), "/legacy/screenshot_20240101_000000.png", dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "screenshot_20240101_000000.jpg"), got)
	assert.FileExists(t, got)
}

func TestConverterFailure(t *testing.T) {
	c := NewConverter(fakeTool(t, `exit 1`))

	_, err := c.ToJPEG(context.Background(), "/legacy/a.png", t.TempDir())
	assert.Error(t, err)
}

func TestDurationReader(t *testing.T) {
	p := NewDurationReader(fakeTool(t, `echo "60.041667"`))

	d, err := p.Duration(context.Background(), "/videos/a.mp4")
	require.NoError(t, err)
	assert.InDelta(t, 60.041667, d, 1e-9)
}

func TestDurationReaderRejectsGarbage(t *testing.T) {
	p := NewDurationReader(fakeTool(t, `echo "N/A"`))

	_, err := p.Duration(context.Background(), "/videos/a.mp4")
	assert.Error(t, err)
}

func TestZipArchiverKeepsOrder(t *testing.T) {
	frames := writeFrames(t, t.TempDir(), "frame_2.jpg", "frame_1.jpg")
	archive := filepath.Join(t.TempDir(), "frames.zip")

	require.NoError(t, NewZipArchiver().ArchiveFrames(context.Background(), frames, archive))

	r, err := zip.OpenReader(archive)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.File, 2)
	assert.Equal(t, "frame_2.jpg", r.File[0].Name)
	assert.Equal(t, "frame_1.jpg", r.File[1].Name)
}

func TestZipArchiverRemovesPartialArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "frames.zip")

	err := NewZipArchiver().ArchiveFrames(context.Background(), []string{"/does/not/exist.jpg"}, archive)
	require.Error(t, err)
	assert.NoFileExists(t, archive)
}
