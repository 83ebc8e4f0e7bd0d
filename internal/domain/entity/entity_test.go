package entity

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameNameRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	f := NewFrame("/videos/temp_frames", 42, at)

	assert.Equal(t, "/videos/temp_frames/frame_00000042_20240309_070501.jpg", f.Path)

	parsed, ok := ParseFrameName(f.Path, time.UTC)
	require.True(t, ok)
	assert.Equal(t, f, parsed)
}

func TestParseFrameNameRejectsForeignFiles(t *testing.T) {
	for _, name := range []string{
		"screenshot_20240309_070501.png",
		"frame_20240309_070501.jpg",
		"frame_00000001_20240309_070501.png",
		"playlist_20240309_070501.txt",
	} {
		_, ok := ParseFrameName(filepath.Join("/tmp", name), time.UTC)
		assert.False(t, ok, name)
	}
}

func TestArtifactNamesAreDistinctPerKind(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, "timelapse_20240102_030405.mp4", ArtifactName(BatchKindScheduled, start))
	assert.Equal(t, "timelapse_20240102_030405_partial.mp4", ArtifactName(BatchKindPartial, start))
	assert.Equal(t, "timelapse_20240102_030405_recovered.mp4", ArtifactName(BatchKindRecovered, start))
	assert.Equal(t, "timelapse_migrated_20240102_030405.mp4", ArtifactName(BatchKindMigrated, start))
}

func TestArtifactTransitions(t *testing.T) {
	batch := Batch{
		Kind:      BatchKindPartial,
		StartedAt: time.Now(),
		Frames:    []Frame{{Sequence: 1}, {Sequence: 2}},
	}
	a := NewArtifact(batch, "/videos/out.mp4")

	assert.Equal(t, ArtifactStatusPending, a.Status)
	assert.Equal(t, 2, a.FrameCount)
	assert.NotEqual(t, a.ID.String(), NewArtifact(batch, "x").ID.String())

	a.MarkAssembling()
	assert.Equal(t, ArtifactStatusAssembling, a.Status)

	a.MarkFailed("boom")
	assert.Equal(t, ArtifactStatusFailed, a.Status)
	assert.Equal(t, "boom", a.ErrorMessage)
	assert.False(t, a.Completed())

	a.MarkCompleted(1024)
	assert.True(t, a.Completed())
	assert.Empty(t, a.ErrorMessage)
	assert.EqualValues(t, 1024, a.SizeBytes)
	require.NotNil(t, a.CompletedAt)
}
