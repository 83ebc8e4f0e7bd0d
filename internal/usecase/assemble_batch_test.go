package usecase

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/asusplayer/time-lapse/internal/domain/entity"
	"github.com/asusplayer/time-lapse/internal/infra/ffmpeg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var batchStart = time.Date(2024, 6, 1, 8, 0, 0, 0, time.Local)

func stageBatch(t *testing.T, dir string, kind entity.BatchKind, firstSeq uint64, n int) entity.Batch {
	t.Helper()
	frames := make([]entity.Frame, n)
	for i := range frames {
		seq := firstSeq + uint64(i)
		frames[i] = entity.NewFrame(dir, seq, batchStart.Add(time.Duration(seq)*time.Minute))
		require.NoError(t, os.WriteFile(frames[i].Path, []byte("jpeg"), 0o644))
	}
	return entity.Batch{Kind: kind, StartedAt: frames[0].CapturedAt, Frames: frames}
}

func newAssembler(t *testing.T, compiler *fakeCompiler, cfg AssemblerConfig) *BatchAssembler {
	return NewBatchAssembler(compiler, ffmpeg.NewZipArchiver(), nil, nil, zaptest.NewLogger(t), cfg)
}

func TestAssembleRemovesExactlyItsBatch(t *testing.T) {
	framesDir, outDir := t.TempDir(), t.TempDir()
	first := stageBatch(t, framesDir, entity.BatchKindScheduled, 1, 5)
	next := stageBatch(t, framesDir, entity.BatchKindScheduled, 6, 3)

	compiler := &fakeCompiler{}
	result, err := newAssembler(t, compiler, AssemblerConfig{OutputDir: outDir}).Assemble(context.Background(), first)
	require.NoError(t, err)

	require.Len(t, compiler.Calls(), 1)
	assert.Equal(t, first.Paths(), compiler.Calls()[0])

	assert.Equal(t, entity.ArtifactStatusCompleted, result.Artifact.Status)
	assert.Equal(t, filepath.Join(outDir, first.ArtifactName()), result.Artifact.Path)
	assert.FileExists(t, result.Artifact.Path)

	require.Len(t, result.Removed, 5)
	for i, r := range result.Removed {
		assert.Equal(t, first.Frames[i].Path, r.Path)
		assert.NoError(t, r.Err)
		assert.NoFileExists(t, r.Path)
	}
	for _, f := range next.Frames {
		assert.FileExists(t, f.Path)
	}
}

func TestAssembleKeepsFramesWhenConfigured(t *testing.T) {
	framesDir := t.TempDir()
	batch := stageBatch(t, framesDir, entity.BatchKindScheduled, 1, 4)
	before := listDir(t, framesDir)

	result, err := newAssembler(t, &fakeCompiler{}, AssemblerConfig{OutputDir: t.TempDir(), KeepFrames: true}).
		Assemble(context.Background(), batch)
	require.NoError(t, err)

	assert.Empty(t, result.Removed)
	assert.Equal(t, before, listDir(t, framesDir))
}

func TestAssembleMovesRetainedFramesOutOfStaging(t *testing.T) {
	framesDir, outDir := t.TempDir(), t.TempDir()
	batch := stageBatch(t, framesDir, entity.BatchKindScheduled, 1, 4)
	retainDir := filepath.Join(outDir, "frames")

	result, err := newAssembler(t, &fakeCompiler{}, AssemblerConfig{OutputDir: outDir, KeepFrames: true, RetainDir: retainDir}).
		Assemble(context.Background(), batch)
	require.NoError(t, err)

	assert.Empty(t, result.Removed)
	require.Len(t, result.Retained, 4)
	for _, r := range result.Retained {
		assert.NoError(t, r.Err)
	}
	assert.Empty(t, listDir(t, framesDir))

	kept := filepath.Join(retainDir, batch.StartedAt.Format(entity.TimestampLayout))
	var want []string
	for _, f := range batch.Frames {
		want = append(want, filepath.Base(f.Path))
	}
	assert.Equal(t, want, listDir(t, kept))
}

func TestAssembleFailureLeavesFramesUntouched(t *testing.T) {
	framesDir, outDir := t.TempDir(), t.TempDir()
	batch := stageBatch(t, framesDir, entity.BatchKindScheduled, 1, 6)
	before := listDir(t, framesDir)

	events := &fakeEvents{}
	notifier := &fakeNotifier{}
	publisher := NewPublishArtifactUseCase(nil, nil, events, notifier, nil, zaptest.NewLogger(t), PublishConfig{})
	compiler := &fakeCompiler{FailOn: func(int) error {
		return &ffmpeg.ExitError{Args: []string{"ffmpeg"}, Code: 1, Stderr: "Invalid argument"}
	}}

	result, err := NewBatchAssembler(compiler, nil, nil, publisher, zaptest.NewLogger(t), AssemblerConfig{OutputDir: outDir}).
		Assemble(context.Background(), batch)
	require.Error(t, err)

	var exitErr *ffmpeg.ExitError
	assert.True(t, errors.As(err, &exitErr))
	assert.Equal(t, entity.ArtifactStatusFailed, result.Artifact.Status)
	assert.Equal(t, before, listDir(t, framesDir))
	assert.Empty(t, listDir(t, outDir))

	require.Len(t, events.messages, 1)
	var msg entity.ArtifactEventMessage
	require.NoError(t, json.Unmarshal(events.messages[0], &msg))
	assert.Equal(t, entity.ArtifactStatusFailed, msg.Status)
	assert.Contains(t, msg.ErrorMessage, "Invalid argument")
	assert.Equal(t, []string{batch.ArtifactName()}, notifier.names)
}

func TestAssembleArchivesBeforeRemoving(t *testing.T) {
	framesDir, outDir := t.TempDir(), t.TempDir()
	batch := stageBatch(t, framesDir, entity.BatchKindPartial, 1, 3)

	_, err := newAssembler(t, &fakeCompiler{}, AssemblerConfig{OutputDir: outDir, ArchiveFrames: true}).
		Assemble(context.Background(), batch)
	require.NoError(t, err)

	assert.Empty(t, listDir(t, framesDir))

	archive := filepath.Join(outDir, "frames_"+batch.StartedAt.Format(entity.TimestampLayout)+".zip")
	r, err := zip.OpenReader(archive)
	require.NoError(t, err)
	defer r.Close()
	require.Len(t, r.File, 3)
	assert.Equal(t, filepath.Base(batch.Frames[0].Path), r.File[0].Name)
}

func TestAssembleNeverOverwritesArtifact(t *testing.T) {
	outDir := t.TempDir()
	batch := stageBatch(t, t.TempDir(), entity.BatchKindScheduled, 1, 2)
	existing := filepath.Join(outDir, batch.ArtifactName())
	require.NoError(t, os.WriteFile(existing, []byte("earlier"), 0o644))

	result, err := newAssembler(t, &fakeCompiler{}, AssemblerConfig{OutputDir: outDir, KeepFrames: true}).
		Assemble(context.Background(), batch)
	require.NoError(t, err)

	assert.NotEqual(t, existing, result.Artifact.Path)
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "earlier", string(data))
}

func TestAssembleReportsPerItemRemovalFailures(t *testing.T) {
	framesDir := t.TempDir()
	batch := stageBatch(t, framesDir, entity.BatchKindScheduled, 1, 3)

	// A non-empty directory in place of a frame cannot be removed.
	stuck := batch.Frames[1].Path
	require.NoError(t, os.Remove(stuck))
	require.NoError(t, os.Mkdir(stuck, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stuck, "x"), nil, 0o644))

	result, err := newAssembler(t, &fakeCompiler{}, AssemblerConfig{OutputDir: t.TempDir()}).
		Assemble(context.Background(), batch)
	require.NoError(t, err)

	removed, failed := countRemoved(result.Removed)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, failed)
	assert.Error(t, result.Removed[1].Err)
	assert.NoFileExists(t, batch.Frames[0].Path)
	assert.NoFileExists(t, batch.Frames[2].Path)
}

func TestAssembleConvertsNonJPEGFrames(t *testing.T) {
	framesDir, outDir := t.TempDir(), t.TempDir()
	convDir := filepath.Join(framesDir, "temp_conversion")
	png := filepath.Join(framesDir, "screenshot_20240101_000000.png")
	jpg := filepath.Join(framesDir, "screenshot_20240101_000100.jpg")
	require.NoError(t, os.WriteFile(png, []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(jpg, []byte("jpg"), 0o644))

	batch := entity.Batch{
		Kind:      entity.BatchKindMigrated,
		StartedAt: batchStart,
		Frames:    []entity.Frame{{Sequence: 1, Path: png}, {Sequence: 2, Path: jpg}},
	}
	compiler := &fakeCompiler{}
	a := NewBatchAssembler(compiler, nil, fakeConverter{}, nil, zaptest.NewLogger(t),
		AssemblerConfig{OutputDir: outDir, ConversionDir: convDir})

	_, err := a.Assemble(context.Background(), batch)
	require.NoError(t, err)

	require.Len(t, compiler.Calls(), 1)
	assert.Equal(t, []string{filepath.Join(convDir, "screenshot_20240101_000000.jpg"), jpg}, compiler.Calls()[0])
	assert.NoDirExists(t, convDir)
	assert.NoFileExists(t, png)
	assert.NoFileExists(t, jpg)
}

func TestAssembleRejectsEmptyBatch(t *testing.T) {
	_, err := newAssembler(t, &fakeCompiler{}, AssemblerConfig{OutputDir: t.TempDir()}).
		Assemble(context.Background(), entity.Batch{})
	assert.ErrorIs(t, err, ffmpeg.ErrNoFrames)
}
