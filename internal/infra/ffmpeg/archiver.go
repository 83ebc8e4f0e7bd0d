package ffmpeg

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/asusplayer/time-lapse/internal/domain/port"
)

// ZipArchiver stores frames uncompressed in a zip next to their artifact.
type ZipArchiver struct{}

func NewZipArchiver() *ZipArchiver {
	return &ZipArchiver{}
}

func (z *ZipArchiver) ArchiveFrames(ctx context.Context, framePaths []string, archivePath string) (err error) {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
		if err != nil {
			os.Remove(archivePath)
		}
	}()

	zw := zip.NewWriter(out)
	for _, fp := range framePaths {
		select {
		case <-ctx.Done():
			zw.Close()
			return ctx.Err()
		default:
		}

		if err := addFrame(zw, fp); err != nil {
			zw.Close()
			return fmt.Errorf("add %s to archive: %w", fp, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func addFrame(zw *zip.Writer, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.Base(filename)
	header.Method = zip.Store

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, file)
	return err
}

var _ port.FrameArchiver = (*ZipArchiver)(nil)
