package port

import (
	"context"
	"io"
)

type ArtifactStorage interface {
	UploadArtifact(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}
