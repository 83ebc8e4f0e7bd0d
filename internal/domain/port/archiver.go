package port

import "context"

// FrameArchiver packs consumed frames into a single archive before they are
// removed from the staging directory.
type FrameArchiver interface {
	ArchiveFrames(ctx context.Context, framePaths []string, archivePath string) error
}
