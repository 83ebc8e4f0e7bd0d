package port

import "context"

// VideoCompiler concatenates frames, in the order given, into one video.
// It never modifies or removes the input frames.
type VideoCompiler interface {
	Compile(ctx context.Context, framePaths []string, outputPath string) error
}

type ImageConverter interface {
	ToJPEG(ctx context.Context, srcPath string, dstDir string) (string, error)
}

type DurationReader interface {
	Duration(ctx context.Context, videoPath string) (float64, error)
}
