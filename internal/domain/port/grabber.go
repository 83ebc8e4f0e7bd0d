package port

import "context"

// FrameGrabber writes exactly one still frame from the live source to
// outputPath.
type FrameGrabber interface {
	Grab(ctx context.Context, outputPath string) error
}
