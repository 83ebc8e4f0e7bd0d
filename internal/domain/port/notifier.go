package port

import "context"

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, artifactName string, frameCount int, errorMsg string) error
}
