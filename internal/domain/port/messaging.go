package port

import "context"

type EventPublisher interface {
	PublishArtifactEvent(ctx context.Context, msg []byte) error
}
