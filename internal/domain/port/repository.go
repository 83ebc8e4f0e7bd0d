package port

import (
	"context"

	"github.com/asusplayer/time-lapse/internal/domain/entity"
	"github.com/google/uuid"
)

type ArtifactRepository interface {
	Create(ctx context.Context, artifact *entity.Artifact) error
	Update(ctx context.Context, artifact *entity.Artifact) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Artifact, error)
}
