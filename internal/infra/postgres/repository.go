package postgres

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/asusplayer/time-lapse/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ArtifactRepository struct {
	pool *pgxpool.Pool
}

func NewArtifactRepository(pool *pgxpool.Pool) *ArtifactRepository {
	return &ArtifactRepository{pool: pool}
}

func (r *ArtifactRepository) Create(ctx context.Context, a *entity.Artifact) error {
	query := `
		INSERT INTO artifacts (
			id, kind, file_name, object_key, status, frame_count,
			size_bytes, duration_secs, error_message,
			started_at, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, string(a.Kind), filepath.Base(a.Path), a.ObjectKey, string(a.Status),
		a.FrameCount, a.SizeBytes, a.DurationSecs, a.ErrorMessage,
		a.StartedAt, a.CreatedAt, a.UpdatedAt, a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (r *ArtifactRepository) Update(ctx context.Context, a *entity.Artifact) error {
	query := `
		UPDATE artifacts SET
			status=$2, object_key=$3, size_bytes=$4, duration_secs=$5,
			error_message=$6, updated_at=$7, completed_at=$8
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		a.ID, string(a.Status), a.ObjectKey, a.SizeBytes, a.DurationSecs,
		a.ErrorMessage, a.UpdatedAt, a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update artifact: %w", err)
	}
	return nil
}

// FindByID loads a catalogued artifact. Path holds only the file name since
// the catalog does not know where the output directory is mounted.
func (r *ArtifactRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Artifact, error) {
	query := `
		SELECT id, kind, file_name, object_key, status, frame_count,
			size_bytes, duration_secs, error_message,
			started_at, created_at, updated_at, completed_at
		FROM artifacts WHERE id=$1`

	a := &entity.Artifact{}
	var kind, status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &kind, &a.Path, &a.ObjectKey, &status, &a.FrameCount,
		&a.SizeBytes, &a.DurationSecs, &a.ErrorMessage,
		&a.StartedAt, &a.CreatedAt, &a.UpdatedAt, &a.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find artifact by id: %w", err)
	}
	a.Kind = entity.BatchKind(kind)
	a.Status = entity.ArtifactStatus(status)
	return a, nil
}
