package entity

import (
	"time"

	"github.com/google/uuid"
)

type ArtifactStatus string

const (
	ArtifactStatusPending    ArtifactStatus = "PENDING"
	ArtifactStatusAssembling ArtifactStatus = "ASSEMBLING"
	ArtifactStatusCompleted  ArtifactStatus = "COMPLETED"
	ArtifactStatusFailed     ArtifactStatus = "FAILED"
)

type Artifact struct {
	ID           uuid.UUID
	Kind         BatchKind
	Path         string
	ObjectKey    string
	Status       ArtifactStatus
	FrameCount   int
	SizeBytes    int64
	DurationSecs float64
	ErrorMessage string
	StartedAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

func NewArtifact(batch Batch, path string) *Artifact {
	now := time.Now().UTC()
	return &Artifact{
		ID:         uuid.New(),
		Kind:       batch.Kind,
		Path:       path,
		Status:     ArtifactStatusPending,
		FrameCount: batch.Len(),
		StartedAt:  batch.StartedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (a *Artifact) MarkAssembling() {
	a.Status = ArtifactStatusAssembling
	a.UpdatedAt = time.Now().UTC()
}

func (a *Artifact) MarkCompleted(sizeBytes int64) {
	now := time.Now().UTC()
	a.Status = ArtifactStatusCompleted
	a.SizeBytes = sizeBytes
	a.ErrorMessage = ""
	a.UpdatedAt = now
	a.CompletedAt = &now
}

func (a *Artifact) MarkFailed(errMsg string) {
	a.Status = ArtifactStatusFailed
	a.ErrorMessage = errMsg
	a.UpdatedAt = time.Now().UTC()
}

func (a *Artifact) Completed() bool {
	return a.Status == ArtifactStatusCompleted
}
