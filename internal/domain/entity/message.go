package entity

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactEventMessage is published once per assembled (or failed) artifact.
type ArtifactEventMessage struct {
	ArtifactID   uuid.UUID      `json:"artifact_id"`
	Kind         BatchKind      `json:"kind"`
	Status       ArtifactStatus `json:"status"`
	FileName     string         `json:"file_name"`
	ObjectKey    string         `json:"object_key,omitempty"`
	FrameCount   int            `json:"frame_count"`
	SizeBytes    int64          `json:"size_bytes,omitempty"`
	Duration     float64        `json:"duration_seconds,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	ErrorMessage string         `json:"error_message,omitempty"`
}
