package entity

import (
	"fmt"
	"time"
)

type BatchKind string

const (
	BatchKindScheduled BatchKind = "scheduled"
	BatchKindPartial   BatchKind = "partial"
	BatchKindRecovered BatchKind = "recovered"
	BatchKindMigrated  BatchKind = "migrated"
)

// Batch is an ordered run of frames flushed into one artifact.
type Batch struct {
	Kind      BatchKind
	StartedAt time.Time
	Frames    []Frame
}

func (b Batch) Len() int {
	return len(b.Frames)
}

func (b Batch) Paths() []string {
	return FramePaths(b.Frames)
}

// ArtifactName is the output file name for a batch of the given kind started
// at start. Partial and recovered artifacts never collide with full ones.
func ArtifactName(kind BatchKind, start time.Time) string {
	ts := start.Format(TimestampLayout)
	switch kind {
	case BatchKindPartial:
		return fmt.Sprintf("timelapse_%s_partial.mp4", ts)
	case BatchKindRecovered:
		return fmt.Sprintf("timelapse_%s_recovered.mp4", ts)
	case BatchKindMigrated:
		return fmt.Sprintf("timelapse_migrated_%s.mp4", ts)
	default:
		return fmt.Sprintf("timelapse_%s.mp4", ts)
	}
}

func (b Batch) ArtifactName() string {
	return ArtifactName(b.Kind, b.StartedAt)
}
