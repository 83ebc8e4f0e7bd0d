package usecase

import (
	"fmt"

	"github.com/asusplayer/time-lapse/internal/domain/entity"
)

// Accumulator counts captured frames towards the artifact threshold. It is
// owned by the recording loop and is not safe for concurrent use.
type Accumulator struct {
	threshold int
	frames    []entity.Frame
}

func NewAccumulator(threshold int) (*Accumulator, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("accumulator threshold must be at least 1, got %d", threshold)
	}
	return &Accumulator{threshold: threshold}, nil
}

func (a *Accumulator) Threshold() int {
	return a.threshold
}

func (a *Accumulator) Count() int {
	return len(a.frames)
}

// Add records a captured frame. When the count reaches the threshold the
// closed batch is returned and the accumulator starts over at zero.
func (a *Accumulator) Add(frame entity.Frame) (entity.Batch, bool) {
	a.frames = append(a.frames, frame)
	if len(a.frames) < a.threshold {
		return entity.Batch{}, false
	}
	return a.take(entity.BatchKindScheduled), true
}

// Drain returns whatever has accumulated as a partial batch, if anything.
func (a *Accumulator) Drain() (entity.Batch, bool) {
	if len(a.frames) == 0 {
		return entity.Batch{}, false
	}
	return a.take(entity.BatchKindPartial), true
}

func (a *Accumulator) take(kind entity.BatchKind) entity.Batch {
	b := entity.Batch{
		Kind:      kind,
		StartedAt: a.frames[0].CapturedAt,
		Frames:    a.frames,
	}
	a.frames = nil
	return b
}
