package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// MaxLevel caps the level derived from points.
const MaxLevel = 255

// PointsPerLevel is the width of one level bracket.
const PointsPerLevel = 100

// LevelFor returns min(MaxLevel, points/PointsPerLevel).
func LevelFor(points uint64) uint8 {
	level := points / PointsPerLevel
	if level > MaxLevel {
		return MaxLevel
	}
	return uint8(level)
}

// UserProgress accumulates the standing of one identity.
type UserProgress struct {
	ID             string    `json:"id"`
	Owner          Identity  `json:"owner"`
	TasksCompleted uint64    `json:"tasks_completed"`
	PointsEarned   uint64    `json:"points_earned"`
	Level          uint8     `json:"level"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUserProgress returns an empty accumulator for owner.
func NewUserProgress(owner Identity) *UserProgress {
	now := time.Now().UTC()
	return &UserProgress{
		ID:        uuid.NewString(),
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OwnedBy reports whether the record belongs to id.
func (p *UserProgress) OwnedBy(id Identity) bool {
	return p != nil && p.Owner == id
}

// Award credits one completed task worth points and recomputes the level.
// It reports whether the level strictly increased. On error p is unchanged.
func (p *UserProgress) Award(points uint64) (bool, error) {
	if p.TasksCompleted == math.MaxUint64 || p.PointsEarned > math.MaxUint64-points {
		return false, ErrPointsOverflow
	}
	before := p.Level
	p.TasksCompleted++
	p.PointsEarned += points
	p.Level = LevelFor(p.PointsEarned)
	p.UpdatedAt = time.Now().UTC()
	return p.Level > before, nil
}

// Clone returns a copy of p.
func (p *UserProgress) Clone() *UserProgress {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
