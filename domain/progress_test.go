package domain

import (
	"errors"
	"math"
	"testing"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		points uint64
		want   uint8
	}{
		{0, 0},
		{99, 0},
		{100, 1},
		{250, 2},
		{25_499, 254},
		{25_500, 255},
		{1_000_000, 255},
		{math.MaxUint64, 255},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.points); got != tt.want {
			t.Fatalf("LevelFor(%d): expected %d, got %d", tt.points, tt.want, got)
		}
	}
}

func TestAwardReportsStrictLevelIncrease(t *testing.T) {
	p := NewUserProgress("bob")
	if p.ID == "" {
		t.Fatalf("expected generated id")
	}

	leveled, err := p.Award(50)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if leveled {
		t.Fatalf("expected no level up at 50 points")
	}

	leveled, err = p.Award(50)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if !leveled {
		t.Fatalf("expected level up at 100 points")
	}
	if p.TasksCompleted != 2 || p.PointsEarned != 100 || p.Level != 1 {
		t.Fatalf("unexpected progress %+v", *p)
	}
}

func TestAwardSkipsLevels(t *testing.T) {
	p := NewUserProgress("bob")
	leveled, err := p.Award(250)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if !leveled || p.Level != 2 {
		t.Fatalf("expected single level up to 2, got leveled=%v level=%d", leveled, p.Level)
	}
}

func TestAwardAtCapDoesNotLevelUp(t *testing.T) {
	p := NewUserProgress("bob")
	p.PointsEarned = 25_500
	p.Level = MaxLevel

	leveled, err := p.Award(1_000)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if leveled {
		t.Fatalf("expected no level up past the cap")
	}
	if p.Level != MaxLevel {
		t.Fatalf("expected level %d, got %d", MaxLevel, p.Level)
	}
}

func TestAwardOverflowLeavesProgressUnchanged(t *testing.T) {
	p := NewUserProgress("bob")
	p.PointsEarned = math.MaxUint64 - 10
	p.Level = MaxLevel
	before := *p

	if _, err := p.Award(11); !errors.Is(err, ErrPointsOverflow) {
		t.Fatalf("expected ErrPointsOverflow, got %v", err)
	}
	if *p != before {
		t.Fatalf("expected progress unchanged, got %+v", *p)
	}
}

func TestOwnedBy(t *testing.T) {
	p := NewUserProgress("bob")
	if !p.OwnedBy("bob") || p.OwnedBy("alice") {
		t.Fatalf("unexpected ownership for %q", p.Owner)
	}
	var nilProgress *UserProgress
	if nilProgress.OwnedBy("bob") {
		t.Fatalf("expected nil progress to be owned by nobody")
	}
}
