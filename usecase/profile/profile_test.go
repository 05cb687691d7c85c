package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/repository/memory"
)

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	uc := New(memory.New(), nil)

	created, err := uc.CreateProfile(ctx, "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Owner != "bob" || created.Level != 0 || created.PointsEarned != 0 || created.TasksCompleted != 0 {
		t.Fatalf("unexpected fresh profile %+v", *created)
	}

	got, err := uc.GetProfile(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID || got.Owner != "bob" {
		t.Fatalf("unexpected profile %+v", *got)
	}

	if _, err := uc.CreateProfile(ctx, "carol"); err != nil {
		t.Fatalf("create: %v", err)
	}
	owned, err := uc.ListProfiles(ctx, "bob")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != created.ID {
		t.Fatalf("expected only bob's profile, got %+v", owned)
	}

	if _, err := uc.GetProfile(ctx, "nope"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}
