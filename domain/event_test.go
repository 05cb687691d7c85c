package domain

import "testing"

func TestNewEventRoundTripsPayload(t *testing.T) {
	event, err := NewEvent(EventUserLeveledUp, UserAggregateID("bob"), UserLeveledUp{User: "bob", NewLevel: 3})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if event.ID == "" || event.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be set")
	}
	if event.AggregateID != "user:bob" {
		t.Fatalf("expected aggregate user:bob, got %q", event.AggregateID)
	}
	if event.PublishedAt != nil {
		t.Fatalf("expected new event to be unpublished")
	}

	var payload UserLeveledUp
	if err := event.Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.User != "bob" || payload.NewLevel != 3 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestTaskAggregateID(t *testing.T) {
	if got := TaskAggregateID(42); got != "task:42" {
		t.Fatalf("expected task:42, got %q", got)
	}
}

func TestEventPayloadWireNames(t *testing.T) {
	tests := []struct {
		payload any
		want    string
	}{
		{TaskCreated{TaskID: 1, Creator: "alice", Title: "t", RewardPoints: 50}, `{"task_id":1,"creator":"alice","title":"t","reward_points":50}`},
		{TaskAssigned{TaskID: 1, Assignee: "bob"}, `{"task_id":1,"assignee":"bob"}`},
		{TaskCompleted{TaskID: 1, Assignee: "bob", PointsAwarded: 50}, `{"task_id":1,"assignee":"bob","points_awarded":50}`},
		{TaskCancelled{TaskID: 1, CancelledBy: "root"}, `{"task_id":1,"cancelled_by":"root"}`},
		{UserLeveledUp{User: "bob", NewLevel: 1}, `{"user":"bob","new_level":1}`},
	}
	for _, tt := range tests {
		event, err := NewEvent("e", "a", tt.payload)
		if err != nil {
			t.Fatalf("new event: %v", err)
		}
		if got := string(event.Payload); got != tt.want {
			t.Fatalf("expected %s, got %s", tt.want, got)
		}
	}
}
