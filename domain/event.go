package domain

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the ledger.
const (
	EventTaskCreated   = "TaskCreated"
	EventTaskAssigned  = "TaskAssigned"
	EventTaskCompleted = "TaskCompleted"
	EventTaskCancelled = "TaskCancelled"
	EventUserLeveledUp = "UserLeveledUp"
)

// Event is one entry of the ledger's event log.
//
// Seq is assigned by the event repository on append and orders the log.
// PublishedAt is nil until the relay has delivered the event to every sink.
type Event struct {
	Seq         uint64          `json:"seq"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

type TaskCreated struct {
	TaskID       uint64   `json:"task_id"`
	Creator      Identity `json:"creator"`
	Title        string   `json:"title"`
	RewardPoints uint64   `json:"reward_points"`
}

type TaskAssigned struct {
	TaskID   uint64   `json:"task_id"`
	Assignee Identity `json:"assignee"`
}

type TaskCompleted struct {
	TaskID        uint64   `json:"task_id"`
	Assignee      Identity `json:"assignee"`
	PointsAwarded uint64   `json:"points_awarded"`
}

type TaskCancelled struct {
	TaskID      uint64   `json:"task_id"`
	CancelledBy Identity `json:"cancelled_by"`
}

type UserLeveledUp struct {
	User     Identity `json:"user"`
	NewLevel uint8    `json:"new_level"`
}

// NewEvent wraps a typed payload into an Event envelope.
func NewEvent(name, aggregateID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, WrapError(ErrCodeInternal, "encode event payload", err)
	}
	return Event{
		ID:          uuid.NewString(),
		Name:        name,
		AggregateID: aggregateID,
		Payload:     raw,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// TaskAggregateID is the aggregate id used for task events.
func TaskAggregateID(id uint64) string {
	return "task:" + strconv.FormatUint(id, 10)
}

// UserAggregateID is the aggregate id used for progress events.
func UserAggregateID(id Identity) string {
	return "user:" + string(id)
}

// Decode unmarshals the payload into dst.
func (e Event) Decode(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}
