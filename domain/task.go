package domain

import (
	"fmt"
	"time"
)

// Identity names a caller. The ledger never interprets it beyond equality.
type Identity string

// NoIdentity is what the query surface reports for an unset identity field.
const NoIdentity Identity = ""

// Status is the lifecycle state of a task. The numeric values are part of the
// external contract.
type Status uint8

const (
	StatusPending   Status = 0
	StatusCompleted Status = 1
	StatusCancelled Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	return s <= StatusCancelled
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus accepts either the numeric encoding or the lowercase name.
func ParseStatus(raw string) (Status, error) {
	switch raw {
	case "0", "pending":
		return StatusPending, nil
	case "1", "completed":
		return StatusCompleted, nil
	case "2", "cancelled":
		return StatusCancelled, nil
	}
	return 0, WrapError(ErrCodeInvalid, "unknown status", fmt.Errorf("%q", raw))
}

// Task represents one unit of work with a reward.
type Task struct {
	ID           uint64    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	RewardPoints uint64    `json:"reward_points"`
	Status       Status    `json:"status"`
	Creator      Identity  `json:"creator"`
	Assignee     *Identity `json:"assignee,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewTask builds a pending, unassigned task. The ID is allocated by the registry on insert.
func NewTask(title, description string, rewardPoints uint64, creator Identity) (*Task, error) {
	if rewardPoints == 0 {
		return nil, ErrInvalidRewardPoints
	}
	now := time.Now().UTC()
	return &Task{
		Title:        title,
		Description:  description,
		RewardPoints: rewardPoints,
		Status:       StatusPending,
		Creator:      creator,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (t *Task) IsPending() bool {
	return t != nil && t.Status == StatusPending
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusCompleted
}

// HasAssignee reports whether the assignee has been set.
func (t *Task) HasAssignee() bool {
	return t != nil && t.Assignee != nil
}

// IsAvailable reports whether the task can still be picked up.
func (t *Task) IsAvailable() bool {
	return t.IsPending() && !t.HasAssignee()
}

// AssigneeOrNone returns the assignee, or NoIdentity when unset.
func (t *Task) AssigneeOrNone() Identity {
	if t == nil || t.Assignee == nil {
		return NoIdentity
	}
	return *t.Assignee
}

// Assign sets the assignee. All checks run before any field is touched.
func (t *Task) Assign(assignee, caller Identity) error {
	if !t.IsPending() {
		return ErrTaskNotPending
	}
	if t.HasAssignee() {
		return ErrTaskAlreadyAssigned
	}
	if caller != t.Creator {
		return ErrNotCreator
	}
	a := assignee
	t.Assignee = &a
	t.touch()
	return nil
}

// Complete moves a pending task assigned to caller into StatusCompleted.
func (t *Task) Complete(caller Identity) error {
	if !t.IsPending() {
		return ErrTaskNotPending
	}
	if !t.HasAssignee() || *t.Assignee != caller {
		return ErrNotAssignee
	}
	t.Status = StatusCompleted
	t.touch()
	return nil
}

// Cancel moves a pending task into StatusCancelled regardless of assignment.
func (t *Task) Cancel() error {
	if !t.IsPending() {
		return ErrTaskNotPending
	}
	t.Status = StatusCancelled
	t.touch()
	return nil
}

// Clone returns a deep copy, so callers can mutate without aliasing stored state.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Assignee != nil {
		a := *t.Assignee
		c.Assignee = &a
	}
	return &c
}

func (t *Task) touch() {
	t.UpdatedAt = time.Now().UTC()
}
