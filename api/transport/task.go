package transport

import (
	"time"

	"github.com/fastygo/taskledger/domain"
)

// TaskView is the external shape of a task. Status uses the numeric encoding
// 0 = pending, 1 = completed, 2 = cancelled; an unset assignee is "".
type TaskView struct {
	ID           uint64    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	RewardPoints uint64    `json:"reward_points"`
	Status       uint8     `json:"status"`
	StatusName   string    `json:"status_name"`
	Creator      string    `json:"creator"`
	Assignee     string    `json:"assignee"`
	Available    bool      `json:"available"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewTaskView(t *domain.Task) TaskView {
	return TaskView{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		RewardPoints: t.RewardPoints,
		Status:       uint8(t.Status),
		StatusName:   t.Status.String(),
		Creator:      string(t.Creator),
		Assignee:     string(t.AssigneeOrNone()),
		Available:    t.IsAvailable(),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func NewTaskViews(tasks []domain.Task) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		out = append(out, NewTaskView(&tasks[i]))
	}
	return out
}

// OperationResponse is returned by every lifecycle operation.
type OperationResponse struct {
	Task     *TaskView            `json:"task,omitempty"`
	Progress *domain.UserProgress `json:"progress,omitempty"`
	Events   []domain.Event       `json:"events"`
}

type CountResponse struct {
	Count uint64 `json:"count"`
}

type AvailabilityResponse struct {
	ID        uint64 `json:"id"`
	Available bool   `json:"available"`
}
