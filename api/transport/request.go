package transport

// CreateTaskRequest carries a signed reward so a negative value can be
// rejected as an invalid reward rather than a decoding error.
type CreateTaskRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	RewardPoints int64  `json:"reward_points"`
}

type AssignTaskRequest struct {
	Assignee string `json:"assignee"`
}

type CompleteTaskRequest struct {
	ProfileID string `json:"profile_id"`
}
