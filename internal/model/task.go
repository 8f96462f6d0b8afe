package model

import "time"

// Request states. A task request is resolved individually by its assignee;
// the task converts to the assigned regime only when every request is accepted.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

// ValidRequestState reports whether s is one of the three request states.
func ValidRequestState(s string) bool {
	return s == RequestPending || s == RequestAccepted || s == RequestRejected
}

type Task struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Frequency   int       `json:"frequency"`
	Difficulty  int       `json:"difficulty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	CreatorID   int64     `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TaskRequest struct {
	ID         int64     `json:"id"`
	TaskID     int64     `json:"task_id"`
	AssigneeID int64     `json:"assignee_id"`
	State      string    `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type TaskAssignment struct {
	ID         int64     `json:"id"`
	TaskID     int64     `json:"task_id"`
	AssigneeID int64     `json:"assignee_id"`
	Order      int       `json:"order"`
	CreatedAt  time.Time `json:"created_at"`
}

// RequestView is a task request with its assignee profile resolved.
type RequestView struct {
	ID       int64   `json:"id"`
	State    string  `json:"state"`
	Assignee Profile `json:"assignee"`
}

// AssignmentView is a task assignment with its assignee profile resolved.
type AssignmentView struct {
	ID       int64   `json:"id"`
	Order    int     `json:"order"`
	Assignee Profile `json:"assignee"`
}

// TaskRequests groups a requested-regime task with its request views.
type TaskRequests struct {
	Task     Task          `json:"task"`
	Requests []RequestView `json:"requests"`
}

// TaskAssignments groups an assigned-regime task with its assignment views,
// ordered by rotation position.
type TaskAssignments struct {
	Task        Task             `json:"task"`
	Assignments []AssignmentView `json:"assignments"`
}
