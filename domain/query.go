package domain

import "time"

// TaskFilter narrows a board fetch. WorkspaceID is required; the remaining
// fields are optional and combine with AND semantics. Search matches a
// substring of the task name.
type TaskFilter struct {
	WorkspaceID string
	ProjectID   string
	AssigneeID  string
	Status      TaskStatus
	DueDate     string
	Search      string
}

// TaskCountQuery selects tasks for analytics counting. Time bounds apply to
// the task creation time, DueBefore to the due date.
type TaskCountQuery struct {
	WorkspaceID     string
	ProjectID       string
	AssigneeID      string
	StatusEquals    TaskStatus
	StatusNotEquals TaskStatus
	DueBefore       string
	CreatedFrom     time.Time
	CreatedTo       time.Time
}
